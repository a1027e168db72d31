package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// gitignore lists the files inside Dir that belong to one clone only.
const gitignore = ReplicaFile + "\ncache.db\ncache.db-*\n"

// Replica returns this clone's replica id.
func Replica(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, Dir, ReplicaFile))
	if err != nil {
		return "", fmt.Errorf("read replica id: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid replica id %q: %w", id, err)
	}
	return id, nil
}

// EnsureReplica returns the replica id, creating a new UUIDv7 when the clone
// has none yet. A fresh clone of a shared repository gets its own id here,
// so it never appends to another clone's file.
func EnsureReplica(root string) (string, bool, error) {
	id, err := Replica(root)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", false, err
	}
	u, err := uuid.NewV7()
	if err != nil {
		return "", false, fmt.Errorf("new replica id: %w", err)
	}
	if err := writeIfMissing(filepath.Join(root, Dir, ReplicaFile), []byte(u.String()+"\n")); err != nil {
		return "", false, err
	}
	return u.String(), true, nil
}

// InitResult reports what Init created.
type InitResult struct {
	Replica        string
	CreatedConfig  bool
	CreatedReplica bool
}

// Init prepares the repository at root. Existing files are kept, so running
// it again in an initialized or freshly cloned repository is safe.
func Init(root string, cfg Config) (*InitResult, error) {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	res := &InitResult{}
	cfgPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return nil, fmt.Errorf("init: encode config: %w", err)
		}
		if err := Validate(cfgPath, data); err != nil {
			return nil, fmt.Errorf("init: %w", err)
		}
		if err := writeIfMissing(cfgPath, data); err != nil {
			return nil, err
		}
		res.CreatedConfig = true
	}

	if err := writeIfMissing(filepath.Join(dir, ".gitignore"), []byte(gitignore)); err != nil {
		return nil, err
	}

	eventsDir := cfg.EventsDir
	if eventsDir == "" {
		eventsDir = DefaultEventsDir
	}
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(eventsDir)), 0o755); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	id, created, err := EnsureReplica(root)
	if err != nil {
		return nil, err
	}
	res.Replica = id
	res.CreatedReplica = created
	return res, nil
}

func writeIfMissing(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
