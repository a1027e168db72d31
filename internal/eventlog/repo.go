package eventlog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Repo is the file access the log needs from the host repository.
// Paths are slash separated and relative to the repository root.
type Repo interface {
	// ReadFile returns the file contents. A missing file is an error
	// matching fs.ErrNotExist.
	ReadFile(path string) ([]byte, error)
	// ReplaceFile atomically replaces path with data, creating parent
	// directories as needed. Readers see either the old or the new contents.
	ReplaceFile(path string, data []byte) error
	// List returns the names of the regular files in dir, sorted. A missing
	// directory lists as empty.
	List(dir string) ([]string, error)
}

// FSRepo is a Repo on the local file system rooted at Root.
type FSRepo struct {
	Root string
}

func (r FSRepo) abs(path string) string {
	return filepath.Join(r.Root, filepath.FromSlash(path))
}

func (r FSRepo) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(r.abs(path))
}

func (r FSRepo) ReplaceFile(path string, data []byte) (err error) {
	target := r.abs(path)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (r FSRepo) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(r.abs(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// MemRepo is an in-memory Repo. It is safe for concurrent use.
type MemRepo struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemRepo returns an empty in-memory repository.
func NewMemRepo() *MemRepo {
	return &MemRepo{files: make(map[string][]byte)}
}

func (m *MemRepo) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return slices.Clone(b), nil
}

func (m *MemRepo) ReplaceFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[clean(path)] = slices.Clone(data)
	return nil
}

func (m *MemRepo) List(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := clean(dir) + "/"
	var names []string
	for p := range m.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if ok && !strings.Contains(rest, "/") && !strings.HasPrefix(rest, ".") {
			names = append(names, rest)
		}
	}
	slices.Sort(names)
	return names, nil
}

func clean(path string) string {
	return strings.Trim(filepath.ToSlash(filepath.Clean(path)), "/")
}
