package eventlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/roach88/intrack/internal/event"
)

// DefaultDir is the events directory relative to the repository root.
const DefaultDir = ".intrack/events"

// Ext is the extension of log files.
const Ext = ".jsonl"

// GitAttributes is written next to the logs. Union merge keeps both sides of
// a textual conflict, which the decoder accepts in any order.
const GitAttributes = "*" + Ext + " merge=union\n"

// Options configures a Store.
type Options struct {
	// Dir is the events directory. Defaults to DefaultDir.
	Dir string
	// Replica names the file this clone appends to (without extension).
	Replica string
	// File selects single-file mode: every event lives in this one file,
	// which is both read and appended to. Dir and Replica are ignored.
	File   string
	Logger *slog.Logger
}

// File is the decoded content of one log file.
type File struct {
	Path     string
	Events   []event.Event
	Warnings []*event.DecodeError
}

// Store reads and appends event log files through a Repo.
type Store struct {
	repo   Repo
	dir    string
	own    string
	single bool
	logger *slog.Logger

	mu sync.Mutex
}

// New returns a store. In directory mode a replica is required.
func New(repo Repo, opts Options) (*Store, error) {
	s := &Store{repo: repo, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if opts.File != "" {
		s.single = true
		s.own = path.Clean(opts.File)
		s.dir = path.Dir(s.own)
		return s, nil
	}

	s.dir = opts.Dir
	if s.dir == "" {
		s.dir = DefaultDir
	}
	s.dir = path.Clean(s.dir)
	replica := strings.TrimSpace(opts.Replica)
	if replica == "" || strings.ContainsAny(replica, `/\`) {
		return nil, fmt.Errorf("eventlog: invalid replica id %q", opts.Replica)
	}
	s.own = path.Join(s.dir, replica+Ext)
	return s, nil
}

// Path returns the file this store appends to.
func (s *Store) Path() string {
	return s.own
}

// Dir returns the events directory.
func (s *Store) Dir() string {
	return s.dir
}

// Init creates the replica file and the attributes file if they are missing.
// Existing files are left untouched.
func (s *Store) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.createIfMissing(s.own, nil); err != nil {
		return err
	}
	if s.single {
		return nil
	}
	return s.createIfMissing(path.Join(s.dir, ".gitattributes"), []byte(GitAttributes))
}

func (s *Store) createIfMissing(p string, data []byte) error {
	_, err := s.repo.ReadFile(p)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "read", Path: p, Err: err}
	}
	if err := s.repo.ReplaceFile(p, data); err != nil {
		return &IOError{Op: "write", Path: p, Err: err}
	}
	return nil
}

// Append adds events to the end of the replica file and returns the number
// actually written. Events already present in the file are skipped, so
// retrying an append is harmless. The existing bytes are kept exactly.
func (s *Store) Append(ctx context.Context, events ...event.Event) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.ReadFile(s.own)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, &IOError{Op: "read", Path: s.own, Err: err}
	}

	present := make(map[string]bool)
	existing, _, err := event.DecodeLog(s.own, bytes.NewReader(current))
	if err != nil {
		return 0, &IOError{Op: "read", Path: s.own, Err: err}
	}
	for _, e := range existing {
		present[e.ID] = true
	}

	var buf bytes.Buffer
	buf.Write(current)
	if len(current) > 0 && current[len(current)-1] != '\n' {
		// A torn final line stays a single corrupt line.
		buf.WriteByte('\n')
	}
	written := 0
	for _, e := range events {
		if present[e.ID] {
			continue
		}
		line, err := event.Encode(e)
		if err != nil {
			return 0, err
		}
		buf.Write(line)
		present[e.ID] = true
		written++
	}
	if written == 0 {
		return 0, nil
	}

	if err := s.repo.ReplaceFile(s.own, buf.Bytes()); err != nil {
		return 0, &IOError{Op: "write", Path: s.own, Err: err}
	}
	s.logger.Info("events appended", "file", s.own, "count", written)
	return written, nil
}

// Load reads every log file in name order. Undecodable lines are returned as
// warnings on their file; a file that cannot be read fails the whole load.
func (s *Store) Load(ctx context.Context) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := []string{s.own}
	if !s.single {
		names, err := s.repo.List(s.dir)
		if err != nil {
			return nil, &IOError{Op: "list", Path: s.dir, Err: err}
		}
		paths = paths[:0]
		for _, name := range names {
			if strings.HasSuffix(name, Ext) {
				paths = append(paths, path.Join(s.dir, name))
			}
		}
	}

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := s.loadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *Store) loadFile(p string) (File, error) {
	data, err := s.repo.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return File{Path: p}, nil
	}
	if err != nil {
		return File{}, &IOError{Op: "read", Path: p, Err: err}
	}
	events, warns, err := event.DecodeLog(p, bytes.NewReader(data))
	if err != nil {
		return File{}, &IOError{Op: "read", Path: p, Err: err}
	}
	for _, w := range warns {
		s.logger.Warn("skipping undecodable line", "file", w.File, "line", w.Line, "error", w.Err)
	}
	return File{Path: p, Events: events, Warnings: warns}, nil
}

// Events flattens files into per-file event slices, the input of a merge.
func Events(files []File) [][]event.Event {
	out := make([][]event.Event, len(files))
	for i, f := range files {
		out[i] = f.Events
	}
	return out
}

// Warnings collects the decode warnings of all files.
func Warnings(files []File) []*event.DecodeError {
	var out []*event.DecodeError
	for _, f := range files {
		out = append(out, f.Warnings...)
	}
	return out
}
