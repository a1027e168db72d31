package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/intrack/internal/cache"
	"github.com/roach88/intrack/internal/config"
	"github.com/roach88/intrack/internal/editor"
	"github.com/roach88/intrack/internal/eventlog"
	"github.com/roach88/intrack/internal/tracker"
)

// session bundles what a tracker command works with. Close it to save the
// snapshot and release the cache.
type session struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	cache   *cache.Cache
	tracker *tracker.Tracker
	out     *OutputFormatter
	// repo and logOpts locate the logs the tracker reads.
	repo    eventlog.Repo
	logOpts eventlog.Options
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger returns the text logger every command writes diagnostics to.
func newLogger(w io.Writer, level slog.Level, verbose bool) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the configuration and installs the logger.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.Dir)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Level(), opts.Verbose)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openSession loads the configuration and the tracker. In directory mode the
// repository must be initialized; a fresh clone gets its replica id here.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}
	s := &session{root: opts.Dir, cfg: cfg, logger: logger, out: newFormatter(opts, cmd)}

	topts := tracker.Options{Author: cfg.Author, Logger: logger}
	if opts.File != "" {
		// Single-file mode reads and writes one path as given; no cache.
		topts.Repo = eventlog.FSRepo{}
		topts.Log = eventlog.Options{File: filepath.ToSlash(opts.File)}
	} else {
		if _, err := os.Stat(filepath.Join(opts.Dir, config.Dir)); errors.Is(err, fs.ErrNotExist) {
			return nil, errNotInitialized
		}
		replica, created, err := config.EnsureReplica(opts.Dir)
		if err != nil {
			return nil, err
		}
		if created {
			logger.Info("new replica id", "replica", replica)
		}
		topts.Repo = eventlog.FSRepo{Root: opts.Dir}
		topts.Log = eventlog.Options{Dir: cfg.EventsDir, Replica: replica}
		if cfg.CacheEnabled() {
			s.cache = s.openCache()
			topts.Cache = s.cache
		}
	}

	s.repo, s.logOpts = topts.Repo, topts.Log
	s.logOpts.Logger = logger
	s.tracker, err = tracker.Open(ctx, topts)
	if err != nil {
		s.cache.Close()
		return nil, err
	}

	where := s.logOpts.File
	if where == "" {
		where = s.logOpts.Dir
	}
	r := s.tracker.Report()
	s.out.VerboseLog("loaded %d events from %s (snapshot resumed: %t, warnings: %d)",
		r.Events, where, r.Resume.Resumed, len(r.Warnings))
	return s, nil
}

// openCache opens the snapshot cache. The cache is disposable, so failures
// only cost a full replay.
func (s *session) openCache() *cache.Cache {
	path := s.cfg.Cache
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, filepath.FromSlash(path))
	}
	c, err := cache.Open(path)
	if err != nil {
		s.logger.Warn("snapshot cache unavailable", "path", path, "error", err)
		return nil
	}
	return c
}

// loadLogs reads every log file the tracker reads.
func (s *session) loadLogs(ctx context.Context) ([]eventlog.File, error) {
	store, err := eventlog.New(s.repo, s.logOpts)
	if err != nil {
		return nil, err
	}
	return store.Load(ctx)
}

// editor returns an editor attached to the command's streams.
func (s *session) editor(cmd *cobra.Command) *editor.Editor {
	ed := editor.New()
	ed.Stdin = cmd.InOrStdin()
	ed.Stdout = cmd.OutOrStdout()
	ed.Stderr = cmd.ErrOrStderr()
	return ed
}

// Close checkpoints the tracker and closes the cache.
func (s *session) Close(ctx context.Context) {
	if err := s.tracker.Checkpoint(ctx); err != nil {
		s.logger.Warn("snapshot not saved", "error", err)
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Warn("close cache", "error", err)
	}
}

// withSession runs fn with an open session and reports its error through
// the formatter.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts, cmd)
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close(ctx)
	if err := fn(ctx, s); err != nil {
		return out.Fail(err)
	}
	return nil
}
