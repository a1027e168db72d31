package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

const (
	// Dir holds all intrack files inside the repository.
	Dir = ".intrack"
	// FileName is the committed configuration file inside Dir.
	FileName = "config.yaml"
	// ReplicaFile holds this clone's replica id inside Dir.
	ReplicaFile = "replica"
)

// Defaults.
const (
	DefaultEventsDir = Dir + "/events"
	DefaultCache     = Dir + "/cache.db"
	DefaultLogLevel  = "info"
)

// Config is the merged configuration.
type Config struct {
	Author    string `yaml:"author,omitempty"     env:"INTRACK_AUTHOR"`
	EventsDir string `yaml:"events_dir,omitempty" env:"INTRACK_EVENTS_DIR"`
	// Cache is the snapshot database path. An empty value in the file means
	// the default; "off" disables the cache.
	Cache    string `yaml:"cache,omitempty"     env:"INTRACK_CACHE"`
	LogLevel string `yaml:"log_level,omitempty" env:"INTRACK_LOG_LEVEL"`
	Table    Table  `yaml:"table,omitempty"`
}

// Table holds the default table layout.
type Table struct {
	Columns  []string `yaml:"columns,omitempty,flow"`
	SortBy   string   `yaml:"sort_by,omitempty"`
	SortDesc bool     `yaml:"sort_desc,omitempty"`
}

// CacheDisabled is the Cache value that turns the snapshot cache off.
const CacheDisabled = "off"

// ValidationError reports a configuration value rejected by the schema.
type ValidationError struct {
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads the configuration of the repository at root. A missing file
// yields the defaults. Environment variables override file values.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, Dir, FileName)
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := Validate(path, data); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.EventsDir == "" {
		c.EventsDir = DefaultEventsDir
	}
	if c.Cache == "" {
		c.Cache = DefaultCache
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Author == "" {
		c.Author = defaultAuthor()
	}
}

func defaultAuthor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}

// CacheEnabled reports whether snapshots should be cached.
func (c *Config) CacheEnabled() bool {
	return c.Cache != "" && c.Cache != CacheDisabled
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel parses debug, info, warn or error. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q: expected debug, info, warn or error", s)
}

// Validate checks YAML configuration data against the schema. Errors carry
// the position in filename.
func Validate(filename string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	f, err := cueyaml.Extract(filename, data)
	if err != nil {
		return formatCUEError(err)
	}
	v := ctx.BuildFile(f)
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	// An empty document has nothing to check.
	if k := v.IncompleteKind(); k == cue.NullKind || k == cue.BottomKind {
		return nil
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	var pos token.Pos
	for _, p := range cueerrors.Positions(first) {
		// Prefer the position in the config file over the one in the schema.
		if p.Filename() != "schema.cue" {
			pos = p
			break
		}
	}
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if path := first.Path(); len(path) > 0 {
		msg = strings.Join(path, ".") + ": " + msg
	}
	return &ValidationError{Message: msg, Pos: pos}
}
