package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/intrack/internal/projector"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - snapshots table
const currentSchemaVersion = 1

// snapshotFormat versions the encoding of the state column. Rows written in
// another format are treated as missing.
const snapshotFormat = 1

// Cache stores snapshots in SQLite with WAL mode.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the cache database at path and applies migrations.
// It is safe to call on an existing database.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	// A newer binary wrote this cache. Its contents are disposable.
	if version > currentSchemaVersion {
		if _, err := db.Exec("DROP TABLE IF EXISTS snapshots"); err != nil {
			return fmt.Errorf("reset cache: %w", err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// SaveSnapshot stores snap under key, replacing any previous snapshot.
func (c *Cache) SaveSnapshot(ctx context.Context, key string, snap projector.Snapshot) error {
	if snap.State == nil {
		return fmt.Errorf("save snapshot %q: empty snapshot", key)
	}
	state, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	head := ""
	if n := len(snap.State.Order); n > 0 {
		head = snap.State.Order[n-1]
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, format, events, head, state, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			format = excluded.format,
			events = excluded.events,
			head = excluded.head,
			state = excluded.state,
			saved_at = excluded.saved_at
	`, key, snapshotFormat, snap.Len(), head, state, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under key. The boolean is false
// when there is none or it was written in another format.
func (c *Cache) LoadSnapshot(ctx context.Context, key string) (projector.Snapshot, bool, error) {
	var (
		format int
		events int
		state  []byte
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT format, events, state FROM snapshots WHERE key = ?", key,
	).Scan(&format, &events, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return projector.Snapshot{}, false, nil
	}
	if err != nil {
		return projector.Snapshot{}, false, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	if format != snapshotFormat {
		return projector.Snapshot{}, false, nil
	}

	var s projector.State
	if err := json.Unmarshal(state, &s); err != nil {
		return projector.Snapshot{}, false, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	if s.Len() != events {
		return projector.Snapshot{}, false, fmt.Errorf("load snapshot %q: has %d events, expected %d", key, s.Len(), events)
	}
	return projector.Snapshot{State: &s}, true, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (c *Cache) verifyPragma(name, expected string) error {
	var value string
	if err := c.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
