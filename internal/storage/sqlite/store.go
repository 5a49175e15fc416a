// Package sqlite provides the SQLite-backed implementation of the
// coordination store. Multi-document batches run in one transaction, and
// array-typed fields on shared documents are mutated inside transactions so
// concurrent writers serialize instead of losing updates.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/wyrmtable/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/wyrmtable/internal/storage"
	"github.com/louisbranch/wyrmtable/internal/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists coordination state in SQLite.
type Store struct {
	sqlDB    *sql.DB
	notifier storage.Notifier
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier wires committed-change notifications into the given notifier.
func WithNotifier(notifier storage.Notifier) Option {
	return func(s *Store) {
		s.notifier = notifier
	}
}

// WithClock overrides the clock used to stamp change notifications.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite coordination store and applies embedded migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store := &Store{sqlDB: sqlDB, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if store.now == nil {
		store.now = time.Now
	}
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// publish emits one committed-change notification. Calls happen only after
// the underlying write committed.
func (s *Store) publish(collection storage.Collection, kind storage.ChangeKind, campaignID, docID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(storage.Change{
		Collection: collection,
		Kind:       kind,
		CampaignID: campaignID,
		DocID:      docID,
		At:         s.now().UTC(),
	})
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(data), nil
}

// encodeStrings encodes a string slice as a JSON array, never null, so
// json_each queries over the column always see an array.
func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	return encodeJSON(values)
}

func decodeJSON(data string, target any) error {
	if strings.TrimSpace(data) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
