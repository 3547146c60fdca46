package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const currentVersion = 2

const timeLayout = time.RFC3339Nano

type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := s.migrateV2(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS tracked_state (
		account_id  TEXT PRIMARY KEY,
		running     INTEGER NOT NULL DEFAULT 0,
		use_manual  INTEGER NOT NULL DEFAULT 0,
		start_time  TEXT,
		manual_now  TEXT,
		updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE TABLE IF NOT EXISTS daily_totals (
		account_id  TEXT NOT NULL,
		date        TEXT NOT NULL,
		amount      TEXT NOT NULL DEFAULT '0.00',
		updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
		PRIMARY KEY (account_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_totals_date ON daily_totals(account_id, date);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('manual_time',  '08:00:00'),
		('last_account', '');
	`
	_, err := s.db.Exec(ddl)
	return err
}

// migrateV2 adds stop time and write revisions. Existing rows keep version 1
// and are default-filled on load.
func (s *Store) migrateV2() error {
	const ddl = `
	ALTER TABLE tracked_state ADD COLUMN stop_time TEXT;
	ALTER TABLE tracked_state ADD COLUMN version  INTEGER NOT NULL DEFAULT 1;
	ALTER TABLE tracked_state ADD COLUMN revision INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE daily_totals  ADD COLUMN revision INTEGER NOT NULL DEFAULT 0;
	`
	_, err := s.db.Exec(ddl)
	return err
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	t = t.Local()
	return &t
}
