package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is the PRAGMA user_version a fully migrated
// database reports.
//
//	0 - schema.sql as originally shipped
//	1 - covering index on diff_hunks(vt_start, tt_end)
const currentSchemaVersion = 1

// migrations upgrade databases created before the current version.
// schema.sql already contains every statement listed here, so each
// must be written to no-op on a fresh database.
var migrations = []struct {
	to    int
	stmts []string
}{
	{
		to: 1,
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_diff_hunks_visibility
			 ON diff_hunks(vt_start, tt_end)`,
		},
	},
}

// Store is the SQLite-backed bitemporal history repository. It
// implements the narrow read contracts of the rehydrator, the replay
// engine and the pruner, plus the write surface used by fixtures.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and brings it to the
// current schema version. ":memory:" gives a private in-memory
// database, which is how tests and the conformance harness run.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite allows one writer; a second connection would only turn
	// lock waits into SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for ad-hoc statements in tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// configure applies the session pragmas and brings the schema up to
// date.
func configure(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return migrate(db)
}

// migrate replays the migration list from the stored user_version and
// stamps the database with the version it ends up at.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if version >= m.to {
			continue
		}
		for _, stmt := range m.stmts {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("migrate to v%d: %w", m.to, err)
			}
		}
		version = m.to
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("stamp user_version: %w", err)
	}
	return nil
}

// verifyPragma reads one pragma back and compares it to the expected
// value, used by tests to pin the connection configuration.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, want %q", name, value, expected)
	}
	return nil
}
