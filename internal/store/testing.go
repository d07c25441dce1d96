package store

import (
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"
)

// NewTestStore creates a Store backed by an in-memory database.
// This is only intended for use in tests.
func NewTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enabling foreign keys: %v", err)
	}
	if err := migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return &Store{db: db}
}

// MustInsertSession inserts a session or fails the test.
func MustInsertSession(t *testing.T, s *Store, sess *Session) int64 {
	t.Helper()
	id, err := s.InsertSession(sess)
	if err != nil {
		t.Fatalf("inserting session: %v", err)
	}
	return id
}

// Exec runs a raw statement against the store. Intended for tests and
// one-off maintenance.
func (s *Store) Exec(query string, args ...any) (sql.Result, error) {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return result, nil
}
