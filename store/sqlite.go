package store

import (
	"database/sql"
	goerrors "errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/wippyai/script-host/errors"
)

// SQLiteStore keeps values in a single-table SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.IO(errors.PhaseStore, "create "+dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.IO(errors.PhaseStore, "open database", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.IO(errors.PhaseStore, "set busy timeout", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, errors.IO(errors.PhaseStore, "create table", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) GetInt64(key string) (int64, bool, error) {
	var v int64
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&v)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, errors.IO(errors.PhaseStore, "query "+key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SetInt64(key string, value int64) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO prefs (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return errors.IO(errors.PhaseStore, "save "+key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
