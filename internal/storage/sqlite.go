package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLite is a durable Area backed by a single SQLite table.
// Writes go through one connection; SQLite only supports a single writer.
type SQLite struct {
	db        *sql.DB
	mu        sync.RWMutex
	closeOnce sync.Once
	closed    bool

	getStmt    *sql.Stmt
	setStmt    *sql.Stmt
	removeStmt *sql.Stmt
}

// SQLiteOptions configures the SQLite area.
type SQLiteOptions struct {
	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

// sqliteDSN builds a file: URI for path. The path is percent-escaped so
// '?', '#' and '%' in file names reach SQLite intact.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	u := url.URL{
		Scheme:   "file",
		Path:     path,
		OmitHost: true,
		RawQuery: fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", busyTimeout.Milliseconds()),
	}
	return u.String()
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS items (
		key TEXT NOT NULL PRIMARY KEY,
		value TEXT NOT NULL
	);
	`)
	return err
}

func (s *SQLite) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`SELECT value FROM items WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.setStmt, err = s.db.Prepare(`
		INSERT INTO items (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare set statement: %w", err)
	}

	s.removeStmt, err = s.db.Prepare(`DELETE FROM items WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare remove statement: %w", err)
	}
	return nil
}

// Available reports whether the database is open and answering.
func (s *SQLite) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.db.Ping() == nil
}

func (s *SQLite) GetItem(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	var value string
	err := s.getStmt.QueryRow(key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get item: %w", err)
	}
	return value, true, nil
}

func (s *SQLite) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.setStmt.Exec(key, value); err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

func (s *SQLite) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.removeStmt.Exec(key); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

// Close releases the prepared statements and the database handle.
func (s *SQLite) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		for _, stmt := range []*sql.Stmt{s.getStmt, s.setStmt, s.removeStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
