package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrStoreClosed is returned by operations on a nil or closed Store.
var ErrStoreClosed = errors.New("storage: closed")

// Store keeps document records and settings in a SQLite database.
type Store struct {
	db *sql.DB

	mu        sync.RWMutex
	observers []Observer
}

// New opens (creating if needed) the database at dsn and brings its schema
// up to date. dsn is a file path, a file: URI, or ":memory:".
func New(dsn string) (*Store, error) {
	path, onDisk := dataFile(dsn)
	if onDisk {
		if err := createPrivate(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := configure(db, onDisk); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func configure(db *sql.DB, onDisk bool) error {
	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if onDisk {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	} else {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// dataFile reports the on-disk path behind dsn, if any.
func dataFile(dsn string) (string, bool) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "", dsn == ":memory:":
		return "", false
	case strings.HasPrefix(dsn, "file:"):
		u, err := url.Parse(dsn)
		if err != nil {
			return "", false
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" || path == ":memory:" || u.Query().Get("mode") == "memory" {
			return "", false
		}
		return path, true
	case strings.Contains(dsn, "://"):
		return "", false
	}
	return dsn, true
}

// createPrivate makes sure path and its directory exist and are readable
// by the owner only. Existing files are left untouched.
func createPrivate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, os.ErrExist):
		return nil
	default:
		return fmt.Errorf("create database file: %w", err)
	}
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddObserver registers o for every subsequent change.
func (s *Store) AddObserver(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// notify hands e to each observer on its own goroutine so a slow observer
// never holds up a write.
func (s *Store) notify(e Event) {
	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()
	for _, o := range observers {
		go o.HandleStorageEvent(e)
	}
}

func (s *Store) upsert(table, key, value string) error {
	_, err := s.db.Exec(`INSERT INTO `+table+` (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}

func (s *Store) open() error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	return nil
}
