package storage

import (
	"database/sql"
	"errors"
	"time"
)

// Get returns the value stored under key, or ErrRecordNotFound.
func (s *Store) Get(key string) (string, error) {
	if err := s.open(); err != nil {
		return "", err
	}
	var value string
	switch err := s.db.QueryRow(`SELECT value FROM records WHERE key = ?`, key).Scan(&value); {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrRecordNotFound
	case err != nil:
		return "", err
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key, value string) error {
	if err := s.open(); err != nil {
		return err
	}
	if err := s.upsert("records", key, value); err != nil {
		return err
	}
	s.notify(Event{Op: OpWrite, Key: key, Size: len(value), At: time.Now()})
	return nil
}

// Delete removes key. A missing key is not an error and emits no event.
func (s *Store) Delete(key string) error {
	if err := s.open(); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM records WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(Event{Op: OpDelete, Key: key, At: time.Now()})
	}
	return nil
}
