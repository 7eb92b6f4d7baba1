package storage

import (
	"strings"
	"time"
)

// GetSettings returns the stored values for keys. Keys without a value are
// absent from the map.
func (s *Store) GetSettings(keys []string) (map[string]string, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if wanted[k] {
			out[k] = v
		}
	}
	return out, rows.Err()
}

// SetSetting stores a trimmed value for key. A blank value removes the
// setting; a blank key is ignored.
func (s *Store) SetSetting(key, value string) error {
	if err := s.open(); err != nil {
		return err
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return nil
	}
	var err error
	if value == "" {
		_, err = s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	} else {
		err = s.upsert("settings", key, value)
	}
	if err != nil {
		return err
	}
	s.notify(Event{Op: OpSetting, Key: key, Size: len(value), At: time.Now()})
	return nil
}
