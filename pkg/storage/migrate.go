package storage

import (
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var baseSchema string

type migration struct {
	version int
	name    string
	stmt    string
}

// Append only. A database records every version it has applied.
var migrations = []migration{
	{1, "initial_schema", baseSchema},
	{2, "records_updated_index", `CREATE INDEX IF NOT EXISTS idx_records_updated_at ON records(updated_at)`},
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func migrate(db *sql.DB) error {
	if _, err := db.Exec(migrationsTable); err != nil {
		return err
	}
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(m.stmt); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}

// AppliedMigration is a row of the migration history.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt string
}

// SchemaVersion returns the newest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	if err := s.open(); err != nil {
		return 0, err
	}
	return schemaVersion(s.db)
}

// Migrations returns the applied migrations, oldest first.
func (s *Store) Migrations() ([]AppliedMigration, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Version, &m.Name, &m.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
