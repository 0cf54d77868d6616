//go:build sqlite

package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"quotewizard/internal/storage"
	migfs "quotewizard/migrations"
)

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	app_version TEXT NOT NULL DEFAULT 'dev',
	applied_at  TEXT NOT NULL
)`

func runMigrations(db *sql.DB) error {
	return runMigrationsFS(db, migfs.Files)
}

// runMigrationsFS applies each pending file of fsys in its own transaction.
func runMigrationsFS(db *sql.DB, fsys fs.FS) error {
	if _, err := db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	st, err := migrationStatus(db, fsys)
	if err != nil {
		return err
	}
	for _, f := range st.Pending {
		if err := applyMigration(db, fsys, f); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, fsys fs.FS, f storage.MigrationFile) error {
	b, err := fs.ReadFile(fsys, f.Name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", f.Name, err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if stmt := strings.TrimSpace(string(b)); stmt != "" {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %s failed: %w", f.Name, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations(version, name, app_version, applied_at) VALUES(?, ?, ?, ?)`,
		f.Version, f.Name, storage.AppVersion(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record migration %s: %w", f.Name, err)
	}
	return tx.Commit()
}

func migrationStatus(db *sql.DB, fsys fs.FS) (storage.MigrationStatus, error) {
	files, err := storage.ListMigrations(fsys, ".sql")
	if err != nil {
		return storage.MigrationStatus{}, err
	}
	rows, err := db.Query(`SELECT version, name, app_version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return storage.MigrationStatus{}, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()
	var applied []storage.AppliedMigration
	for rows.Next() {
		var a storage.AppliedMigration
		var at string
		if err := rows.Scan(&a.Version, &a.Name, &a.AppVersion, &at); err != nil {
			return storage.MigrationStatus{}, err
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, at)
		applied = append(applied, a)
	}
	if err := rows.Err(); err != nil {
		return storage.MigrationStatus{}, err
	}
	return storage.NewMigrationStatus(files, applied), nil
}

// Migrations reports which embedded migrations this database has applied.
func (s *Store) Migrations() (storage.MigrationStatus, error) {
	return migrationStatus(s.db, migfs.Files)
}
