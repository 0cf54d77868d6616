//go:build postgres

package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quotewizard/internal/storage"
	pgmigrations "quotewizard/migrations/postgres"
)

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version     BIGINT PRIMARY KEY,
	name        TEXT NOT NULL,
	app_version TEXT NOT NULL DEFAULT 'dev',
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migrationLockID serializes migrators started by concurrent replicas.
const migrationLockID = 0x71756f7465

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return runMigrationsFS(ctx, pool, pgmigrations.Files)
}

// runMigrationsFS applies each pending *.up.sql file of fsys in its own
// transaction while holding an advisory lock.
func runMigrationsFS(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() { _, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID) }()

	if _, err := conn.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	st, err := migrationStatus(ctx, conn.Conn(), fsys)
	if err != nil {
		return err
	}
	for _, f := range st.Pending {
		if err := applyMigration(ctx, conn.Conn(), fsys, f); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, conn *pgx.Conn, fsys fs.FS, f storage.MigrationFile) error {
	b, err := fs.ReadFile(fsys, f.Name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", f.Name, err)
	}
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if stmt := strings.TrimSpace(string(b)); stmt != "" {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s failed: %w", f.Name, err)
			}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, name, app_version, applied_at) VALUES($1, $2, $3, $4)`,
			f.Version, f.Name, storage.AppVersion(), time.Now().UTC()); err != nil {
			return fmt.Errorf("record migration %s: %w", f.Name, err)
		}
		return nil
	})
}

type migrationQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func migrationStatus(ctx context.Context, q migrationQuerier, fsys fs.FS) (storage.MigrationStatus, error) {
	files, err := storage.ListMigrations(fsys, ".up.sql")
	if err != nil {
		return storage.MigrationStatus{}, err
	}
	rows, err := q.Query(ctx, `SELECT version, name, app_version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return storage.MigrationStatus{}, fmt.Errorf("query applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.AppliedMigration, error) {
		var a storage.AppliedMigration
		err := row.Scan(&a.Version, &a.Name, &a.AppVersion, &a.AppliedAt)
		return a, err
	})
	if err != nil {
		return storage.MigrationStatus{}, fmt.Errorf("scan applied migrations: %w", err)
	}
	return storage.NewMigrationStatus(files, applied), nil
}

// Migrations reports which embedded migrations this database has applied.
func (s *Store) Migrations(ctx context.Context) (storage.MigrationStatus, error) {
	return migrationStatus(ctx, s.pool, pgmigrations.Files)
}

// Status connects to connStr and summarizes its schema_migrations table
// against the embedded migrations without applying any.
func Status(connStr string) (string, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return "", err
	}
	defer pool.Close()
	st, err := migrationStatus(ctx, pool, pgmigrations.Files)
	if err != nil {
		return "", err
	}
	return st.String(), nil
}
