//go:build sqlite && !postgres

package main

import (
	"quotewizard/internal/audit"
	"quotewizard/internal/observability"
	"quotewizard/internal/storage"
	sqlitestore "quotewizard/internal/storage/sqlite"
)

const defaultSQLiteDSN = "file:quotewizard.db?cache=shared&_pragma=foreign_keys(1)"

func sqliteDSN(cfg *Config) string {
	if cfg.SQLiteDSN != "" {
		return cfg.SQLiteDSN
	}
	return defaultSQLiteDSN
}

// selectBackend returns a SQLite-backed store and audit logger sharing one
// connection pool. Migrations run on open.
func selectBackend(cfg *Config, logger observability.Logger) (storage.Store, audit.AuditLogger) {
	dsn := sqliteDSN(cfg)
	st, err := sqlitestore.New(dsn)
	if err != nil {
		logger.Error("sqlite init failed; falling back to memory store", "error", err)
		return storage.NewMemoryStore(), audit.NewMemoryAuditLogger()
	}
	logger.Info("using sqlite store", "dsn", dsn)
	return st, audit.NewSQLiteAuditLoggerFromDB(st.DB())
}

func migrationStatus(cfg *Config) string {
	s, err := sqlitestore.Status(sqliteDSN(cfg))
	if err != nil {
		return ""
	}
	return s
}
