//go:build sqlite && postgres

package main

import (
	"quotewizard/internal/audit"
	"quotewizard/internal/observability"
	"quotewizard/internal/storage"
	pgstore "quotewizard/internal/storage/postgres"
	sqlitestore "quotewizard/internal/storage/sqlite"
)

const defaultSQLiteDSN = "file:quotewizard.db?cache=shared&_pragma=foreign_keys(1)"

func sqliteDSN(cfg *Config) string {
	if cfg.SQLiteDSN != "" {
		return cfg.SQLiteDSN
	}
	return defaultSQLiteDSN
}

// selectBackend picks PostgreSQL when a database URL is configured,
// otherwise SQLite, falling back to memory if both fail.
func selectBackend(cfg *Config, logger observability.Logger) (storage.Store, audit.AuditLogger) {
	if cfg.DatabaseURL != "" {
		st, err := pgstore.New(cfg.DatabaseURL)
		if err == nil {
			logger.Info("using postgres store")
			return st, audit.NewPostgresAuditLoggerFromPool(st.Pool())
		}
		logger.Error("postgres init failed; falling back to sqlite", "error", err)
	}
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
	if cfg.DatabaseURL != "" {
		if s, err := pgstore.Status(cfg.DatabaseURL); err == nil {
			return s
		}
	}
	s, err := sqlitestore.Status(sqliteDSN(cfg))
	if err != nil {
		return ""
	}
	return s
}
