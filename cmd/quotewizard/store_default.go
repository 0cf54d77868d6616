//go:build !sqlite && !postgres

package main

import (
	"quotewizard/internal/audit"
	"quotewizard/internal/observability"
	"quotewizard/internal/storage"
)

// selectBackend returns the in-memory store when built without storage tags.
func selectBackend(cfg *Config, logger observability.Logger) (storage.Store, audit.AuditLogger) {
	if cfg.SQLiteDSN != "" || cfg.DatabaseURL != "" {
		logger.Warn("database configured, but binary not built with -tags sqlite or postgres; using in-memory store")
	}
	return storage.NewMemoryStore(), audit.NewMemoryAuditLogger()
}

// migrationStatus reports that this build has no schema.
func migrationStatus(*Config) string { return "" }
