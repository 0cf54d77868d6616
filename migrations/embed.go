// Package migrations embeds the SQLite schema migrations.
package migrations

import "embed"

// Files holds the numbered NNN_name.sql migrations applied in order.
//
//go:embed *.sql
var Files embed.FS
