// Package postgres embeds the PostgreSQL schema migrations.
package postgres

import "embed"

// Files holds the numbered NNN_name.up.sql migrations applied in order.
//
//go:embed *.up.sql
var Files embed.FS
