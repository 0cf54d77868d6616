//go:build sqlite

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-less SQLite driver
)

// SQLiteAuditLogger is a SQLite-backed implementation of AuditLogger.
// The audit_logs table is created by the store's migrations.
type SQLiteAuditLogger struct {
	db *sql.DB
}

// NewSQLiteAuditLoggerFromDB creates a SQLite-backed audit logger on the store's connection.
func NewSQLiteAuditLoggerFromDB(db *sql.DB) *SQLiteAuditLogger {
	return &SQLiteAuditLogger{db: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *SQLiteAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var changesJSON sql.NullString
	if event.Changes != nil {
		if data, err := json.Marshal(event.Changes); err == nil {
			changesJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, changes, request_id, ip_address, status_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Actor,
		event.ActorType,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		nullString(event.ResourceName),
		changesJSON,
		nullString(event.RequestID),
		nullString(event.IPAddress),
		event.StatusCode,
	)
	return err
}

func (s *SQLiteAuditLogger) List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error) {
	opts = opts.normalize()
	where := "1=1"
	args := []any{}
	for _, f := range []struct{ col, val string }{
		{"actor", opts.Actor},
		{"action", opts.Action},
		{"resource_type", opts.ResourceType},
		{"resource_id", opts.ResourceID},
	} {
		if f.val != "" {
			where += " AND " + f.col + " = ?"
			args = append(args, f.val)
		}
	}
	if opts.Since != nil {
		where += " AND timestamp >= ?"
		args = append(args, opts.Since.UTC().Format(time.RFC3339Nano))
	}
	if opts.Until != nil {
		where += " AND timestamp <= ?"
		args = append(args, opts.Until.UTC().Format(time.RFC3339Nano))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, changes, request_id, ip_address, status_code FROM audit_logs WHERE " +
		where + " ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var e AuditEvent
		var timestamp string
		var resourceName, changesJSON, requestID, ipAddress sql.NullString
		if err := rows.Scan(&e.ID, &timestamp, &e.Actor, &e.ActorType, &e.Action, &e.ResourceType, &e.ResourceID, &resourceName, &changesJSON, &requestID, &ipAddress, &e.StatusCode); err != nil {
			return nil, 0, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		e.ResourceName = resourceName.String
		e.RequestID = requestID.String
		e.IPAddress = ipAddress.String
		if changesJSON.Valid && changesJSON.String != "" {
			var changes Changes
			if err := json.Unmarshal([]byte(changesJSON.String), &changes); err == nil {
				e.Changes = &changes
			}
		}
		events = append(events, &e)
	}
	return events, total, rows.Err()
}

func (s *SQLiteAuditLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditEvent, error) {
	events, _, err := s.List(ctx, ListOptions{ResourceType: resourceType, ResourceID: resourceID, Limit: 1000})
	return events, err
}
