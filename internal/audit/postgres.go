//go:build postgres

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAuditLogger is a PostgreSQL-backed implementation of AuditLogger.
type PostgresAuditLogger struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditLoggerFromPool creates a PostgreSQL-backed audit logger using the store's pool.
func NewPostgresAuditLoggerFromPool(pool *pgxpool.Pool) *PostgresAuditLogger {
	return &PostgresAuditLogger{pool: pool}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostgresAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var changesJSON []byte
	if event.Changes != nil {
		changesJSON, _ = json.Marshal(event.Changes)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, changes, request_id, ip_address, status_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.Timestamp, event.Actor, event.ActorType, event.Action, event.ResourceType, event.ResourceID,
		nullable(event.ResourceName), changesJSON, nullable(event.RequestID), nullable(event.IPAddress), event.StatusCode,
	)
	return err
}

func (s *PostgresAuditLogger) List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error) {
	opts = opts.normalize()
	where := []string{"TRUE"}
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if opts.Actor != "" {
		add("actor = $%d", opts.Actor)
	}
	if opts.Action != "" {
		add("action = $%d", opts.Action)
	}
	if opts.ResourceType != "" {
		add("resource_type = $%d", opts.ResourceType)
	}
	if opts.ResourceID != "" {
		add("resource_id = $%d", opts.ResourceID)
	}
	if opts.Since != nil {
		add("timestamp >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		add("timestamp <= $%d", *opts.Until)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id::text, timestamp, actor, actor_type, action, resource_type, resource_id,
		resource_name, changes, request_id, ip_address, status_code
		FROM audit_logs WHERE %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, cond, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var e AuditEvent
		var resourceName, requestID, ipAddress *string
		var changesJSON []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.ActorType, &e.Action, &e.ResourceType, &e.ResourceID,
			&resourceName, &changesJSON, &requestID, &ipAddress, &e.StatusCode); err != nil {
			return nil, 0, err
		}
		e.Timestamp = e.Timestamp.UTC()
		if resourceName != nil {
			e.ResourceName = *resourceName
		}
		if requestID != nil {
			e.RequestID = *requestID
		}
		if ipAddress != nil {
			e.IPAddress = *ipAddress
		}
		if len(changesJSON) > 0 {
			var changes Changes
			if err := json.Unmarshal(changesJSON, &changes); err == nil {
				e.Changes = &changes
			}
		}
		events = append(events, &e)
	}
	return events, total, rows.Err()
}

func (s *PostgresAuditLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditEvent, error) {
	events, _, err := s.List(ctx, ListOptions{ResourceType: resourceType, ResourceID: resourceID, Limit: 1000})
	return events, err
}
