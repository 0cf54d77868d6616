// Package audit records who did what to sessions, quote requests and
// tutorials so operators can reconstruct a lead's history.
package audit

import (
	"context"
	"time"
)

// AuditEvent represents a single auditable action.
type AuditEvent struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`         // session ID, "admin" or "anonymous"
	ActorType    string    `json:"actor_type"`    // "session", "admin" or "anonymous"
	Action       string    `json:"action"`        // "create", "delete", "submit", "read"
	ResourceType string    `json:"resource_type"` // "session", "quote_request", "tutorial"
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	Changes      *Changes  `json:"changes,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	StatusCode   int       `json:"status_code"`
}

// Changes captures the before and after state of a mutation.
type Changes struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
}

// ListOptions provides filtering and pagination options for listing audit events.
type ListOptions struct {
	Limit        int
	Offset       int
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Since        *time.Time
	Until        *time.Time
}

func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// AuditLogger defines the interface for audit logging operations.
type AuditLogger interface {
	// Log records an audit event, assigning ID and Timestamp when unset.
	Log(ctx context.Context, event *AuditEvent) error

	// List retrieves audit events newest first, with the total match count.
	List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error)

	// GetByResource retrieves audit events for a specific resource.
	GetByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditEvent, error)
}

// Actions.
const (
	ActionCreate = "create"
	ActionDelete = "delete"
	ActionSubmit = "submit"
	ActionRead   = "read" // only for listing submitted leads
)

// Resource types.
const (
	ResourceSession      = "session"
	ResourceQuoteRequest = "quote_request"
	ResourceTutorial     = "tutorial"
)

// Actor types.
const (
	ActorTypeSession   = "session"
	ActorTypeAdmin     = "admin"
	ActorTypeAnonymous = "anonymous"
)
