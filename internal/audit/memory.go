package audit

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEvents is the default maximum number of events to store.
const DefaultMaxEvents = 10000

// MemoryAuditLogger keeps events newest first and drops the oldest once
// maxEvents is exceeded. It is safe for concurrent use.
type MemoryAuditLogger struct {
	mu        sync.RWMutex
	events    []*AuditEvent
	maxEvents int
}

// MemoryAuditLoggerOption configures a MemoryAuditLogger.
type MemoryAuditLoggerOption func(*MemoryAuditLogger)

// WithMaxEvents sets the maximum number of events to store.
func WithMaxEvents(max int) MemoryAuditLoggerOption {
	return func(m *MemoryAuditLogger) {
		if max > 0 {
			m.maxEvents = max
		}
	}
}

// NewMemoryAuditLogger creates a new in-memory audit logger.
func NewMemoryAuditLogger(opts ...MemoryAuditLoggerOption) *MemoryAuditLogger {
	m := &MemoryAuditLogger{maxEvents: DefaultMaxEvents}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	m.events = append([]*AuditEvent{copyEvent(event)}, m.events...)
	if len(m.events) > m.maxEvents {
		m.events = m.events[:m.maxEvents]
	}
	return nil
}

func (m *MemoryAuditLogger) List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error) {
	opts = opts.normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []*AuditEvent
	for _, e := range m.events {
		if matchesFilters(e, opts) {
			filtered = append(filtered, e)
		}
	}
	total := len(filtered)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)

	out := make([]*AuditEvent, 0, end-start)
	for _, e := range filtered[start:end] {
		out = append(out, copyEvent(e))
	}
	return out, total, nil
}

func (m *MemoryAuditLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*AuditEvent
	for _, e := range m.events {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			result = append(result, copyEvent(e))
		}
	}
	return result, nil
}

func matchesFilters(e *AuditEvent, opts ListOptions) bool {
	switch {
	case opts.Actor != "" && e.Actor != opts.Actor:
		return false
	case opts.Action != "" && e.Action != opts.Action:
		return false
	case opts.ResourceType != "" && e.ResourceType != opts.ResourceType:
		return false
	case opts.ResourceID != "" && e.ResourceID != opts.ResourceID:
		return false
	case opts.Since != nil && e.Timestamp.Before(*opts.Since):
		return false
	case opts.Until != nil && e.Timestamp.After(*opts.Until):
		return false
	}
	return true
}

func copyEvent(e *AuditEvent) *AuditEvent {
	c := *e
	if e.Changes != nil {
		c.Changes = &Changes{Before: maps.Clone(e.Changes.Before), After: maps.Clone(e.Changes.After)}
	}
	return &c
}
