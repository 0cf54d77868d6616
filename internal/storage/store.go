// Package storage persists submitted quote requests and tutorials. It ships an
// in-memory store plus SQLite and PostgreSQL backends in sub-packages.
package storage

import (
	"context"
	"time"

	"quotewizard/internal/domain"
)

// Default and maximum page sizes for list queries.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// QuoteRequestStore persists finalized quote requests.
type QuoteRequestStore interface {
	// CreateQuoteRequest stores r and returns it with ID and CreatedAt set.
	CreateQuoteRequest(ctx context.Context, r domain.QuoteRequest) (domain.QuoteRequest, error)
	GetQuoteRequest(ctx context.Context, id string) (domain.QuoteRequest, error)
	// ListQuoteRequests returns one page, newest first, and the total match count.
	ListQuoteRequests(ctx context.Context, opts QuoteRequestListOptions) ([]domain.QuoteRequest, int, error)
}

// TutorialStore persists tutorials and their steps.
type TutorialStore interface {
	// ListTutorials returns every tutorial ordered by ID, steps ordered by step number.
	ListTutorials(ctx context.Context) ([]domain.Tutorial, error)
	GetTutorial(ctx context.Context, id int64) (domain.Tutorial, error)
	CreateTutorial(ctx context.Context, in domain.CreateTutorial) (domain.Tutorial, error)
}

// Store is the full storage interface used by the server.
type Store interface {
	QuoteRequestStore
	TutorialStore
	// Ping checks backend connectivity for /readyz.
	Ping(ctx context.Context) error
	Close() error
}

// QuoteRequestListOptions filters and paginates ListQuoteRequests.
type QuoteRequestListOptions struct {
	Limit  int
	Offset int
	// SelectedPlan filters by exact plan name.
	SelectedPlan string
	// Email filters by exact, case-insensitive address.
	Email string
	// Source filters by domain.SourceWizard or domain.SourceCart.
	Source string
	Since time.Time
	Until time.Time
}

// Normalize clamps the limit into [1, MaxListLimit] and the offset to >= 0.
func (o QuoteRequestListOptions) Normalize() QuoteRequestListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
