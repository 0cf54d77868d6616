package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quotewizard/internal/catalog"
	"quotewizard/internal/domain"
	"quotewizard/internal/observability"
)

// ErrSubmissionFailed wraps any collaborator failure.
var ErrSubmissionFailed = errors.New("submission failed")

// SupportMessage is shown to the user whenever a submission fails.
const SupportMessage = "There was an error submitting your quote request. Please try again or contact us directly at support@houseofcompanies.io"

// Collaborator persists a finalized record into a named table.
type Collaborator interface {
	Insert(ctx context.Context, table string, record domain.QuoteRequest) error
}

// Submitter builds records and hands them to a Collaborator exactly once.
type Submitter struct {
	collab  Collaborator
	cat     *catalog.Catalog
	now     func() time.Time
	logger  observability.Logger
	metrics *observability.Metrics
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Submitter) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records submission outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Submitter) { s.metrics = m }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) { s.now = now }
}

// NewSubmitter returns a Submitter writing through c.
func NewSubmitter(c Collaborator, cat *catalog.Catalog, opts ...Option) *Submitter {
	s := &Submitter{
		collab: c,
		cat:    cat,
		now:    time.Now,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends the state of sessionID to the collaborator. There is no retry;
// a collaborator error is returned wrapped in ErrSubmissionFailed and the
// caller keeps its state untouched.
func (s *Submitter) Submit(ctx context.Context, sessionID string, state domain.WizardState) (domain.QuoteRequest, error) {
	rec, err := BuildRecord(s.cat, state, s.now())
	if err != nil {
		return domain.QuoteRequest{}, err
	}
	rec.SessionID = sessionID
	return s.SubmitRecord(ctx, rec)
}

// SubmitRecord inserts an already built record once. A missing ID or
// timestamp is filled in.
func (s *Submitter) SubmitRecord(ctx context.Context, rec domain.QuoteRequest) (domain.QuoteRequest, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.Source == "" {
		rec.Source = domain.SourceWizard
	}

	log := observability.FromContext(ctx, s.logger).WithComponent("submission")
	if err := s.collab.Insert(ctx, domain.QuoteRequestsTable, rec); err != nil {
		s.metrics.RecordSubmission(false)
		log.ErrorContext(ctx, "quote request submission failed", "error", err, "plan", rec.SelectedPlan, "source", rec.Source)
		return domain.QuoteRequest{}, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	s.metrics.RecordSubmission(true)
	log.InfoContext(ctx, "quote request submitted", "quote_request_id", rec.ID, "plan", rec.SelectedPlan, "total", rec.TotalAmount, "source", rec.Source)
	return rec, nil
}

// Now returns the submitter's clock reading.
func (s *Submitter) Now() time.Time { return s.now() }
