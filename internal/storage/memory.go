package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quotewizard/internal/domain"
)

// MemoryStore is an in-memory Store for quick start and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	requests  map[string]domain.QuoteRequest
	order     []string // insertion order of request IDs
	tutorials map[int64]domain.Tutorial
	nextTut   int64
	nextStep  int64
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:  make(map[string]domain.QuoteRequest),
		tutorials: make(map[int64]domain.Tutorial),
		nextTut:   1,
		nextStep:  1,
		now:       time.Now,
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

func (m *MemoryStore) CreateQuoteRequest(ctx context.Context, r domain.QuoteRequest) (domain.QuoteRequest, error) {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Name) == "" {
		return domain.QuoteRequest{}, fmt.Errorf("name and email required: %w", ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, dup := m.requests[r.ID]; dup {
		return domain.QuoteRequest{}, fmt.Errorf("quote request %s: %w", r.ID, ErrConflict)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now().UTC()
	}
	if r.Source == "" {
		r.Source = domain.SourceWizard
	}
	r = cloneRequest(r)
	m.requests[r.ID] = r
	m.order = append(m.order, r.ID)
	return cloneRequest(r), nil
}

func (m *MemoryStore) GetQuoteRequest(ctx context.Context, id string) (domain.QuoteRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return domain.QuoteRequest{}, fmt.Errorf("quote request %s: %w", id, ErrNotFound)
	}
	return cloneRequest(r), nil
}

func (m *MemoryStore) ListQuoteRequests(ctx context.Context, opts QuoteRequestListOptions) ([]domain.QuoteRequest, int, error) {
	opts = opts.Normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.QuoteRequest
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.requests[m.order[i]]
		if opts.SelectedPlan != "" && r.SelectedPlan != opts.SelectedPlan {
			continue
		}
		if opts.Email != "" && !strings.EqualFold(r.Email, opts.Email) {
			continue
		}
		if opts.Source != "" && r.Source != opts.Source {
			continue
		}
		if !opts.Since.IsZero() && r.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && r.CreatedAt.After(opts.Until) {
			continue
		}
		matched = append(matched, r)
	}
	// Newest first by CreatedAt, insertion order breaking ties.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if opts.Offset >= total {
		return []domain.QuoteRequest{}, total, nil
	}
	end := min(opts.Offset+opts.Limit, total)
	out := make([]domain.QuoteRequest, 0, end-opts.Offset)
	for _, r := range matched[opts.Offset:end] {
		out = append(out, cloneRequest(r))
	}
	return out, total, nil
}

func (m *MemoryStore) ListTutorials(ctx context.Context) ([]domain.Tutorial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Tutorial, 0, len(m.tutorials))
	for _, t := range m.tutorials {
		out = append(out, cloneTutorial(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetTutorial(ctx context.Context, id int64) (domain.Tutorial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tutorials[id]
	if !ok {
		return domain.Tutorial{}, fmt.Errorf("tutorial %d: %w", id, ErrNotFound)
	}
	return cloneTutorial(t), nil
}

func (m *MemoryStore) CreateTutorial(ctx context.Context, in domain.CreateTutorial) (domain.Tutorial, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Country) == "" {
		return domain.Tutorial{}, fmt.Errorf("title and country required: %w", ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := domain.Tutorial{
		ID:          m.nextTut,
		Title:       in.Title,
		Description: in.Description,
		Country:     in.Country,
		MainURL:     in.MainURL,
		Steps:       make([]domain.TutorialStep, 0, len(in.Steps)),
	}
	m.nextTut++
	for _, s := range in.Steps {
		t.Steps = append(t.Steps, domain.TutorialStep{
			ID:              m.nextStep,
			TutorialID:      t.ID,
			StepNumber:      s.StepNumber,
			StepTitle:       s.StepTitle,
			StepDescription: s.StepDescription,
			StepImageURL:    s.StepImageURL,
		})
		m.nextStep++
	}
	sort.SliceStable(t.Steps, func(i, j int) bool { return t.Steps[i].StepNumber < t.Steps[j].StepNumber })
	m.tutorials[t.ID] = t
	return cloneTutorial(t), nil
}

func cloneRequest(r domain.QuoteRequest) domain.QuoteRequest {
	r.AddOns = nonNil(slices.Clone(r.AddOns))
	r.CountryFees = nonNil(slices.Clone(r.CountryFees))
	r.ExpandTo = nonNil(slices.Clone(r.ExpandTo))
	r.Services = nonNil(slices.Clone(r.Services))
	return r
}

func cloneTutorial(t domain.Tutorial) domain.Tutorial {
	t.Steps = nonNil(slices.Clone(t.Steps))
	return t
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
