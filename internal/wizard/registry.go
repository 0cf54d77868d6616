package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"quotewizard/internal/catalog"
	"quotewizard/internal/observability"
	"quotewizard/internal/pricing"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 30 * time.Minute

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is one browser's wizard. All access goes through Do, which holds
// the session mutex so each session has a single writer at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	ctrl     *Controller
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session's controller.
func (s *Session) Do(fn func(c *Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSessionTTL sets the idle timeout. Non-positive values are ignored.
func WithSessionTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRegistryClock overrides time.Now for expiry decisions.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithMetrics reports session counts and generated quotes to m.
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(l observability.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithControllerOptions applies opts to every controller the registry creates.
func WithControllerOptions(opts ...ControllerOption) RegistryOption {
	return func(r *Registry) { r.ctrlOpts = append(r.ctrlOpts, opts...) }
}

// Registry holds live wizard sessions in memory. Nothing is persisted; a
// session disappears when deleted or after ttl of inactivity.
type Registry struct {
	cat      *catalog.Catalog
	ttl      time.Duration
	now      func() time.Time
	metrics  *observability.Metrics
	logger   observability.Logger
	ctrlOpts []ControllerOption

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(cat *catalog.Catalog, opts ...RegistryOption) *Registry {
	r := &Registry{
		cat:      cat,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		logger:   observability.NopLogger(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the idle timeout.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Create starts a new session on step 1.
func (r *Registry) Create() *Session {
	now := r.now()
	opts := append([]ControllerOption{WithClock(r.now)}, r.ctrlOpts...)
	if r.metrics != nil {
		m := r.metrics
		opts = append(opts, WithQuoteHook(func(pricing.Quote) { m.RecordQuoteGenerated() }))
	}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ctrl:      NewController(r.cat, opts...),
		lastSeen:  now,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.metrics.SessionStarted()
	return s
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	if now.Sub(s.idleSince()) > r.ttl {
		r.remove(id)
		return nil, ErrSessionNotFound
	}
	s.touch(now)
	return s, nil
}

// Delete discards a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	return r.remove(id)
}

func (r *Registry) remove(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		r.metrics.SessionEnded()
	}
	return ok
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.RLock()
	var expired []string
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range expired {
		if r.remove(id) {
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("expired wizard sessions removed", "count", n, "remaining", r.Len())
			}
		}
	}
}
