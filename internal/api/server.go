// Package api exposes the quote wizard, the pricing calculator, tutorials and
// the admin views over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"quotewizard/internal/audit"
	"quotewizard/internal/auth"
	"quotewizard/internal/cart"
	"quotewizard/internal/catalog"
	"quotewizard/internal/observability"
	"quotewizard/internal/pricing"
	"quotewizard/internal/storage"
	"quotewizard/internal/submission"
	"quotewizard/internal/validation"
	"quotewizard/internal/wizard"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Options carries the Server's collaborators. Nil fields get working defaults
// except Store, which is required.
type Options struct {
	Store       storage.Store
	Catalog     *catalog.Catalog
	Sessions    *wizard.Registry
	Submitter   *submission.Submitter
	Logger      observability.Logger
	Metrics     *observability.Metrics
	AuditLogger audit.AuditLogger
	// AdminTokenHash is the bcrypt hash of the admin bearer token. Empty
	// disables the admin endpoints.
	AdminTokenHash []byte
	// DashboardURL is where GET /dashboard redirects.
	DashboardURL string
	// StrictContact applies format checks to the pricing page quote form.
	StrictContact bool
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	mux          *http.ServeMux
	store        storage.Store
	catalog      *catalog.Catalog
	sessions     *wizard.Registry
	submitter    *submission.Submitter
	logger       observability.Logger
	metrics      *observability.Metrics
	auditLogger  audit.AuditLogger
	adminHash    []byte
	dashboardURL string
	strict       bool
}

// NewServer creates a Server. Routes are added by RegisterRoutes.
func NewServer(mux *http.ServeMux, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.DefaultConfig())
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Sessions == nil {
		opts.Sessions = wizard.NewRegistry(opts.Catalog, wizard.WithMetrics(opts.Metrics), wizard.WithLogger(opts.Logger))
	}
	if opts.Submitter == nil {
		opts.Submitter = submission.NewSubmitter(submission.StoreCollaborator{Store: opts.Store}, opts.Catalog,
			submission.WithLogger(opts.Logger), submission.WithMetrics(opts.Metrics))
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = audit.NewMemoryAuditLogger()
	}
	return &Server{
		mux:          mux,
		store:        opts.Store,
		catalog:      opts.Catalog,
		sessions:     opts.Sessions,
		submitter:    opts.Submitter,
		logger:       opts.Logger.WithComponent("api"),
		metrics:      opts.Metrics,
		auditLogger:  opts.AuditLogger,
		adminHash:    opts.AdminTokenHash,
		dashboardURL: opts.DashboardURL,
		strict:       opts.StrictContact,
	}
}

// RegisterRoutes registers every route on the server's mux.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/openapi.yaml", s.handleOpenAPISpec)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.HandleFunc("/dashboard", s.handleDashboard)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("/api/v1/catalog", s.handleCatalog)
	s.mux.HandleFunc("/api/v1/pricing/estimate", s.handleEstimate)
	s.mux.HandleFunc("/api/v1/pricing/cart", s.handleCartTotals)
	s.mux.HandleFunc("/api/v1/pricing/cart/quote", s.handleCartQuote)

	s.mux.HandleFunc("/api/v1/quote/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/v1/quote/sessions/", s.handleSessionSubroutes)

	s.mux.HandleFunc("/api/v1/tutorials", s.handleTutorials)
	s.mux.HandleFunc("/api/v1/tutorials/", s.handleTutorialByID)

	s.mux.Handle("/api/v1/quote-requests", s.admin(s.handleQuoteRequestList))
	s.mux.Handle("/api/v1/quote-requests/", s.admin(s.handleQuoteRequestGet))
	s.mux.Handle("/api/v1/audit", s.admin(s.handleAuditList))
}

// admin wraps h with bearer token authentication.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return AdminAuthMiddleware(s.adminHash, s.logger.Slog())(h)
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
		} else {
			sentry.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
		}
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeStoreErr maps a storage-layer error to the appropriate HTTP status code
// and writes the error response. Unknown errors become 500.
func (s *Server) writeStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, storage.ErrConflict):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// classifyWizardErr maps wizard, pricing and submission errors to a status,
// message and detail. ok is false for errors it does not recognise.
func classifyWizardErr(err error) (code int, msg, detail string, ok bool) {
	var fieldErr *validation.FieldError
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		return http.StatusNotFound, "session not found", "", true
	case errors.Is(err, wizard.ErrWrongStep):
		return http.StatusConflict, "wrong step", err.Error(), true
	case errors.Is(err, wizard.ErrIncomplete):
		return http.StatusUnprocessableEntity, "step incomplete", err.Error(), true
	case errors.Is(err, wizard.ErrInvalidChoice), errors.Is(err, cart.ErrUnknownItem):
		return http.StatusBadRequest, "invalid choice", err.Error(), true
	case errors.Is(err, cart.ErrAddOnUnavailable):
		return http.StatusUnprocessableEntity, "add-on unavailable", err.Error(), true
	case errors.Is(err, cart.ErrInvalidLead):
		return http.StatusBadRequest, "invalid input", err.Error(), true
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest, "invalid input", fieldErr.Error(), true
	case errors.Is(err, pricing.ErrQuoteMismatch):
		return http.StatusConflict, "quote out of date", err.Error() + "; re-enter the summary step", true
	case errors.Is(err, pricing.ErrUnknownPlan):
		return http.StatusUnprocessableEntity, "quote unavailable", err.Error(), true
	case errors.Is(err, submission.ErrIncompleteRecord):
		return http.StatusUnprocessableEntity, "quote request incomplete", err.Error(), true
	case errors.Is(err, submission.ErrSubmissionFailed):
		return http.StatusBadGateway, "submission failed", submission.SupportMessage, true
	}
	return http.StatusInternalServerError, "", "", false
}

// writeWizardErr writes a classified error, deferring to writeStoreErr for
// anything classifyWizardErr does not know.
func (s *Server) writeWizardErr(ctx context.Context, w http.ResponseWriter, err error) {
	code, msg, detail, ok := classifyWizardErr(err)
	if !ok {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.writeErr(ctx, w, code, msg, detail)
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// logAudit records an audit event. The actor is the admin when the request
// was authenticated, else the wizard session bound to the context.
func (s *Server) logAudit(r *http.Request, action, resourceType, resourceID, resourceName string, statusCode int, changes *audit.Changes) {
	if s.auditLogger == nil {
		return
	}
	ctx := r.Context()

	actor := "anonymous"
	actorType := audit.ActorTypeAnonymous
	if a := auth.AdminFromContext(ctx); a != nil {
		actor = a.Name
		actorType = audit.ActorTypeAdmin
	} else if id := observability.SessionIDFromContext(ctx); id != "" {
		actor = id
		actorType = audit.ActorTypeSession
	}

	event := &audit.AuditEvent{
		Actor:        actor,
		ActorType:    actorType,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ResourceName: resourceName,
		Changes:      changes,
		RequestID:    RequestIDFromContext(ctx),
		IPAddress:    clientKeyWithProxies(r, nil),
		StatusCode:   statusCode,
	}
	if err := s.auditLogger.Log(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit log write failed", "error", err, "action", action)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }
