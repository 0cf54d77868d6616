package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quotewizard/internal/audit"
	"quotewizard/internal/domain"
	"quotewizard/internal/observability"
	"quotewizard/internal/pricing"
	"quotewizard/internal/wizard"
)

// SessionResponse is the wire view of a wizard session.
type SessionResponse struct {
	ID             string             `json:"id"`
	Step           int                `json:"step"`
	Progress       wizard.Progress    `json:"progress"`
	State          domain.WizardState `json:"state"`
	Generating     bool               `json:"generating"`
	SummaryReadyAt *time.Time         `json:"summary_ready_at,omitempty"`
	PricingError   string             `json:"pricing_error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// SubmitResponse is returned once a quote request has been accepted.
type SubmitResponse struct {
	QuoteRequest domain.QuoteRequest `json:"quote_request"`
	RedirectURL  string              `json:"redirect_url"`
}

func sessionView(sess *wizard.Session, c *wizard.Controller) SessionResponse {
	resp := SessionResponse{
		ID:         sess.ID,
		Step:       c.CurrentStep(),
		Progress:   c.Progress(),
		State:      c.Snapshot(),
		Generating: c.Generating(),
		CreatedAt:  sess.CreatedAt,
	}
	if at := c.SummaryReadyAt(); !at.IsZero() {
		resp.SummaryReadyAt = &at
	}
	if err := c.PricingError(); err != nil {
		resp.PricingError = err.Error()
	}
	return resp
}

// handleSessions handles POST /api/v1/quote/sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	sess := s.sessions.Create()
	r = r.WithContext(observability.WithSessionID(r.Context(), sess.ID))

	var resp SessionResponse
	_ = sess.Do(func(c *wizard.Controller) error {
		resp = sessionView(sess, c)
		return nil
	})
	s.logger.InfoContext(r.Context(), "wizard session started")
	s.logAudit(r, audit.ActionCreate, audit.ResourceSession, sess.ID, "", http.StatusCreated, nil)
	w.Header().Set("Location", "/api/v1/quote/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, resp)
}

// handleSessionSubroutes dispatches /api/v1/quote/sessions/{id}[/...].
func (s *Server) handleSessionSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/quote/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if parts[0] == "" {
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
		return
	}
	id := parts[0]
	r = r.WithContext(observability.WithSessionID(r.Context(), id))

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.getSession(w, r, id)
		case http.MethodDelete:
			s.deleteSession(w, r, id)
		default:
			w.Header().Set("Allow", "GET, DELETE")
			s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		}
	case len(parts) == 2 && parts[1] == "next":
		s.requireMethod(w, r, http.MethodPost, func() {
			s.mutateSession(w, r, id, func(c *wizard.Controller) error { c.NextStep(); return nil })
		})
	case len(parts) == 2 && parts[1] == "prev":
		s.requireMethod(w, r, http.MethodPost, func() {
			s.mutateSession(w, r, id, func(c *wizard.Controller) error { c.PrevStep(); return nil })
		})
	case len(parts) == 2 && parts[1] == "data":
		s.requireMethod(w, r, http.MethodPatch, func() { s.patchSessionData(w, r, id) })
	case len(parts) == 3 && parts[1] == "steps":
		s.requireMethod(w, r, http.MethodPost, func() { s.submitStep(w, r, id, parts[2]) })
	case len(parts) == 2 && parts[1] == "submit":
		s.requireMethod(w, r, http.MethodPost, func() { s.submitSession(w, r, id) })
	default:
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
	}
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string, fn func()) {
	if r.Method != method {
		w.Header().Set("Allow", method)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	fn()
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, id string) {
	s.mutateSession(w, r, id, func(*wizard.Controller) error { return nil })
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if !s.sessions.Delete(id) {
		s.writeWizardErr(r.Context(), w, wizard.ErrSessionNotFound)
		return
	}
	s.logger.InfoContext(r.Context(), "wizard session discarded")
	s.logAudit(r, audit.ActionDelete, audit.ResourceSession, id, "", http.StatusNoContent, nil)
	w.WriteHeader(http.StatusNoContent)
}

// mutateSession runs fn under the session lock and answers with the
// resulting view. An error from fn leaves the view unwritten.
func (s *Server) mutateSession(w http.ResponseWriter, r *http.Request, id string, fn func(c *wizard.Controller) error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeWizardErr(r.Context(), w, err)
		return
	}
	var resp SessionResponse
	err = sess.Do(func(c *wizard.Controller) error {
		if err := fn(c); err != nil {
			return err
		}
		resp = sessionView(sess, c)
		return nil
	})
	if err != nil {
		s.writeWizardErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) patchSessionData(w http.ResponseWriter, r *http.Request, id string) {
	var p domain.DataPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if p.AddOns != nil {
		lines, err := s.catalogAddOns(*p.AddOns)
		if err != nil {
			s.writeWizardErr(r.Context(), w, err)
			return
		}
		p.AddOns = &lines
	}
	s.mutateSession(w, r, id, func(c *wizard.Controller) error {
		c.UpdateUserData(p.Update())
		return nil
	})
}

// catalogAddOns replaces client-supplied add-on prices with catalog prices.
func (s *Server) catalogAddOns(in []domain.AddOn) ([]domain.AddOn, error) {
	out := make([]domain.AddOn, 0, len(in))
	for _, a := range in {
		known, ok := s.catalog.AddOn(a.Name)
		if !ok {
			return nil, fmt.Errorf("%w: add-on %q", wizard.ErrInvalidChoice, a.Name)
		}
		out = append(out, known.Line())
	}
	return out, nil
}

func (s *Server) submitStep(w http.ResponseWriter, r *http.Request, id, rawStep string) {
	n, err := strconv.Atoi(rawStep)
	if err != nil || n < wizard.FirstStep || n >= wizard.StepSummary {
		s.writeErr(r.Context(), w, http.StatusNotFound, "unknown step", rawStep)
		return
	}
	var in wizard.StepInput
	if err := decodeJSON(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	s.mutateSession(w, r, id, func(c *wizard.Controller) error {
		return wizard.Submit(c, n, in)
	})
}

// submitSession hands the summary to the submitter. The session lock is held
// for the whole attempt so a session is submitted at most once at a time.
// On success the session is discarded; on failure it keeps its state.
func (s *Server) submitSession(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeWizardErr(ctx, w, err)
		return
	}

	var rec domain.QuoteRequest
	err = sess.Do(func(c *wizard.Controller) error {
		if c.CurrentStep() != wizard.StepSummary {
			return &wizard.StepError{Want: wizard.StepSummary, Current: c.CurrentStep()}
		}
		if err := c.PricingError(); err != nil {
			return err
		}
		state := c.Snapshot()
		if _, err := pricing.Verify(s.catalog, state); err != nil {
			return err
		}
		var err error
		rec, err = s.submitter.Submit(ctx, id, state)
		return err
	})
	if err != nil {
		code, _, _, _ := classifyWizardErr(err)
		s.logAudit(r, audit.ActionSubmit, audit.ResourceSession, id, "", code,
			&audit.Changes{After: map[string]any{"error": err.Error()}})
		s.writeWizardErr(ctx, w, err)
		return
	}

	s.sessions.Delete(id)
	s.logAudit(r, audit.ActionSubmit, audit.ResourceQuoteRequest, rec.ID, rec.Email, http.StatusCreated,
		&audit.Changes{After: map[string]any{"selected_plan": rec.SelectedPlan, "total_amount": rec.TotalAmount}})

	redirect := s.dashboardURL
	if redirect == "" {
		redirect = "/"
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{QuoteRequest: rec, RedirectURL: redirect})
}
