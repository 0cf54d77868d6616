package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"quotewizard/internal/audit"
	"quotewizard/internal/domain"
	"quotewizard/internal/storage"
)

// handleQuoteRequestList serves GET /api/v1/quote-requests for admins.
// Filters: plan, email, source, since, until (RFC 3339); pagination: limit, offset.
func (s *Server) handleQuoteRequestList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	q := r.URL.Query()
	opts := storage.QuoteRequestListOptions{
		SelectedPlan: q.Get("plan"),
		Email:        q.Get("email"),
		Source:       q.Get("source"),
	}
	if opts.Source != "" && opts.Source != domain.SourceWizard && opts.Source != domain.SourceCart {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid source", opts.Source)
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid offset", v)
			return
		}
		opts.Offset = n
	}
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{{"since", &opts.Since}, {"until", &opts.Until}} {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid "+f.name, "expected RFC 3339 timestamp")
			return
		}
		*f.dst = t
	}
	opts = opts.Normalize()

	items, total, err := s.store.ListQuoteRequests(r.Context(), opts)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	s.logAudit(r, audit.ActionRead, audit.ResourceQuoteRequest, "", "", http.StatusOK, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// handleQuoteRequestGet serves GET /api/v1/quote-requests/{id} for admins.
func (s *Server) handleQuoteRequestGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/quote-requests/"), "/")
	if id == "" || strings.Contains(id, "/") {
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
		return
	}
	rec, err := s.store.GetQuoteRequest(r.Context(), id)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	s.logAudit(r, audit.ActionRead, audit.ResourceQuoteRequest, rec.ID, rec.Email, http.StatusOK, nil)
	writeJSON(w, http.StatusOK, rec)
}
