package api

import (
	"net/http"
	"strconv"
	"strings"

	"quotewizard/internal/audit"
	"quotewizard/internal/domain"
	"quotewizard/internal/tutorials"
)

// TutorialListResponse is the body of GET /api/v1/tutorials. Countries lists
// every country with at least one tutorial, before filtering.
type TutorialListResponse struct {
	Tutorials []domain.Tutorial `json:"tutorials"`
	Total     int               `json:"total"`
	Countries []string          `json:"countries"`
}

// handleTutorials serves the public list and the admin-only create.
func (s *Server) handleTutorials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTutorials(w, r)
	case http.MethodPost:
		s.admin(s.createTutorial).ServeHTTP(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

func (s *Server) listTutorials(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListTutorials(r.Context())
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	q := r.URL.Query()
	filtered := tutorials.Filter(all, q.Get("country"), q.Get("q"))
	countries := tutorials.Countries(all)
	if countries == nil {
		countries = []string{}
	}
	writeJSON(w, http.StatusOK, TutorialListResponse{
		Tutorials: filtered,
		Total:     len(filtered),
		Countries: countries,
	})
}

func (s *Server) createTutorial(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateTutorial
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := tutorials.ValidateCreate(in); err != nil {
		s.writeWizardErr(r.Context(), w, err)
		return
	}
	t, err := s.store.CreateTutorial(r.Context(), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	s.logAudit(r, audit.ActionCreate, audit.ResourceTutorial, strconv.FormatInt(t.ID, 10), t.Title, http.StatusCreated,
		&audit.Changes{After: map[string]any{"country": t.Country, "steps": len(t.Steps)}})
	w.Header().Set("Location", "/api/v1/tutorials/"+strconv.FormatInt(t.ID, 10))
	writeJSON(w, http.StatusCreated, t)
}

// handleTutorialByID serves GET /api/v1/tutorials/{id}.
func (s *Server) handleTutorialByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/tutorials/"), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid tutorial id", raw)
		return
	}
	t, err := s.store.GetTutorial(r.Context(), id)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
