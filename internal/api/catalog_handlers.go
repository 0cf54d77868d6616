package api

import (
	"net/http"

	"quotewizard/internal/domain"
	"quotewizard/internal/pricing"
)

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, s.catalog)
}

// EstimateRequest is the body of POST /api/v1/pricing/estimate. Add-ons are
// named; their prices come from the catalog.
type EstimateRequest struct {
	Plan     string   `json:"plan"`
	AddOns   []string `json:"add_ons"`
	ExpandTo []string `json:"expand_to"`
}

// handleEstimate prices a selection without touching any session.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var in EstimateRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	addOns := make([]domain.AddOn, 0, len(in.AddOns))
	for _, name := range in.AddOns {
		a, ok := s.catalog.AddOn(name)
		if !ok {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid choice", "unknown add-on "+name)
			return
		}
		addOns = append(addOns, a.Line())
	}

	q, err := pricing.Calculate(s.catalog, in.Plan, addOns, in.ExpandTo)
	if err != nil {
		s.writeWizardErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
