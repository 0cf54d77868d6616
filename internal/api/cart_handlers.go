package api

import (
	"net/http"

	"quotewizard/internal/audit"
	"quotewizard/internal/cart"
	"quotewizard/internal/catalog"
)

// CartResponse is the priced form of a cart selection.
type CartResponse struct {
	Selection cart.Selection     `json:"selection"`
	Items     []catalog.CartLine `json:"items"`
	Totals    cart.Totals        `json:"totals"`
}

// CartQuoteRequest is the pricing page quote form together with the cart.
type CartQuoteRequest struct {
	Cart cart.Selection `json:"cart"`
	cart.Lead
}

func cartView(c *cart.Cart) CartResponse {
	return CartResponse{Selection: c.Selection(), Items: c.Items(), Totals: c.Totals()}
}

// handleCartTotals prices a cart selection.
func (s *Server) handleCartTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var sel cart.Selection
	if err := decodeJSON(w, r, &sel); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	c, err := cart.FromSelection(s.catalog, sel)
	if err != nil {
		s.writeWizardErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(c))
}

// handleCartQuote stores a quote request built from the cart and the
// name/company/email form.
func (s *Server) handleCartQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var in CartQuoteRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	c, err := cart.FromSelection(s.catalog, in.Cart)
	if err != nil {
		s.writeWizardErr(ctx, w, err)
		return
	}
	lead := in.Lead
	if err := lead.Validate(s.catalog, len(c.Items()) > 0, s.strict); err != nil {
		s.writeWizardErr(ctx, w, err)
		return
	}

	rec, err := cart.BuildRecord(c, lead, s.submitter.Now())
	if err == nil {
		rec, err = s.submitter.SubmitRecord(ctx, rec)
	}
	if err != nil {
		code, _, _, _ := classifyWizardErr(err)
		s.logAudit(r, audit.ActionSubmit, audit.ResourceQuoteRequest, "", lead.Email, code,
			&audit.Changes{After: map[string]any{"source": "cart", "error": err.Error()}})
		s.writeWizardErr(ctx, w, err)
		return
	}

	s.logAudit(r, audit.ActionSubmit, audit.ResourceQuoteRequest, rec.ID, rec.Email, http.StatusCreated,
		&audit.Changes{After: map[string]any{
			"source":            rec.Source,
			"selected_plan":     rec.SelectedPlan,
			"total_amount":      rec.TotalAmount,
			"gross_total_cents": rec.GrossTotalCents,
		}})

	redirect := s.dashboardURL
	if redirect == "" {
		redirect = "/"
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{QuoteRequest: rec, RedirectURL: redirect})
}
