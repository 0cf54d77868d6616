// Package pricing computes quote totals from a plan, add-ons and expansion countries.
package pricing

import (
	"errors"
	"fmt"

	"quotewizard/internal/catalog"
	"quotewizard/internal/domain"
)

// FallbackPlan is priced when no plan has been chosen.
const FallbackPlan = "Free Plan"

var (
	// ErrUnknownPlan is returned for a non-empty plan name missing from the catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrQuoteMismatch is returned by Verify when the stored totals do not
	// match a fresh calculation from the catalog.
	ErrQuoteMismatch = errors.New("quote does not match catalog prices")
)

// Quote is the output of Calculate.
type Quote struct {
	Plan        string              `json:"plan"`
	BasePrice   int64               `json:"base_price"`
	AddOnTotal  int64               `json:"add_on_total"`
	CountryFees []domain.CountryFee `json:"country_fees"`
	TotalPrice  int64               `json:"total_price"`
	// PlanDefaulted is set when plan was empty and FallbackPlan was priced.
	PlanDefaulted bool `json:"plan_defaulted,omitempty"`
}

// CountryFeeTotal sums the per-country fees.
func (q Quote) CountryFeeTotal() int64 {
	var total int64
	for _, f := range q.CountryFees {
		total += f.Fee
	}
	return total
}

// Calculate prices a selection. Country fees follow the order of expandTo and
// unknown countries use the catalog's default fee.
//
//	total = base(plan) + sum(addOns.price) + sum(countryFees.fee)
func Calculate(cat *catalog.Catalog, plan string, addOns []domain.AddOn, expandTo []string) (Quote, error) {
	q := Quote{Plan: plan, CountryFees: make([]domain.CountryFee, 0, len(expandTo))}

	if plan == "" {
		q.Plan = FallbackPlan
		q.PlanDefaulted = true
	}
	base, ok := cat.PlanPrice(q.Plan)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	q.BasePrice = base

	for _, a := range addOns {
		q.AddOnTotal += a.Price
	}
	for _, country := range expandTo {
		q.CountryFees = append(q.CountryFees, domain.CountryFee{Country: country, Fee: cat.CountryFee(country)})
	}
	q.TotalPrice = q.BasePrice + q.AddOnTotal + q.CountryFeeTotal()
	return q, nil
}

// ForState prices the plan, add-ons and expansion countries held in s.
func ForState(cat *catalog.Catalog, s domain.WizardState) (Quote, error) {
	return Calculate(cat, s.Plan, s.AddOns, s.Geography.ExpandTo)
}

// Update returns the partial that writes q's derived fields back into wizard state.
func (q Quote) Update() domain.WizardUpdate {
	fees := append([]domain.CountryFee{}, q.CountryFees...)
	base, total, defaulted := q.BasePrice, q.TotalPrice, q.PlanDefaulted
	return domain.WizardUpdate{
		BasePrice:     &base,
		CountryFees:   &fees,
		TotalPrice:    &total,
		PlanDefaulted: &defaulted,
	}
}

// Verify recomputes the quote for s from catalog prices and checks it
// against the derived fields stored in s. Add-ons must exist in the catalog
// at their catalog price.
func Verify(cat *catalog.Catalog, s domain.WizardState) (Quote, error) {
	for _, a := range s.AddOns {
		want, ok := cat.AddOn(a.Name)
		if !ok {
			return Quote{}, fmt.Errorf("%w: unknown add-on %q", ErrQuoteMismatch, a.Name)
		}
		if want.Price != a.Price {
			return Quote{}, fmt.Errorf("%w: add-on %q priced %d, catalog says %d", ErrQuoteMismatch, a.Name, a.Price, want.Price)
		}
	}
	q, err := ForState(cat, s)
	if err != nil {
		return Quote{}, err
	}
	switch {
	case q.BasePrice != s.BasePrice:
		return q, fmt.Errorf("%w: base price %d, expected %d", ErrQuoteMismatch, s.BasePrice, q.BasePrice)
	case q.TotalPrice != s.TotalPrice:
		return q, fmt.Errorf("%w: total %d, expected %d", ErrQuoteMismatch, s.TotalPrice, q.TotalPrice)
	case q.PlanDefaulted != s.PlanDefaulted:
		return q, fmt.Errorf("%w: plan_defaulted %t, expected %t", ErrQuoteMismatch, s.PlanDefaulted, q.PlanDefaulted)
	case !sameFees(q.CountryFees, s.CountryFees):
		return q, fmt.Errorf("%w: country fees differ", ErrQuoteMismatch)
	}
	return q, nil
}

func sameFees(a, b []domain.CountryFee) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
