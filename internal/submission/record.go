// Package submission turns a finished wizard session into a quote request
// record and hands it to a Collaborator for persistence.
package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"quotewizard/internal/catalog"
	"quotewizard/internal/domain"
)

// ErrIncompleteRecord is returned when a state lacks contact details or a plan.
var ErrIncompleteRecord = errors.New("quote request incomplete")

// CartItem is one line of the serialized cart_items column.
type CartItem struct {
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Period string `json:"period"`
}

// BuildRecord flattens a priced wizard state into a quote request.
// The plan is the first cart line, followed by add-ons in selection order.
func BuildRecord(cat *catalog.Catalog, s domain.WizardState, now time.Time) (domain.QuoteRequest, error) {
	var missing []string
	if strings.TrimSpace(s.ContactInfo.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.ContactInfo.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(s.ContactInfo.Phone) == "" {
		missing = append(missing, "phone")
	}
	if s.Plan == "" {
		missing = append(missing, "plan")
	}
	if len(missing) > 0 {
		return domain.QuoteRequest{}, fmt.Errorf("%w: missing %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}

	cart := make([]CartItem, 0, len(s.AddOns)+1)
	planLine := CartItem{Name: s.Plan, Price: s.BasePrice}
	if p, ok := cat.Plan(s.Plan); ok {
		planLine.Period = p.Period
	}
	cart = append(cart, planLine)
	for _, a := range s.AddOns {
		line := CartItem{Name: a.Name, Price: a.Price}
		if ca, ok := cat.AddOn(a.Name); ok {
			line.Period = ca.Period
		}
		cart = append(cart, line)
	}
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("encode cart items: %w", err)
	}

	return domain.QuoteRequest{
		ID:              uuid.NewString(),
		Name:            s.ContactInfo.Name,
		Email:           s.ContactInfo.Email,
		Phone:           s.ContactInfo.Phone,
		SelectedPlan:    s.Plan,
		CartItems:       string(cartJSON),
		AddOns:          slices.Clone(s.AddOns),
		TotalAmount:     s.TotalPrice,
		BasePrice:       s.BasePrice,
		CountryFees:     slices.Clone(s.CountryFees),
		BusinessJourney: s.BusinessJourney,
		BasedIn:         s.Geography.BasedIn,
		ExpandTo:        slices.Clone(s.Geography.ExpandTo),
		Services:        slices.Clone(s.Services),
		Timeline:        s.Timeline,
		Website:         s.BusinessProfile.Website,
		LinkedIn:        s.BusinessProfile.LinkedIn,
		CompanySize:     s.BusinessProfile.CompanySize,
		Source:          domain.SourceWizard,
		CreatedAt:       now.UTC(),
	}, nil
}

// ParseRecord reverses BuildRecord. When the add_ons column is empty the
// add-ons are recovered from cart_items, skipping the leading plan line.
func ParseRecord(r domain.QuoteRequest) (domain.WizardState, error) {
	s := domain.NewWizardState()
	s.BusinessJourney = r.BusinessJourney
	s.Geography = domain.Geography{BasedIn: r.BasedIn, ExpandTo: nonNil(slices.Clone(r.ExpandTo))}
	s.Services = nonNil(slices.Clone(r.Services))
	s.BusinessProfile = domain.BusinessProfile{Website: r.Website, LinkedIn: r.LinkedIn, CompanySize: r.CompanySize}
	s.Timeline = r.Timeline
	s.Plan = r.SelectedPlan
	s.ContactInfo = domain.ContactInfo{Name: r.Name, Email: r.Email, Phone: r.Phone}
	s.BasePrice = r.BasePrice
	s.CountryFees = nonNil(slices.Clone(r.CountryFees))
	s.TotalPrice = r.TotalAmount

	if len(r.AddOns) > 0 {
		s.AddOns = slices.Clone(r.AddOns)
		return s, nil
	}
	if r.CartItems == "" {
		return s, nil
	}
	var cart []CartItem
	if err := json.Unmarshal([]byte(r.CartItems), &cart); err != nil {
		return domain.WizardState{}, fmt.Errorf("decode cart items: %w", err)
	}
	if len(cart) > 0 && cart[0].Name == r.SelectedPlan {
		cart = cart[1:]
	}
	for _, c := range cart {
		s.AddOns = append(s.AddOns, domain.AddOn{Name: c.Name, Price: c.Price})
	}
	return s, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
