// Package cart implements the pricing page cart: one plan line, optional
// monthly add-ons sold only with the add-on plan, and VAT on the subtotal.
package cart

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
	"quotewizard/internal/submission"
	"quotewizard/internal/validation"
)

var (
	// ErrUnknownItem is returned for a plan or add-on the cart does not sell.
	ErrUnknownItem = errors.New("unknown cart item")
	// ErrAddOnUnavailable is returned when an add-on is chosen without the add-on plan.
	ErrAddOnUnavailable = errors.New("add-on not available for the selected plan")
	// ErrInvalidLead is returned when the quote form fails validation.
	ErrInvalidLead = errors.New("invalid quote request")
)

// Cart is a single visitor's cart. It is not safe for concurrent use.
type Cart struct {
	cat    *catalog.Catalog
	plan   *catalog.CartLine
	addOns []catalog.CartLine
}

// New returns an empty cart priced from cat.
func New(cat *catalog.Catalog) *Cart {
	return &Cart{cat: cat}
}

// AddPlan puts the named plan in the cart, replacing any earlier plan line.
// Switching away from the add-on plan drops the add-ons.
func (c *Cart) AddPlan(name string) error {
	line, ok := c.cat.CartPlan(name)
	if !ok {
		return fmt.Errorf("%w: plan %q", ErrUnknownItem, name)
	}
	if line.Name != c.cat.Cart.AddOnPlan {
		c.addOns = nil
	}
	c.plan = &line
	return nil
}

// ToggleAddOn adds the add-on when absent and removes it when present.
func (c *Cart) ToggleAddOn(idOrName string) error {
	line, err := c.addOnLine(idOrName)
	if err != nil {
		return err
	}
	if i := c.addOnIndex(line.Name); i >= 0 {
		c.addOns = slices.Delete(c.addOns, i, i+1)
		return nil
	}
	c.addOns = append(c.addOns, line)
	return nil
}

// AddAddOn adds the add-on unless it is already in the cart.
func (c *Cart) AddAddOn(idOrName string) error {
	line, err := c.addOnLine(idOrName)
	if err != nil {
		return err
	}
	if c.addOnIndex(line.Name) < 0 {
		c.addOns = append(c.addOns, line)
	}
	return nil
}

func (c *Cart) addOnLine(idOrName string) (catalog.CartLine, error) {
	line, ok := c.cat.CartAddOn(idOrName)
	if !ok {
		return catalog.CartLine{}, fmt.Errorf("%w: add-on %q", ErrUnknownItem, idOrName)
	}
	if c.plan == nil || c.plan.Name != c.cat.Cart.AddOnPlan {
		return catalog.CartLine{}, fmt.Errorf("%w: %s requires %s", ErrAddOnUnavailable, line.Name, c.cat.Cart.AddOnPlan)
	}
	return line, nil
}

func (c *Cart) addOnIndex(name string) int {
	return slices.IndexFunc(c.addOns, func(l catalog.CartLine) bool { return l.Name == name })
}

// Remove drops the i-th line of Items. Removing the plan line empties the cart.
func (c *Cart) Remove(i int) error {
	items := c.Items()
	if i < 0 || i >= len(items) {
		return fmt.Errorf("%w: no line %d", ErrUnknownItem, i)
	}
	if c.plan != nil && i == 0 {
		c.Clear()
		return nil
	}
	if c.plan != nil {
		i--
	}
	c.addOns = slices.Delete(c.addOns, i, i+1)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.plan = nil
	c.addOns = nil
}

// Plan returns the plan line name, or "" when the cart has none.
func (c *Cart) Plan() string {
	if c.plan == nil {
		return ""
	}
	return c.plan.Name
}

// Items returns the plan line followed by the add-ons in the order chosen.
func (c *Cart) Items() []catalog.CartLine {
	out := make([]catalog.CartLine, 0, len(c.addOns)+1)
	if c.plan != nil {
		out = append(out, *c.plan)
	}
	return append(out, c.addOns...)
}

// Totals is the cart summary. Subtotal is whole euros; VAT and the gross
// total are cents so a 21% rate stays exact.
type Totals struct {
	Subtotal   int64 `json:"subtotal"`
	VATPercent int64 `json:"vat_percent"`
	VATCents   int64 `json:"vat_cents"`
	TotalCents int64 `json:"total_cents"`
}

// Totals sums the line prices and applies the catalog VAT rate.
func (c *Cart) Totals() Totals {
	var sub int64
	for _, l := range c.Items() {
		sub += l.Price
	}
	return computeTotals(sub, c.cat.Cart.VATPercent)
}

func computeTotals(subtotal, vatPercent int64) Totals {
	vat := subtotal * vatPercent
	return Totals{
		Subtotal:   subtotal,
		VATPercent: vatPercent,
		VATCents:   vat,
		TotalCents: subtotal*100 + vat,
	}
}

// Selection is the wire form of a cart.
type Selection struct {
	Plan   string   `json:"plan,omitempty"`
	AddOns []string `json:"add_ons,omitempty"`
}

// FromSelection rebuilds a cart from its wire form. Repeated add-ons count once.
func FromSelection(cat *catalog.Catalog, sel Selection) (*Cart, error) {
	c := New(cat)
	if sel.Plan != "" {
		if err := c.AddPlan(sel.Plan); err != nil {
			return nil, err
		}
	}
	for _, a := range sel.AddOns {
		if err := c.AddAddOn(a); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Selection returns the wire form of c.
func (c *Cart) Selection() Selection {
	sel := Selection{Plan: c.Plan()}
	for _, a := range c.addOns {
		key := a.ID
		if key == "" {
			key = a.Name
		}
		sel.AddOns = append(sel.AddOns, key)
	}
	return sel
}

// Lead is the pricing page quote form.
type Lead struct {
	Name         string `json:"name"`
	Company      string `json:"company"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	SelectedPlan string `json:"selected_plan,omitempty"`
}

// Validate checks the form fields and fills in the selected plan label.
// An empty label becomes "Custom Plan" for a non-empty cart and
// "Enterprise Plan" otherwise.
func (l *Lead) Validate(cat *catalog.Catalog, hasItems bool, strictEmail bool) error {
	var errs []error
	if err := validation.ValidateName(l.Name); err != nil {
		errs = append(errs, err)
	}
	if err := validation.Required("company", l.Company, validation.MaxNameLength); err != nil {
		errs = append(errs, err)
	}
	if err := validation.ValidateEmail(l.Email, strictEmail); err != nil {
		errs = append(errs, err)
	}
	if l.Phone != "" {
		if err := validation.ValidatePhone(l.Phone, strictEmail); err != nil {
			errs = append(errs, err)
		}
	}
	if l.SelectedPlan == "" {
		l.SelectedPlan = "Enterprise Plan"
		if hasItems {
			l.SelectedPlan = "Custom Plan"
		}
	}
	if !cat.IsQuoteLabel(l.SelectedPlan) {
		errs = append(errs, fmt.Errorf("selected plan %q is not quotable", l.SelectedPlan))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidLead, errors.Join(errs...))
	}
	return nil
}

// BuildRecord turns a cart and a validated lead into a quote request.
// TotalAmount is the net subtotal; VAT is carried separately in cents.
func BuildRecord(c *Cart, lead Lead, now time.Time) (domain.QuoteRequest, error) {
	items := c.Items()
	lines := make([]submission.CartItem, 0, len(items))
	for _, l := range items {
		lines = append(lines, submission.CartItem{Name: l.Name, Price: l.Price, Period: l.Period})
	}
	cartJSON, err := json.Marshal(lines)
	if err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("encode cart items: %w", err)
	}

	addOns := make([]domain.AddOn, 0, len(c.addOns))
	for _, a := range c.addOns {
		addOns = append(addOns, domain.AddOn{Name: a.Name, Price: a.Price})
	}
	var base int64
	if c.plan != nil {
		base = c.plan.Price
	}
	t := c.Totals()
	return domain.QuoteRequest{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(lead.Name),
		Email:           strings.TrimSpace(lead.Email),
		Phone:           strings.TrimSpace(lead.Phone),
		Company:         strings.TrimSpace(lead.Company),
		SelectedPlan:    lead.SelectedPlan,
		CartItems:       string(cartJSON),
		AddOns:          addOns,
		TotalAmount:     t.Subtotal,
		BasePrice:       base,
		CountryFees:     []domain.CountryFee{},
		ExpandTo:        []string{},
		Services:        []string{},
		Source:          domain.SourceCart,
		VATCents:        t.VATCents,
		GrossTotalCents: t.TotalCents,
		CreatedAt:       now.UTC(),
	}, nil
}
