// Package catalog holds the fixed tables the quote wizard prices and validates
// against: plans, add-ons, per-country registration fees and the option lists
// shown on each step. A Catalog is immutable once loaded.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"quotewizard/internal/domain"
)

//go:embed catalog.yaml
var defaultYAML []byte

// ErrInvalidCatalog is returned when a catalog document fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Plan is one of the three service tiers.
type Plan struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Subtitle      string   `yaml:"subtitle" json:"subtitle"`
	Price         int64    `yaml:"price" json:"price"`
	OriginalPrice int64    `yaml:"original_price" json:"original_price,omitempty"`
	DisplayPrice  string   `yaml:"display_price" json:"display_price"`
	Period        string   `yaml:"period" json:"period"`
	Badge         string   `yaml:"badge" json:"badge"`
	Popular       bool     `yaml:"popular" json:"popular"`
	Features      []string `yaml:"features" json:"features"`
}

// AddOn is an optional yearly service.
type AddOn struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Price   int64  `yaml:"price" json:"price"`
	Period  string `yaml:"period" json:"period"`
	Popular bool   `yaml:"popular" json:"popular"`
}

// Line converts the add-on into the priced line stored in wizard state.
func (a AddOn) Line() domain.AddOn {
	return domain.AddOn{Name: a.Name, Price: a.Price}
}

// Country carries the registration fee used for pricing plus the
// informational government, branch and VAT fees shown on country pages.
type Country struct {
	Name      string `yaml:"name" json:"name"`
	Fee       int64  `yaml:"fee" json:"fee"`
	GovtFee   int64  `yaml:"govt_fee" json:"govt_fee"`
	BranchFee int64  `yaml:"branch_fee" json:"branch_fee"`
	VATFee    int64  `yaml:"vat_fee" json:"vat_fee"`
}

// CartLine is a plan or add-on sold through the pricing page cart.
type CartLine struct {
	ID          string `yaml:"id" json:"id,omitempty"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Price       int64  `yaml:"price" json:"price"`
	Period      string `yaml:"period" json:"period"`
}

// Cart configures the pricing page cart.
type Cart struct {
	VATPercent int64      `yaml:"vat_percent" json:"vat_percent"`
	AddOnPlan  string     `yaml:"add_on_plan" json:"add_on_plan"`
	Plans      []CartLine `yaml:"plans" json:"plans"`
	AddOns     []CartLine `yaml:"add_ons" json:"add_ons"`
	// QuoteLabels are the selected_plan values a cart quote request may carry.
	QuoteLabels []string `yaml:"quote_labels" json:"quote_labels"`
}

// Option is an id/title pair for single-select steps.
type Option struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Step names a wizard step for the progress badges.
type Step struct {
	ID    int    `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Catalog is the full set of tables.
type Catalog struct {
	Currency          string    `yaml:"currency" json:"currency"`
	DefaultCountryFee int64     `yaml:"default_country_fee" json:"default_country_fee"`
	Plans             []Plan    `yaml:"plans" json:"plans"`
	AddOns            []AddOn   `yaml:"add_ons" json:"add_ons"`
	Countries         []Country `yaml:"countries" json:"countries"`
	Journeys          []Option  `yaml:"journeys" json:"journeys"`
	Timelines         []Option  `yaml:"timelines" json:"timelines"`
	Services          []string  `yaml:"services" json:"services"`
	Regions           []string  `yaml:"regions" json:"regions"`
	CompanySizes      []string  `yaml:"company_sizes" json:"company_sizes"`
	Steps             []Step    `yaml:"steps" json:"steps"`
	Cart              Cart      `yaml:"cart" json:"cart"`

	plans     map[string]Plan
	addOns    map[string]AddOn
	countries map[string]Country
	journeys  map[string]struct{}
	timelines map[string]struct{}
	services  map[string]struct{}
	regions   map[string]struct{}
	sizes     map[string]struct{}

	cartPlans  map[string]CartLine
	cartAddOns map[string]CartLine
}

// Default returns the built-in catalog. It panics if the embedded document
// is invalid, which a unit test guards against.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default: %v", err))
	}
	return c
}

// Load reads and validates a catalog file. An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	// Keys absent from the document keep these values; an explicit
	// default_country_fee of 0 is honoured.
	c := Catalog{DefaultCountryFee: domain.DefaultCountryFeeEUR}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if c.Currency == "" {
		c.Currency = "EUR"
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	var problems []string
	bad := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if len(c.Plans) != 3 {
		bad("expected exactly 3 plans, got %d", len(c.Plans))
	}
	if c.DefaultCountryFee < 0 {
		bad("default_country_fee must not be negative")
	}

	c.plans = make(map[string]Plan, len(c.Plans))
	for _, p := range c.Plans {
		switch {
		case strings.TrimSpace(p.Name) == "":
			bad("plan %q has no name", p.ID)
		case p.Price < 0:
			bad("plan %q has negative price", p.Name)
		}
		if _, dup := c.plans[p.Name]; dup {
			bad("duplicate plan %q", p.Name)
		}
		c.plans[p.Name] = p
	}

	c.addOns = make(map[string]AddOn, len(c.AddOns))
	for _, a := range c.AddOns {
		switch {
		case strings.TrimSpace(a.Name) == "":
			bad("add-on %q has no name", a.ID)
		case a.Price < 0:
			bad("add-on %q has negative price", a.Name)
		}
		if _, dup := c.addOns[a.Name]; dup {
			bad("duplicate add-on %q", a.Name)
		}
		c.addOns[a.Name] = a
	}

	c.countries = make(map[string]Country, len(c.Countries))
	for _, ct := range c.Countries {
		if ct.Fee < 0 {
			bad("country %q has negative fee", ct.Name)
		}
		if _, dup := c.countries[ct.Name]; dup {
			bad("duplicate country %q", ct.Name)
		}
		c.countries[ct.Name] = ct
	}

	c.journeys = optionSet(c.Journeys)
	c.timelines = optionSet(c.Timelines)
	c.services = stringSet(c.Services)
	c.regions = stringSet(c.Regions)
	c.sizes = stringSet(c.CompanySizes)
	if len(c.journeys) != len(c.Journeys) || len(c.timelines) != len(c.Timelines) {
		bad("duplicate journey or timeline id")
	}
	if len(c.services) != len(c.Services) || len(c.regions) != len(c.Regions) || len(c.sizes) != len(c.CompanySizes) {
		bad("duplicate service, region or company size")
	}
	if len(c.Steps) != 9 {
		bad("expected 9 steps, got %d", len(c.Steps))
	}

	if c.Cart.VATPercent < 0 || c.Cart.VATPercent > 100 {
		bad("cart vat_percent must be within 0..100")
	}
	c.cartPlans = cartLineSet(c.Cart.Plans, false, bad)
	c.cartAddOns = cartLineSet(c.Cart.AddOns, true, bad)
	if c.Cart.AddOnPlan != "" {
		if _, ok := c.cartPlans[c.Cart.AddOnPlan]; !ok {
			bad("cart add_on_plan %q is not a cart plan", c.Cart.AddOnPlan)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(problems, "; "))
	}
	return nil
}

// cartLineSet indexes lines by name and, when byID is set, also by ID.
func cartLineSet(lines []CartLine, byID bool, bad func(string, ...any)) map[string]CartLine {
	m := make(map[string]CartLine, len(lines)*2)
	for _, l := range lines {
		if strings.TrimSpace(l.Name) == "" || l.Price < 0 {
			bad("cart line %q needs a name and a non-negative price", l.Name)
			continue
		}
		if _, dup := m[l.Name]; dup {
			bad("duplicate cart line %q", l.Name)
		}
		m[l.Name] = l
		if byID && l.ID != "" && l.ID != l.Name {
			if _, dup := m[l.ID]; dup {
				bad("duplicate cart line id %q", l.ID)
			}
			m[l.ID] = l
		}
	}
	return m
}

func optionSet(opts []Option) map[string]struct{} {
	m := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		m[o.ID] = struct{}{}
	}
	return m
}

func stringSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// Plan returns the plan with the given display name.
func (c *Catalog) Plan(name string) (Plan, bool) {
	p, ok := c.plans[name]
	return p, ok
}

// PlanPrice returns the base price for a plan name.
func (c *Catalog) PlanPrice(name string) (int64, bool) {
	p, ok := c.plans[name]
	return p.Price, ok
}

// CountryFee returns the registration fee for a country, or the default fee
// when the country is not in the table.
func (c *Catalog) CountryFee(name string) int64 {
	if ct, ok := c.countries[name]; ok {
		return ct.Fee
	}
	return c.DefaultCountryFee
}

// Country returns the full fee row for a known country.
func (c *Catalog) Country(name string) (Country, bool) {
	ct, ok := c.countries[name]
	return ct, ok
}

// AddOn looks up an add-on by display name.
func (c *Catalog) AddOn(name string) (AddOn, bool) {
	a, ok := c.addOns[name]
	return a, ok
}

// IsJourney reports whether id is a known business journey.
func (c *Catalog) IsJourney(id string) bool { _, ok := c.journeys[id]; return ok }

// IsTimeline reports whether id is a known timeline.
func (c *Catalog) IsTimeline(id string) bool { _, ok := c.timelines[id]; return ok }

// IsService reports whether name is one of the fixed services.
func (c *Catalog) IsService(name string) bool { _, ok := c.services[name]; return ok }

// IsRegion reports whether name is a known home region.
func (c *Catalog) IsRegion(name string) bool { _, ok := c.regions[name]; return ok }

// IsCompanySize reports whether size is a known company-size bucket.
func (c *Catalog) IsCompanySize(size string) bool { _, ok := c.sizes[size]; return ok }

// CountryNames returns the names of all countries with a fee row, in table order.
func (c *Catalog) CountryNames() []string {
	out := make([]string, len(c.Countries))
	for i, ct := range c.Countries {
		out[i] = ct.Name
	}
	return out
}

// PlanNames returns the plan names in display order.
func (c *Catalog) PlanNames() []string {
	out := make([]string, len(c.Plans))
	for i, p := range c.Plans {
		out[i] = p.Name
	}
	return out
}

// CartPlan returns the cart plan line with the given name.
func (c *Catalog) CartPlan(name string) (CartLine, bool) {
	l, ok := c.cartPlans[name]
	return l, ok
}

// CartAddOn returns the cart add-on with the given id or name.
func (c *Catalog) CartAddOn(idOrName string) (CartLine, bool) {
	l, ok := c.cartAddOns[idOrName]
	return l, ok
}

// IsQuoteLabel reports whether label may be sent as a cart quote's selected plan.
func (c *Catalog) IsQuoteLabel(label string) bool {
	return slices.Contains(c.Cart.QuoteLabels, label)
}
