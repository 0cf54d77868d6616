// Package domain holds the data types shared by the quote wizard, its stores and the HTTP API.
package domain

import "time"

// Business journey identifiers (step 1).
const (
	JourneyExploring = "exploring"
	JourneyExisting  = "existing"
	JourneyNewEntity = "new-entity"
	JourneyMultiple  = "multiple"
)

// Timeline identifiers (step 5).
const (
	TimelineASAP        = "asap"
	Timeline1To3Months  = "1-3-months"
	Timeline3To6Months  = "3-6-months"
	Timeline6MonthsPlus = "6-months-plus"
)

// ServiceOther is the free-text service choice of step 3. When it is picked
// with a description, OtherServicePrefix plus the text is appended to the
// service list.
const (
	ServiceOther       = "Other"
	OtherServicePrefix = "Other: "
)

// QuoteRequestsTable is the collaborator table quote requests are inserted into.
const QuoteRequestsTable = "quote_requests"

// Quote request sources: the nine-step wizard or the pricing page cart.
const (
	SourceWizard = "wizard"
	SourceCart   = "cart"
)

// DefaultCountryFeeEUR is the registration fee for a country missing from the catalog.
const DefaultCountryFeeEUR = 500

// Geography is the step 2 answer. ExpandTo has set semantics.
type Geography struct {
	BasedIn  string   `json:"based_in"`
	ExpandTo []string `json:"expand_to"`
}

// BusinessProfile is the step 4 answer.
type BusinessProfile struct {
	Website     string `json:"website,omitempty"`
	LinkedIn    string `json:"linkedin,omitempty"`
	CompanySize string `json:"company_size"`
}

// AddOn is a priced optional service line. Amounts are whole euros.
type AddOn struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// ContactInfo is the step 8 answer.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CountryFee is the registration fee charged for one expansion country.
type CountryFee struct {
	Country string `json:"country"`
	Fee     int64  `json:"fee"`
}

// WizardState is everything a quote session has accumulated so far.
// Empty strings mean "unset". The derived price fields are only written
// when the summary step is entered.
type WizardState struct {
	BusinessJourney string          `json:"business_journey"`
	Geography       Geography       `json:"geography"`
	Services        []string        `json:"services"`
	BusinessProfile BusinessProfile `json:"business_profile"`
	Timeline        string          `json:"timeline"`
	Plan            string          `json:"plan"`
	AddOns          []AddOn         `json:"add_ons"`
	ContactInfo     ContactInfo     `json:"contact_info"`

	BasePrice     int64        `json:"base_price"`
	CountryFees   []CountryFee `json:"country_fees"`
	TotalPrice    int64        `json:"total_price"`
	PlanDefaulted bool         `json:"plan_defaulted,omitempty"`
}

// NewWizardState returns a fresh state with every field empty.
func NewWizardState() WizardState {
	return WizardState{
		Geography:   Geography{ExpandTo: []string{}},
		Services:    []string{},
		AddOns:      []AddOn{},
		CountryFees: []CountryFee{},
	}
}

// AddOnTotal sums the selected add-on prices.
func (s WizardState) AddOnTotal() int64 {
	var total int64
	for _, a := range s.AddOns {
		total += a.Price
	}
	return total
}

// Clone returns a deep copy so readers never share slices with the owner.
func (s WizardState) Clone() WizardState {
	out := s
	out.Geography.ExpandTo = append([]string{}, s.Geography.ExpandTo...)
	out.Services = append([]string{}, s.Services...)
	out.AddOns = append([]AddOn{}, s.AddOns...)
	out.CountryFees = append([]CountryFee{}, s.CountryFees...)
	return out
}

// WizardUpdate is a partial WizardState. Every non-nil field replaces the
// corresponding top-level field whole; nested objects are never merged.
type WizardUpdate struct {
	BusinessJourney *string          `json:"business_journey,omitempty"`
	Geography       *Geography       `json:"geography,omitempty"`
	Services        *[]string        `json:"services,omitempty"`
	BusinessProfile *BusinessProfile `json:"business_profile,omitempty"`
	Timeline        *string          `json:"timeline,omitempty"`
	Plan            *string          `json:"plan,omitempty"`
	AddOns          *[]AddOn         `json:"add_ons,omitempty"`
	ContactInfo     *ContactInfo     `json:"contact_info,omitempty"`
	BasePrice       *int64           `json:"base_price,omitempty"`
	CountryFees     *[]CountryFee    `json:"country_fees,omitempty"`
	TotalPrice      *int64           `json:"total_price,omitempty"`
	PlanDefaulted   *bool            `json:"plan_defaulted,omitempty"`
}

// Apply returns s with the update shallow-merged in.
func (u WizardUpdate) Apply(s WizardState) WizardState {
	if u.BusinessJourney != nil {
		s.BusinessJourney = *u.BusinessJourney
	}
	if u.Geography != nil {
		g := *u.Geography
		g.ExpandTo = uniqueStrings(g.ExpandTo)
		s.Geography = g
	}
	if u.Services != nil {
		s.Services = append([]string{}, (*u.Services)...)
	}
	if u.BusinessProfile != nil {
		s.BusinessProfile = *u.BusinessProfile
	}
	if u.Timeline != nil {
		s.Timeline = *u.Timeline
	}
	if u.Plan != nil {
		s.Plan = *u.Plan
	}
	if u.AddOns != nil {
		s.AddOns = append([]AddOn{}, (*u.AddOns)...)
	}
	if u.ContactInfo != nil {
		s.ContactInfo = *u.ContactInfo
	}
	if u.BasePrice != nil {
		s.BasePrice = *u.BasePrice
	}
	if u.CountryFees != nil {
		s.CountryFees = append([]CountryFee{}, (*u.CountryFees)...)
	}
	if u.TotalPrice != nil {
		s.TotalPrice = *u.TotalPrice
	}
	if u.PlanDefaulted != nil {
		s.PlanDefaulted = *u.PlanDefaulted
	}
	return s
}

// uniqueStrings copies vals keeping the first occurrence of each value.
func uniqueStrings(vals []string) []string {
	out := make([]string, 0, len(vals))
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DataPatch is the client-supplied partial accepted by the session data
// endpoint. It carries the answer fields only; the price fields are derived
// and can only be written by the summary step.
type DataPatch struct {
	BusinessJourney *string          `json:"business_journey,omitempty"`
	Geography       *Geography       `json:"geography,omitempty"`
	Services        *[]string        `json:"services,omitempty"`
	BusinessProfile *BusinessProfile `json:"business_profile,omitempty"`
	Timeline        *string          `json:"timeline,omitempty"`
	Plan            *string          `json:"plan,omitempty"`
	AddOns          *[]AddOn         `json:"add_ons,omitempty"`
	ContactInfo     *ContactInfo     `json:"contact_info,omitempty"`
}

// Update converts p into a WizardUpdate.
func (p DataPatch) Update() WizardUpdate {
	return WizardUpdate{
		BusinessJourney: p.BusinessJourney,
		Geography:       p.Geography,
		Services:        p.Services,
		BusinessProfile: p.BusinessProfile,
		Timeline:        p.Timeline,
		Plan:            p.Plan,
		AddOns:          p.AddOns,
		ContactInfo:     p.ContactInfo,
	}
}

// QuoteRequest is the flat record handed to the submission collaborator and
// stored in the quote_requests table. CartItems is the JSON-string encoding
// of the plan line followed by the add-on lines; AddOns carries the add-ons
// on their own. TotalAmount is in whole euros before VAT.
type QuoteRequest struct {
	ID              string       `json:"id,omitempty"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	Company         string       `json:"company,omitempty"`
	SelectedPlan    string       `json:"selected_plan"`
	CartItems       string       `json:"cart_items"`
	AddOns          []AddOn      `json:"add_ons"`
	TotalAmount     int64        `json:"total_amount"`
	BasePrice       int64        `json:"base_price"`
	CountryFees     []CountryFee `json:"country_fees"`
	BusinessJourney string       `json:"business_journey,omitempty"`
	BasedIn         string       `json:"based_in,omitempty"`
	ExpandTo        []string     `json:"expand_to"`
	Services        []string     `json:"services"`
	Timeline        string       `json:"timeline,omitempty"`
	Website         string       `json:"website,omitempty"`
	LinkedIn        string       `json:"linkedin,omitempty"`
	CompanySize     string       `json:"company_size,omitempty"`
	SessionID       string       `json:"session_id,omitempty"`
	// Source is SourceWizard or SourceCart; stores default it to SourceWizard.
	Source string `json:"source"`
	// VATCents and GrossTotalCents are set for cart quotes, where VAT is
	// charged on TotalAmount.
	VATCents        int64     `json:"vat_cents,omitempty"`
	GrossTotalCents int64     `json:"gross_total_cents,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
