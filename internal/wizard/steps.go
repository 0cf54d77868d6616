package wizard

import (
	"fmt"
	"slices"
	"strings"

	"quotewizard/internal/domain"
	"quotewizard/internal/validation"
)

// Step is an input collector for one wizard step. Components are created
// from the controller's current snapshot, so re-entering a step shows the
// previous choices. Continue merges the component's answer into the state
// and advances.
type Step interface {
	Number() int
	CanContinue() bool
	Continue() error
}

func incomplete(step int, reason string) error {
	return fmt.Errorf("%w: step %d: %s", ErrIncomplete, step, reason)
}

func invalidChoice(kind, value string) error {
	return fmt.Errorf("%w: unknown %s %q", ErrInvalidChoice, kind, value)
}

// JourneyStep is step 1. Selecting a journey advances immediately.
type JourneyStep struct {
	c        *Controller
	Selected string
}

// NewJourneyStep initializes step 1 from the controller's state.
func NewJourneyStep(c *Controller) *JourneyStep {
	return &JourneyStep{c: c, Selected: c.state.BusinessJourney}
}

func (s *JourneyStep) Number() int       { return StepBusinessJourney }
func (s *JourneyStep) CanContinue() bool { return s.Selected != "" }

// Select records the journey and advances.
func (s *JourneyStep) Select(id string) error {
	if !s.c.cat.IsJourney(id) {
		return invalidChoice("business journey", id)
	}
	s.Selected = id
	return s.Continue()
}

func (s *JourneyStep) Continue() error {
	if err := s.c.requireStep(StepBusinessJourney); err != nil {
		return err
	}
	if !s.CanContinue() {
		return incomplete(StepBusinessJourney, "select a business journey")
	}
	v := s.Selected
	s.c.UpdateUserData(domain.WizardUpdate{BusinessJourney: &v})
	s.c.NextStep()
	return nil
}

// GeographyStep is step 2: home region plus a set of expansion countries.
type GeographyStep struct {
	c        *Controller
	BasedIn  string
	ExpandTo []string
}

// NewGeographyStep initializes step 2 from the controller's state.
func NewGeographyStep(c *Controller) *GeographyStep {
	return &GeographyStep{
		c:        c,
		BasedIn:  c.state.Geography.BasedIn,
		ExpandTo: slices.Clone(c.state.Geography.ExpandTo),
	}
}

func (s *GeographyStep) Number() int { return StepGeography }

// SetBasedIn sets the home region. Unknown regions are rejected.
func (s *GeographyStep) SetBasedIn(region string) error {
	if region != "" && !s.c.cat.IsRegion(region) {
		return invalidChoice("region", region)
	}
	s.BasedIn = region
	return nil
}

// ToggleCountry adds the country if absent and removes it if present.
func (s *GeographyStep) ToggleCountry(country string) {
	if i := slices.Index(s.ExpandTo, country); i >= 0 {
		s.ExpandTo = slices.Delete(s.ExpandTo, i, i+1)
		return
	}
	s.ExpandTo = append(s.ExpandTo, country)
}

func (s *GeographyStep) CanContinue() bool {
	return s.BasedIn != "" && len(s.ExpandTo) > 0
}

func (s *GeographyStep) Continue() error {
	if err := s.c.requireStep(StepGeography); err != nil {
		return err
	}
	switch {
	case s.BasedIn == "":
		return incomplete(StepGeography, "choose where the business is based")
	case len(s.ExpandTo) == 0:
		return incomplete(StepGeography, "choose at least one expansion country")
	}
	g := domain.Geography{BasedIn: s.BasedIn, ExpandTo: slices.Clone(s.ExpandTo)}
	s.c.UpdateUserData(domain.WizardUpdate{Geography: &g})
	s.c.NextStep()
	return nil
}

// ServicesStep is step 3. "Other" may carry a free-text description which is
// appended as "Other: <text>" only when non-empty.
type ServicesStep struct {
	c         *Controller
	Selected  []string
	OtherText string
}

// NewServicesStep initializes step 3, splitting any stored "Other: <text>"
// entry back into the Other selection and its text.
func NewServicesStep(c *Controller) *ServicesStep {
	s := &ServicesStep{c: c}
	for _, svc := range c.state.Services {
		if text, ok := strings.CutPrefix(svc, domain.OtherServicePrefix); ok {
			s.OtherText = text
			continue
		}
		s.Selected = append(s.Selected, svc)
	}
	return s
}

func (s *ServicesStep) Number() int { return StepServices }

// ToggleService selects or deselects a catalog service.
func (s *ServicesStep) ToggleService(name string) error {
	if !s.c.cat.IsService(name) {
		return invalidChoice("service", name)
	}
	if i := slices.Index(s.Selected, name); i >= 0 {
		s.Selected = slices.Delete(s.Selected, i, i+1)
		return nil
	}
	s.Selected = append(s.Selected, name)
	return nil
}

// SetOtherText sets the description used when "Other" is selected.
func (s *ServicesStep) SetOtherText(text string) error {
	if err := validation.ValidateText("other service", text); err != nil {
		return err
	}
	s.OtherText = text
	return nil
}

// Services returns the list written on Continue.
func (s *ServicesStep) Services() []string {
	out := slices.Clone(s.Selected)
	if out == nil {
		out = []string{}
	}
	if slices.Contains(s.Selected, domain.ServiceOther) {
		if text := strings.TrimSpace(s.OtherText); text != "" {
			out = append(out, domain.OtherServicePrefix+text)
		}
	}
	return out
}

func (s *ServicesStep) CanContinue() bool { return len(s.Selected) > 0 }

func (s *ServicesStep) Continue() error {
	if err := s.c.requireStep(StepServices); err != nil {
		return err
	}
	if !s.CanContinue() {
		return incomplete(StepServices, "select at least one service")
	}
	svcs := s.Services()
	s.c.UpdateUserData(domain.WizardUpdate{Services: &svcs})
	s.c.NextStep()
	return nil
}

// ProfileStep is step 4. Website and LinkedIn are optional.
type ProfileStep struct {
	c           *Controller
	Website     string
	LinkedIn    string
	CompanySize string
}

// NewProfileStep initializes step 4 from the controller's state.
func NewProfileStep(c *Controller) *ProfileStep {
	p := c.state.BusinessProfile
	return &ProfileStep{c: c, Website: p.Website, LinkedIn: p.LinkedIn, CompanySize: p.CompanySize}
}

func (s *ProfileStep) Number() int       { return StepBusinessProfile }
func (s *ProfileStep) CanContinue() bool { return s.CompanySize != "" }

func (s *ProfileStep) Continue() error {
	if err := s.c.requireStep(StepBusinessProfile); err != nil {
		return err
	}
	if !s.CanContinue() {
		return incomplete(StepBusinessProfile, "choose a company size")
	}
	if !s.c.cat.IsCompanySize(s.CompanySize) {
		return invalidChoice("company size", s.CompanySize)
	}
	if s.c.strict {
		if err := validation.ValidateOptionalURL("website", s.Website); err != nil {
			return err
		}
		if err := validation.ValidateOptionalURL("linkedin", s.LinkedIn); err != nil {
			return err
		}
	}
	p := domain.BusinessProfile{
		Website:     strings.TrimSpace(s.Website),
		LinkedIn:    strings.TrimSpace(s.LinkedIn),
		CompanySize: s.CompanySize,
	}
	s.c.UpdateUserData(domain.WizardUpdate{BusinessProfile: &p})
	s.c.NextStep()
	return nil
}

// TimelineStep is step 5. Selecting a timeline advances immediately.
type TimelineStep struct {
	c        *Controller
	Selected string
}

// NewTimelineStep initializes step 5 from the controller's state.
func NewTimelineStep(c *Controller) *TimelineStep {
	return &TimelineStep{c: c, Selected: c.state.Timeline}
}

func (s *TimelineStep) Number() int       { return StepTimeline }
func (s *TimelineStep) CanContinue() bool { return s.Selected != "" }

// Select records the timeline and advances.
func (s *TimelineStep) Select(id string) error {
	if !s.c.cat.IsTimeline(id) {
		return invalidChoice("timeline", id)
	}
	s.Selected = id
	return s.Continue()
}

func (s *TimelineStep) Continue() error {
	if err := s.c.requireStep(StepTimeline); err != nil {
		return err
	}
	if !s.CanContinue() {
		return incomplete(StepTimeline, "select a timeline")
	}
	v := s.Selected
	s.c.UpdateUserData(domain.WizardUpdate{Timeline: &v})
	s.c.NextStep()
	return nil
}

// PlanStep is step 6: one of the three catalog plans.
type PlanStep struct {
	c      *Controller
	Chosen string
}

// NewPlanStep initializes step 6 from the controller's state.
func NewPlanStep(c *Controller) *PlanStep {
	return &PlanStep{c: c, Chosen: c.state.Plan}
}

func (s *PlanStep) Number() int       { return StepPlanSelection }
func (s *PlanStep) CanContinue() bool { return s.Chosen != "" }

// Choose selects a plan by name.
func (s *PlanStep) Choose(name string) error {
	if _, ok := s.c.cat.Plan(name); !ok {
		return invalidChoice("plan", name)
	}
	s.Chosen = name
	return nil
}

func (s *PlanStep) Continue() error {
	if err := s.c.requireStep(StepPlanSelection); err != nil {
		return err
	}
	if !s.CanContinue() {
		return incomplete(StepPlanSelection, "choose a plan")
	}
	v := s.Chosen
	s.c.UpdateUserData(domain.WizardUpdate{Plan: &v})
	s.c.NextStep()
	return nil
}

// AddOnsStep is step 7. Selection order is preserved and toggling an add-on
// twice restores the previous list.
type AddOnsStep struct {
	c        *Controller
	Selected []domain.AddOn
}

// NewAddOnsStep initializes step 7 from the controller's state.
func NewAddOnsStep(c *Controller) *AddOnsStep {
	return &AddOnsStep{c: c, Selected: slices.Clone(c.state.AddOns)}
}

func (s *AddOnsStep) Number() int { return StepAddOns }

// Toggle adds the named catalog add-on or removes it if already selected.
func (s *AddOnsStep) Toggle(name string) error {
	if i := slices.IndexFunc(s.Selected, func(a domain.AddOn) bool { return a.Name == name }); i >= 0 {
		s.Selected = slices.Delete(s.Selected, i, i+1)
		return nil
	}
	a, ok := s.c.cat.AddOn(name)
	if !ok {
		return invalidChoice("add-on", name)
	}
	s.Selected = append(s.Selected, a.Line())
	return nil
}

// Subtotal is the running add-on total shown while toggling.
func (s *AddOnsStep) Subtotal() int64 {
	var total int64
	for _, a := range s.Selected {
		total += a.Price
	}
	return total
}

// CanContinue is always true; add-ons are optional.
func (s *AddOnsStep) CanContinue() bool { return true }

func (s *AddOnsStep) Continue() error {
	if err := s.c.requireStep(StepAddOns); err != nil {
		return err
	}
	sel := slices.Clone(s.Selected)
	if sel == nil {
		sel = []domain.AddOn{}
	}
	s.c.UpdateUserData(domain.WizardUpdate{AddOns: &sel})
	s.c.NextStep()
	return nil
}

// ContactStep is step 8. All three fields are required; strict mode also
// checks email and phone formats.
type ContactStep struct {
	c     *Controller
	Name  string
	Email string
	Phone string
}

// NewContactStep initializes step 8 from the controller's state.
func NewContactStep(c *Controller) *ContactStep {
	ci := c.state.ContactInfo
	return &ContactStep{c: c, Name: ci.Name, Email: ci.Email, Phone: ci.Phone}
}

func (s *ContactStep) Number() int { return StepContactInfo }

func (s *ContactStep) CanContinue() bool {
	return strings.TrimSpace(s.Name) != "" && strings.TrimSpace(s.Email) != "" && strings.TrimSpace(s.Phone) != ""
}

func (s *ContactStep) Continue() error {
	if err := s.c.requireStep(StepContactInfo); err != nil {
		return err
	}
	if !s.CanContinue() {
		return incomplete(StepContactInfo, "name, email and phone are required")
	}
	if err := validation.ValidateName(s.Name); err != nil {
		return err
	}
	if err := validation.ValidateEmail(s.Email, s.c.strict); err != nil {
		return err
	}
	if err := validation.ValidatePhone(s.Phone, s.c.strict); err != nil {
		return err
	}
	ci := domain.ContactInfo{
		Name:  strings.TrimSpace(s.Name),
		Email: strings.TrimSpace(s.Email),
		Phone: strings.TrimSpace(s.Phone),
	}
	s.c.UpdateUserData(domain.WizardUpdate{ContactInfo: &ci})
	s.c.NextStep()
	return nil
}

// StepFor returns the component for step n initialized from c's state.
// The summary step has no component.
func StepFor(c *Controller, n int) (Step, error) {
	switch n {
	case StepBusinessJourney:
		return NewJourneyStep(c), nil
	case StepGeography:
		return NewGeographyStep(c), nil
	case StepServices:
		return NewServicesStep(c), nil
	case StepBusinessProfile:
		return NewProfileStep(c), nil
	case StepTimeline:
		return NewTimelineStep(c), nil
	case StepPlanSelection:
		return NewPlanStep(c), nil
	case StepAddOns:
		return NewAddOnsStep(c), nil
	case StepContactInfo:
		return NewContactStep(c), nil
	default:
		return nil, fmt.Errorf("%w: step %d takes no input", ErrInvalidChoice, n)
	}
}
