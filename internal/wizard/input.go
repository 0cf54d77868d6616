package wizard

import (
	"fmt"
	"slices"
)

// StepInput is the answer for a single step as sent by a client. Only the
// fields belonging to the target step are read; list fields replace the
// component's selection as a set, in the order given.
type StepInput struct {
	BusinessJourney string   `json:"business_journey,omitempty"`
	BasedIn         string   `json:"based_in,omitempty"`
	ExpandTo        []string `json:"expand_to,omitempty"`
	Services        []string `json:"services,omitempty"`
	OtherText       string   `json:"other_text,omitempty"`
	Website         string   `json:"website,omitempty"`
	LinkedIn        string   `json:"linkedin,omitempty"`
	CompanySize     string   `json:"company_size,omitempty"`
	Timeline        string   `json:"timeline,omitempty"`
	Plan            string   `json:"plan,omitempty"`
	AddOns          []string `json:"add_ons,omitempty"`
	Name            string   `json:"name,omitempty"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone,omitempty"`
}

// Submit applies in to step n and continues. It fails with ErrWrongStep if
// the controller is not on step n and with ErrIncomplete if required fields
// are missing; in both cases the state is unchanged. An empty single-select
// field continues with the previously stored choice.
func Submit(c *Controller, n int, in StepInput) error {
	if err := c.requireStep(n); err != nil {
		return err
	}
	switch n {
	case StepBusinessJourney:
		s := NewJourneyStep(c)
		if in.BusinessJourney == "" {
			return s.Continue()
		}
		return s.Select(in.BusinessJourney)

	case StepGeography:
		s := NewGeographyStep(c)
		if err := s.SetBasedIn(in.BasedIn); err != nil {
			return err
		}
		s.ExpandTo = nil
		for _, country := range dedupe(in.ExpandTo) {
			s.ToggleCountry(country)
		}
		return s.Continue()

	case StepServices:
		s := NewServicesStep(c)
		s.Selected = nil
		for _, svc := range dedupe(in.Services) {
			if err := s.ToggleService(svc); err != nil {
				return err
			}
		}
		if err := s.SetOtherText(in.OtherText); err != nil {
			return err
		}
		return s.Continue()

	case StepBusinessProfile:
		s := NewProfileStep(c)
		s.Website, s.LinkedIn, s.CompanySize = in.Website, in.LinkedIn, in.CompanySize
		return s.Continue()

	case StepTimeline:
		s := NewTimelineStep(c)
		if in.Timeline == "" {
			return s.Continue()
		}
		return s.Select(in.Timeline)

	case StepPlanSelection:
		s := NewPlanStep(c)
		if in.Plan != "" {
			if err := s.Choose(in.Plan); err != nil {
				return err
			}
		}
		return s.Continue()

	case StepAddOns:
		s := NewAddOnsStep(c)
		s.Selected = nil
		for _, name := range dedupe(in.AddOns) {
			if err := s.Toggle(name); err != nil {
				return err
			}
		}
		return s.Continue()

	case StepContactInfo:
		s := NewContactStep(c)
		s.Name, s.Email, s.Phone = in.Name, in.Email, in.Phone
		return s.Continue()

	default:
		return fmt.Errorf("%w: step %d takes no input", ErrInvalidChoice, n)
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
