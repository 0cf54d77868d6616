// Package tutorials filters and normalizes the step-by-step registration guides.
package tutorials

import (
	"fmt"
	"sort"
	"strings"

	"quotewizard/internal/domain"
	"quotewizard/internal/validation"
)

// AllCountries matches tutorials for every country.
const AllCountries = "all"

// Filter returns the tutorials whose country equals country (empty or "all"
// matches everything) and whose title or description contains query,
// ignoring case. Input order is preserved.
func Filter(list []domain.Tutorial, country, query string) []domain.Tutorial {
	country = strings.TrimSpace(country)
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]domain.Tutorial, 0, len(list))
	for _, t := range list {
		if country != "" && country != AllCountries && t.Country != country {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Countries returns the distinct countries in list, sorted.
func Countries(list []domain.Tutorial) []string {
	seen := make(map[string]struct{}, len(list))
	var out []string
	for _, t := range list {
		if _, ok := seen[t.Country]; ok || t.Country == "" {
			continue
		}
		seen[t.Country] = struct{}{}
		out = append(out, t.Country)
	}
	sort.Strings(out)
	return out
}

// SortSteps orders steps by step number in place.
func SortSteps(steps []domain.TutorialStep) {
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
}

// ValidateCreate checks a new tutorial before it is stored. Step numbers must
// be positive and unique.
func ValidateCreate(in domain.CreateTutorial) error {
	if err := validation.Required("title", in.Title, validation.MaxNameLength); err != nil {
		return err
	}
	if err := validation.Required("country", in.Country, validation.MaxNameLength); err != nil {
		return err
	}
	if err := validation.ValidateText("description", in.Description); err != nil {
		return err
	}
	if err := validation.ValidateOptionalURL("main_url", in.MainURL); err != nil {
		return err
	}
	seen := make(map[int]bool, len(in.Steps))
	for _, s := range in.Steps {
		if s.StepNumber <= 0 {
			return &validation.FieldError{Field: "step_number", Value: fmt.Sprint(s.StepNumber), Reason: "must be positive", Err: validation.ErrInvalidFormat}
		}
		if seen[s.StepNumber] {
			return &validation.FieldError{Field: "step_number", Value: fmt.Sprint(s.StepNumber), Reason: "duplicate step number", Err: validation.ErrInvalidFormat}
		}
		seen[s.StepNumber] = true
		if err := validation.Required("step_title", s.StepTitle, validation.MaxNameLength); err != nil {
			return err
		}
		if err := validation.ValidateText("step_description", s.StepDescription); err != nil {
			return err
		}
	}
	return nil
}
