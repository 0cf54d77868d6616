package tutorials

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"quotewizard/internal/domain"
	"quotewizard/internal/validation"
)

var sample = []domain.Tutorial{
	{ID: 1, Title: "Register a BV", Description: "Dutch private company setup", Country: "Netherlands"},
	{ID: 2, Title: "VAT number", Description: "Apply for a German USt-IdNr", Country: "Germany"},
	{ID: 3, Title: "Branch office", Description: "Open a branch in the Netherlands", Country: "Netherlands"},
	{ID: 4, Title: "SIREN filing", Description: "French company registry", Country: "France"},
}

func ids(list []domain.Tutorial) []int64 {
	out := []int64{}
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name    string
		country string
		query   string
		want    []int64
	}{
		{"all countries no query", "all", "", []int64{1, 2, 3, 4}},
		{"empty country matches all", "", "", []int64{1, 2, 3, 4}},
		{"country only", "Netherlands", "", []int64{1, 3}},
		{"query in title", "all", "vat", []int64{1, 2}},
		{"query in title only", "all", "siren", []int64{4}},
		{"query in description case-insensitive", "all", "NETHERLANDS", []int64{3}},
		{"country and query", "Netherlands", "branch", []int64{3}},
		{"query trimmed", "all", "  registry ", []int64{4}},
		{"no match", "Spain", "", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(sample, tt.country, tt.query))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCountries(t *testing.T) {
	got := Countries(append(sample, domain.Tutorial{ID: 5}))
	if diff := cmp.Diff([]string{"France", "Germany", "Netherlands"}, got); diff != "" {
		t.Errorf("countries (-want +got):\n%s", diff)
	}
}

func TestSortSteps(t *testing.T) {
	steps := []domain.TutorialStep{{StepNumber: 3, StepTitle: "c"}, {StepNumber: 1, StepTitle: "a"}, {StepNumber: 2, StepTitle: "b"}}
	SortSteps(steps)
	var titles []string
	for _, s := range steps {
		titles = append(titles, s.StepTitle)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, titles); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestValidateCreate(t *testing.T) {
	valid := domain.CreateTutorial{
		Title:   "Register a GmbH",
		Country: "Germany",
		MainURL: "https://www.handelsregister.de",
		Steps: []domain.CreateTutorialStep{
			{StepNumber: 1, StepTitle: "Notary appointment"},
			{StepNumber: 2, StepTitle: "Commercial register"},
		},
	}
	if err := ValidateCreate(valid); err != nil {
		t.Fatalf("valid tutorial rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*domain.CreateTutorial)
		wantErr error
	}{
		{"missing title", func(c *domain.CreateTutorial) { c.Title = "" }, validation.ErrEmptyValue},
		{"missing country", func(c *domain.CreateTutorial) { c.Country = " " }, validation.ErrEmptyValue},
		{"bad url", func(c *domain.CreateTutorial) { c.MainURL = "ftp://files.example" }, validation.ErrInvalidFormat},
		{"zero step number", func(c *domain.CreateTutorial) { c.Steps[0].StepNumber = 0 }, validation.ErrInvalidFormat},
		{"duplicate step number", func(c *domain.CreateTutorial) { c.Steps[1].StepNumber = 1 }, validation.ErrInvalidFormat},
		{"untitled step", func(c *domain.CreateTutorial) { c.Steps[1].StepTitle = "" }, validation.ErrEmptyValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			in.Steps = append([]domain.CreateTutorialStep(nil), valid.Steps...)
			tt.mutate(&in)
			if err := ValidateCreate(in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
