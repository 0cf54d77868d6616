// Package storagetest holds behaviour tests shared by every storage.Store backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"quotewizard/internal/domain"
	"quotewizard/internal/storage"
)

// SampleRequest returns a fully populated quote request for email.
func SampleRequest(email string) domain.QuoteRequest {
	return domain.QuoteRequest{
		Name:            "Ada Lovelace",
		Email:           email,
		Phone:           "+44 20 7946 0958",
		Company:         "Analytical Engines Ltd",
		SelectedPlan:    "eBranch Plan",
		CartItems:       `[{"name":"eBranch Plan","price":1995,"period":"/year"},{"name":"Corporate Tax Filing","price":450,"period":"per year"}]`,
		AddOns:          []domain.AddOn{{Name: "Corporate Tax Filing", Price: 450}},
		TotalAmount:     2495,
		BasePrice:       1995,
		CountryFees:     []domain.CountryFee{{Country: "Netherlands", Fee: 50}},
		BusinessJourney: "existing",
		BasedIn:         "United Kingdom",
		ExpandTo:        []string{"Netherlands"},
		Services:        []string{"Local Entity Setup", "Other", "Other: Bank account"},
		Timeline:        "asap",
		Website:         "https://example.com",
		LinkedIn:        "https://linkedin.com/company/example",
		CompanySize:     "6-20 employees",
		SessionID:       "5c7e2f7a-0a8e-4a53-b8f4-3f0f0c2f9b11",
		Source:          domain.SourceWizard,
	}
}

// SampleCartRequest returns a pricing page cart quote with VAT amounts set.
func SampleCartRequest(email string) domain.QuoteRequest {
	return domain.QuoteRequest{
		Name:            "Grace Hopper",
		Email:           email,
		Company:         "Compilers BV",
		SelectedPlan:    "Custom Plan",
		CartItems:       `[{"name":"eBranch Plan","price":1995,"period":"one-time"},{"name":"VAT Administration","price":149,"period":"month"}]`,
		AddOns:          []domain.AddOn{{Name: "VAT Administration", Price: 149}},
		TotalAmount:     2144,
		BasePrice:       1995,
		CountryFees:     []domain.CountryFee{},
		ExpandTo:        []string{},
		Services:        []string{},
		Source:          domain.SourceCart,
		VATCents:        45024,
		GrossTotalCents: 259424,
	}
}

// Run exercises quote request and tutorial persistence against a fresh store
// returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("QuoteRequestRoundTrip", func(t *testing.T) { testQuoteRequestRoundTrip(t, newStore(t)) })
	t.Run("QuoteRequestNotFound", func(t *testing.T) { testQuoteRequestNotFound(t, newStore(t)) })
	t.Run("QuoteRequestValidation", func(t *testing.T) { testQuoteRequestValidation(t, newStore(t)) })
	t.Run("QuoteRequestList", func(t *testing.T) { testQuoteRequestList(t, newStore(t)) })
	t.Run("CartQuoteRequest", func(t *testing.T) { testCartQuoteRequest(t, newStore(t)) })
	t.Run("TutorialCRUD", func(t *testing.T) { testTutorials(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) {
		if err := newStore(t).Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func testQuoteRequestRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	in := SampleRequest("ada@example.com")
	in.CreatedAt = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	created, err := s.CreateQuoteRequest(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("store did not assign an id")
	}
	got, err := s.GetQuoteRequest(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := in
	want.ID = created.ID
	if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func testCartQuoteRequest(t *testing.T, s storage.Store) {
	ctx := context.Background()
	in := SampleCartRequest("grace@example.com")
	in.CreatedAt = time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)
	created, err := s.CreateQuoteRequest(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.GetQuoteRequest(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := in
	want.ID = created.ID
	if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("cart round trip mismatch (-want +got):\n%s", diff)
	}

	// A record without a source is a wizard submission.
	legacy := SampleRequest("legacy@example.com")
	legacy.Source = ""
	if _, err := s.CreateQuoteRequest(ctx, legacy); err != nil {
		t.Fatalf("create legacy: %v", err)
	}

	for src, wantEmail := range map[string]string{domain.SourceCart: "grace@example.com", domain.SourceWizard: "legacy@example.com"} {
		items, total, err := s.ListQuoteRequests(ctx, storage.QuoteRequestListOptions{Source: src})
		if err != nil {
			t.Fatalf("filter source %s: %v", src, err)
		}
		if total != 1 || len(items) != 1 || items[0].Email != wantEmail {
			t.Errorf("source %s: total=%d items=%v", src, total, items)
		}
	}
}

func testQuoteRequestNotFound(t *testing.T, s storage.Store) {
	_, err := s.GetQuoteRequest(context.Background(), "7f1d0c9e-2b8a-4f64-9d7e-000000000000")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testQuoteRequestValidation(t *testing.T, s storage.Store) {
	r := SampleRequest("")
	if _, err := s.CreateQuoteRequest(context.Background(), r); !errors.Is(err, storage.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func testQuoteRequestList(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, plan := range []string{"Free Plan", "eBranch Plan", "Premium Plan", "eBranch Plan"} {
		r := SampleRequest("user" + string(rune('a'+i)) + "@example.com")
		r.SelectedPlan = plan
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := s.CreateQuoteRequest(ctx, r); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	all, total, err := s.ListQuoteRequests(ctx, storage.QuoteRequestListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Fatalf("total=%d len=%d, want 4", total, len(all))
	}
	if all[0].Email != "userd@example.com" || all[3].Email != "usera@example.com" {
		t.Errorf("expected newest first, got %s ... %s", all[0].Email, all[3].Email)
	}

	page, total, err := s.ListQuoteRequests(ctx, storage.QuoteRequestListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if total != 4 || len(page) != 2 || page[0].Email != "userc@example.com" {
		t.Errorf("unexpected page total=%d len=%d first=%v", total, len(page), page)
	}

	ebranch, total, err := s.ListQuoteRequests(ctx, storage.QuoteRequestListOptions{SelectedPlan: "eBranch Plan"})
	if err != nil {
		t.Fatalf("filter plan: %v", err)
	}
	if total != 2 || len(ebranch) != 2 {
		t.Errorf("plan filter total=%d len=%d", total, len(ebranch))
	}

	byEmail, _, err := s.ListQuoteRequests(ctx, storage.QuoteRequestListOptions{Email: "USERB@example.com"})
	if err != nil {
		t.Fatalf("filter email: %v", err)
	}
	if len(byEmail) != 1 || byEmail[0].SelectedPlan != "eBranch Plan" {
		t.Errorf("email filter returned %v", byEmail)
	}

	recent, total, err := s.ListQuoteRequests(ctx, storage.QuoteRequestListOptions{Since: base.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("filter since: %v", err)
	}
	if total != 2 || len(recent) != 2 {
		t.Errorf("since filter total=%d len=%d", total, len(recent))
	}

	empty, total, err := s.ListQuoteRequests(ctx, storage.QuoteRequestListOptions{Offset: 10})
	if err != nil {
		t.Fatalf("offset past end: %v", err)
	}
	if total != 4 || len(empty) != 0 {
		t.Errorf("offset past end total=%d len=%d", total, len(empty))
	}
}

func testTutorials(t *testing.T, s storage.Store) {
	ctx := context.Background()

	list, err := s.ListTutorials(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("fresh store list = %v, %v", list, err)
	}

	created, err := s.CreateTutorial(ctx, domain.CreateTutorial{
		Title:       "Register a BV",
		Description: "Dutch private limited company",
		Country:     "Netherlands",
		MainURL:     "https://www.kvk.nl",
		Steps: []domain.CreateTutorialStep{
			{StepNumber: 2, StepTitle: "Notary", StepDescription: "Sign the deed", StepImageURL: "https://img.example/2.png"},
			{StepNumber: 1, StepTitle: "Name check", StepDescription: "Check availability"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || len(created.Steps) != 2 {
		t.Fatalf("unexpected created tutorial: %+v", created)
	}
	if created.Steps[0].StepNumber != 1 || created.Steps[1].StepNumber != 2 {
		t.Errorf("steps not ordered: %+v", created.Steps)
	}

	second, err := s.CreateTutorial(ctx, domain.CreateTutorial{Title: "USt-IdNr", Country: "Germany"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	got, err := s.GetTutorial(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("get mismatch (-want +got):\n%s", diff)
	}

	list, err = s.ListTutorials(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != created.ID || list[1].ID != second.ID {
		t.Fatalf("unexpected list order: %+v", list)
	}
	if len(list[1].Steps) != 0 || list[1].Steps == nil {
		t.Errorf("tutorial without steps should have an empty, non-nil step list")
	}

	if _, err := s.GetTutorial(ctx, 9999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateTutorial(ctx, domain.CreateTutorial{Title: "", Country: "Spain"}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
