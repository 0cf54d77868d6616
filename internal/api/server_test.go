package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"quotewizard/internal/audit"
	"quotewizard/internal/catalog"
	"quotewizard/internal/domain"
	"quotewizard/internal/observability"
	"quotewizard/internal/storage"
	"quotewizard/internal/submission"
	"quotewizard/internal/wizard"
)

const testAdminToken = "test-admin-token-123"

type testEnv struct {
	handler http.Handler
	store   *storage.MemoryStore
	audit   *audit.MemoryAuditLogger
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   storage.NewMemoryStore(),
		audit:   audit.NewMemoryAuditLogger(),
		metrics: observability.NewMetrics(observability.DefaultMetricsConfig()),
	}
	opts := Options{
		Store:          env.store,
		Catalog:        catalog.Default(),
		Logger:         observability.NewLoggerFromSlog(newTestLogger()),
		Metrics:        env.metrics,
		AuditLogger:    env.audit,
		AdminTokenHash: testTokenHash(t, testAdminToken),
		DashboardURL:   "https://dashboard.example.com/client",
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	mux := http.NewServeMux()
	NewServer(mux, opts).RegisterRoutes()
	env.handler = ApplyMiddlewares(mux, RequestIDMiddleware(), LoggingMiddleware(newTestLogger()))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return serve(e.handler, req)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func (e *testEnv) newSession(t *testing.T) SessionResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/quote/sessions", nil, "")
	expectStatus(t, rr, http.StatusCreated)
	return decode[SessionResponse](t, rr)
}

var walkthrough = []struct {
	step int
	in   wizard.StepInput
}{
	{wizard.StepBusinessJourney, wizard.StepInput{BusinessJourney: "existing"}},
	{wizard.StepGeography, wizard.StepInput{BasedIn: "United Kingdom", ExpandTo: []string{"Netherlands"}}},
	{wizard.StepServices, wizard.StepInput{Services: []string{"Local Entity Setup"}}},
	{wizard.StepBusinessProfile, wizard.StepInput{CompanySize: "21-50 employees"}},
	{wizard.StepTimeline, wizard.StepInput{Timeline: "asap"}},
	{wizard.StepPlanSelection, wizard.StepInput{Plan: "eBranch Plan"}},
	{wizard.StepAddOns, wizard.StepInput{AddOns: []string{"Corporate Tax Filing"}}},
	{wizard.StepContactInfo, wizard.StepInput{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+44 20 7946 0958"}},
}

func (e *testEnv) walkToSummary(t *testing.T, id string) SessionResponse {
	t.Helper()
	var resp SessionResponse
	for _, st := range walkthrough {
		rr := e.do(t, http.MethodPost, "/api/v1/quote/sessions/"+id+"/steps/"+strconv.Itoa(st.step), st.in, "")
		expectStatus(t, rr, http.StatusOK)
		resp = decode[SessionResponse](t, rr)
		if resp.Step != st.step+1 {
			t.Fatalf("after step %d on step %d", st.step, resp.Step)
		}
	}
	return resp
}

func TestWizardFlow_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	sess := env.newSession(t)
	if sess.Step != 1 || sess.Progress.Total != 9 || len(sess.Progress.Badges) != 9 || !sess.Progress.Badges[0].Current {
		t.Fatalf("unexpected new session: %+v", sess)
	}

	summary := env.walkToSummary(t, sess.ID)
	if summary.Step != wizard.StepSummary || summary.PricingError != "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.State.TotalPrice != 2495 || summary.State.BasePrice != 1995 {
		t.Errorf("total = %d base = %d, want 2495 and 1995", summary.State.TotalPrice, summary.State.BasePrice)
	}
	if diff := cmp.Diff([]domain.CountryFee{{Country: "Netherlands", Fee: 50}}, summary.State.CountryFees); diff != "" {
		t.Errorf("country fees (-want +got):\n%s", diff)
	}

	rr := env.do(t, http.MethodPost, "/api/v1/quote/sessions/"+sess.ID+"/submit", nil, "")
	expectStatus(t, rr, http.StatusCreated)
	sub := decode[SubmitResponse](t, rr)
	if sub.RedirectURL != "https://dashboard.example.com/client" {
		t.Errorf("redirect = %q", sub.RedirectURL)
	}
	if sub.QuoteRequest.TotalAmount != 2495 || sub.QuoteRequest.SessionID != sess.ID {
		t.Errorf("record = %+v", sub.QuoteRequest)
	}

	stored, err := env.store.GetQuoteRequest(context.Background(), sub.QuoteRequest.ID)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	back, err := submission.ParseRecord(stored)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(summary.State, back); diff != "" {
		t.Errorf("stored record does not round trip (-want +got):\n%s", diff)
	}

	// The session is discarded after a successful submission.
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/quote/sessions/"+sess.ID, nil, ""), http.StatusNotFound)

	events, _, _ := env.audit.List(context.Background(), audit.ListOptions{Action: audit.ActionSubmit})
	if len(events) != 1 || events[0].ResourceID != sub.QuoteRequest.ID || events[0].Actor != sess.ID {
		t.Errorf("submit audit events = %+v", events)
	}
}

func TestSessionStepErrors(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t).ID
	base := "/api/v1/quote/sessions/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"wrong step", http.MethodPost, base + "/steps/6", wizard.StepInput{Plan: "Free Plan"}, http.StatusConflict},
		{"invalid journey", http.MethodPost, base + "/steps/1", wizard.StepInput{BusinessJourney: "teleport"}, http.StatusBadRequest},
		{"incomplete journey", http.MethodPost, base + "/steps/1", nil, http.StatusUnprocessableEntity},
		{"summary takes no input", http.MethodPost, base + "/steps/9", nil, http.StatusNotFound},
		{"step zero", http.MethodPost, base + "/steps/0", nil, http.StatusNotFound},
		{"non numeric step", http.MethodPost, base + "/steps/two", nil, http.StatusNotFound},
		{"malformed body", http.MethodPost, base + "/steps/1", `{"business_journey":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, base + "/steps/1", `{"journey":"existing"}`, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/v1/quote/sessions/nope", nil, http.StatusNotFound},
		{"unknown subroute", http.MethodPost, base + "/finish", nil, http.StatusNotFound},
		{"next needs POST", http.MethodGet, base + "/next", nil, http.StatusMethodNotAllowed},
		{"data needs PATCH", http.MethodPost, base + "/data", `{}`, http.StatusMethodNotAllowed},
		{"sessions needs POST", http.MethodGet, "/api/v1/quote/sessions", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body, "")
			expectStatus(t, rr, tt.want)
			if e := decode[apiError](t, rr); e.Error == "" {
				t.Error("error body should name the error")
			}
		})
	}

	// None of the failures above moved the session.
	sess := decode[SessionResponse](t, env.do(t, http.MethodGet, base, nil, ""))
	if sess.Step != 1 || sess.State.BusinessJourney != "" {
		t.Errorf("session changed by rejected input: %+v", sess)
	}
}

func TestSessionGeographyIncomplete(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t).ID
	base := "/api/v1/quote/sessions/" + id
	expectStatus(t, env.do(t, http.MethodPost, base+"/steps/1", wizard.StepInput{BusinessJourney: "exploring"}, ""), http.StatusOK)

	rr := env.do(t, http.MethodPost, base+"/steps/2", wizard.StepInput{BasedIn: "United Kingdom"}, "")
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	if e := decode[apiError](t, rr); e.Error != "step incomplete" {
		t.Errorf("error = %+v", e)
	}
}

func TestSessionNavigation(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/quote/sessions/" + env.newSession(t).ID

	prev := decode[SessionResponse](t, env.do(t, http.MethodPost, base+"/prev", nil, ""))
	if prev.Step != 1 {
		t.Fatalf("prev on step 1 moved to %d", prev.Step)
	}

	var last SessionResponse
	for i := 0; i < 10; i++ {
		rr := env.do(t, http.MethodPost, base+"/next", nil, "")
		expectStatus(t, rr, http.StatusOK)
		last = decode[SessionResponse](t, rr)
	}
	if last.Step != wizard.StepSummary {
		t.Fatalf("next past the end landed on %d", last.Step)
	}
	// No plan was chosen: the free plan is priced and flagged.
	if !last.State.PlanDefaulted || last.State.TotalPrice != 0 || last.Progress.Percent != 100 {
		t.Errorf("unexpected summary state: %+v", last)
	}
	if last.SummaryReadyAt == nil {
		t.Error("summary_ready_at should be set once the summary is entered")
	}

	back := decode[SessionResponse](t, env.do(t, http.MethodPost, base+"/prev", nil, ""))
	if back.Step != 8 {
		t.Errorf("prev from summary = %d", back.Step)
	}
}

func TestSessionPatchDataIsShallow(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/quote/sessions/" + env.newSession(t).ID

	expectStatus(t, env.do(t, http.MethodPatch, base+"/data",
		`{"geography":{"based_in":"Germany","expand_to":["France","Spain"]},"timeline":"asap"}`, ""), http.StatusOK)
	rr := env.do(t, http.MethodPatch, base+"/data", `{"geography":{"based_in":"Italy"}}`, "")
	expectStatus(t, rr, http.StatusOK)

	state := decode[SessionResponse](t, rr).State
	if state.Geography.BasedIn != "Italy" || len(state.Geography.ExpandTo) != 0 {
		t.Errorf("geography should be replaced whole, got %+v", state.Geography)
	}
	if state.Timeline != "asap" {
		t.Errorf("untouched fields must survive, timeline = %q", state.Timeline)
	}
}

func TestSessionPatchDataCannotRewritePrices(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t).ID
	base := "/api/v1/quote/sessions/" + id
	env.walkToSummary(t, id)

	rr := env.do(t, http.MethodPatch, base+"/data",
		`{"total_price":1,"geography":{"based_in":"United Kingdom","expand_to":["Netherlands","Netherlands"]}}`, "")
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPatch, base+"/data",
		`{"geography":{"based_in":"United Kingdom","expand_to":["Netherlands","Netherlands"]}}`, "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[SessionResponse](t, rr).State.Geography.ExpandTo; !cmp.Equal(got, []string{"Netherlands"}) {
		t.Errorf("expand_to = %v, want a set", got)
	}

	rr = env.do(t, http.MethodPatch, base+"/data", `{"add_ons":[{"name":"Corporate Tax Filing","price":0}]}`, "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[SessionResponse](t, rr).State.AddOns; !cmp.Equal(got, []domain.AddOn{{Name: "Corporate Tax Filing", Price: 450}}) {
		t.Errorf("add-on prices must come from the catalog, got %+v", got)
	}
	expectStatus(t, env.do(t, http.MethodPatch, base+"/data", `{"add_ons":[{"name":"Yacht","price":1}]}`, ""),
		http.StatusBadRequest)

	rr = env.do(t, http.MethodPost, base+"/submit", nil, "")
	expectStatus(t, rr, http.StatusCreated)
	if got := decode[SubmitResponse](t, rr).QuoteRequest; got.TotalAmount != 2495 || len(got.ExpandTo) != 1 {
		t.Errorf("stored total %d expand_to %v", got.TotalAmount, got.ExpandTo)
	}
}

func TestSubmitRejectsStaleTotals(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t).ID
	base := "/api/v1/quote/sessions/" + id
	env.walkToSummary(t, id)

	expectStatus(t, env.do(t, http.MethodPatch, base+"/data",
		`{"geography":{"based_in":"United Kingdom","expand_to":["Netherlands","France"]}}`, ""), http.StatusOK)
	rr := env.do(t, http.MethodPost, base+"/submit", nil, "")
	expectStatus(t, rr, http.StatusConflict)
	if _, total, _ := env.store.ListQuoteRequests(context.Background(), storage.QuoteRequestListOptions{}); total != 0 {
		t.Fatalf("stale quote stored: %d records", total)
	}

	expectStatus(t, env.do(t, http.MethodPost, base+"/prev", nil, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, base+"/next", nil, ""), http.StatusOK)
	rr = env.do(t, http.MethodPost, base+"/submit", nil, "")
	expectStatus(t, rr, http.StatusCreated)
	want := int64(2495) + catalog.Default().CountryFee("France")
	if got := decode[SubmitResponse](t, rr).QuoteRequest.TotalAmount; got != want {
		t.Errorf("total = %d, want %d", got, want)
	}
}

type failingCollaborator struct{ calls int }

func (f *failingCollaborator) Insert(context.Context, string, domain.QuoteRequest) error {
	f.calls++
	return errors.New("upstream unavailable")
}

func TestSubmitFailureKeepsState(t *testing.T) {
	collab := &failingCollaborator{}
	env := newTestEnv(t, func(o *Options) {
		o.Submitter = submission.NewSubmitter(collab, o.Catalog)
	})
	id := env.newSession(t).ID
	before := env.walkToSummary(t, id)

	rr := env.do(t, http.MethodPost, "/api/v1/quote/sessions/"+id+"/submit", nil, "")
	expectStatus(t, rr, http.StatusBadGateway)
	if e := decode[apiError](t, rr); e.Detail != submission.SupportMessage {
		t.Errorf("detail = %q", e.Detail)
	}
	if collab.calls != 1 {
		t.Errorf("collaborator called %d times", collab.calls)
	}

	after := decode[SessionResponse](t, env.do(t, http.MethodGet, "/api/v1/quote/sessions/"+id, nil, ""))
	if diff := cmp.Diff(before.State, after.State); diff != "" || after.Step != wizard.StepSummary {
		t.Errorf("session changed after failed submit (step %d):\n%s", after.Step, diff)
	}

	events, _, _ := env.audit.List(context.Background(), audit.ListOptions{Action: audit.ActionSubmit})
	if len(events) != 1 || events[0].StatusCode != http.StatusBadGateway {
		t.Errorf("failed submit audit = %+v", events)
	}
}

func TestSubmitBeforeSummary(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t).ID
	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/quote/sessions/"+id+"/submit", nil, ""), http.StatusConflict)
}

func TestSubmitIncompleteRecord(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/quote/sessions/" + env.newSession(t).ID
	for i := 0; i < 8; i++ {
		env.do(t, http.MethodPost, base+"/next", nil, "")
	}
	rr := env.do(t, http.MethodPost, base+"/submit", nil, "")
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	if _, total, _ := env.store.ListQuoteRequests(context.Background(), storage.QuoteRequestListOptions{}); total != 0 {
		t.Errorf("incomplete submission stored %d records", total)
	}
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/quote/sessions/" + env.newSession(t).ID
	expectStatus(t, env.do(t, http.MethodDelete, path, nil, ""), http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodDelete, path, nil, ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, path, nil, ""), http.StatusNotFound)
}

func TestEstimate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/pricing/estimate", EstimateRequest{
		Plan: "eBranch Plan", AddOns: []string{"Corporate Tax Filing"}, ExpandTo: []string{"Netherlands"},
	}, "")
	expectStatus(t, rr, http.StatusOK)
	if q := decode[struct {
		TotalPrice int64 `json:"total_price"`
		AddOnTotal int64 `json:"add_on_total"`
	}](t, rr); q.TotalPrice != 2495 || q.AddOnTotal != 450 {
		t.Errorf("estimate = %+v", q)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/pricing/estimate", EstimateRequest{ExpandTo: []string{"Atlantis"}}, "")
	expectStatus(t, rr, http.StatusOK)
	if q := decode[map[string]any](t, rr); q["plan_defaulted"] != true || q["total_price"].(float64) != 500 {
		t.Errorf("defaulted estimate = %v", q)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/pricing/estimate", EstimateRequest{Plan: "Gold Plan"}, ""), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/pricing/estimate", EstimateRequest{Plan: "Free Plan", AddOns: []string{"Yacht"}}, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/pricing/estimate", nil, ""), http.StatusMethodNotAllowed)
}

func TestCatalogEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/catalog", nil, "")
	expectStatus(t, rr, http.StatusOK)
	cat := decode[catalog.Catalog](t, rr)
	if len(cat.Plans) != 3 || len(cat.Steps) != 9 {
		t.Errorf("catalog has %d plans and %d steps", len(cat.Plans), len(cat.Steps))
	}
}

func TestTutorialEndpoints(t *testing.T) {
	env := newTestEnv(t)
	create := domain.CreateTutorial{
		Title: "Register a branch in the Netherlands", Description: "KVK registration walkthrough",
		Country: "Netherlands", MainURL: "https://www.kvk.nl",
		Steps: []domain.CreateTutorialStep{
			{StepNumber: 2, StepTitle: "Book an appointment"},
			{StepNumber: 1, StepTitle: "Prepare documents"},
		},
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/tutorials", create, ""), http.StatusUnauthorized)

	rr := env.do(t, http.MethodPost, "/api/v1/tutorials", create, testAdminToken)
	expectStatus(t, rr, http.StatusCreated)
	created := decode[domain.Tutorial](t, rr)
	if len(created.Steps) != 2 || created.Steps[0].StepNumber != 1 {
		t.Errorf("steps not ordered: %+v", created.Steps)
	}
	if rr.Header().Get("Location") == "" {
		t.Error("missing Location header")
	}

	other := create
	other.Title, other.Country, other.Steps = "VAT registration", "Germany", nil
	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/tutorials", other, testAdminToken), http.StatusCreated)

	dup := create
	dup.Steps = []domain.CreateTutorialStep{{StepNumber: 1, StepTitle: "a"}, {StepNumber: 1, StepTitle: "b"}}
	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/tutorials", dup, testAdminToken), http.StatusBadRequest)

	list := decode[TutorialListResponse](t, env.do(t, http.MethodGet, "/api/v1/tutorials?country=Netherlands", nil, ""))
	if list.Total != 1 || list.Tutorials[0].ID != created.ID {
		t.Errorf("country filter = %+v", list)
	}
	if diff := cmp.Diff([]string{"Germany", "Netherlands"}, list.Countries); diff != "" {
		t.Errorf("countries (-want +got):\n%s", diff)
	}
	list = decode[TutorialListResponse](t, env.do(t, http.MethodGet, "/api/v1/tutorials?country=all&q=vat", nil, ""))
	if list.Total != 1 || list.Tutorials[0].Country != "Germany" {
		t.Errorf("query filter = %+v", list)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/tutorials/"+strconv.FormatInt(created.ID, 10), nil, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/tutorials/999", nil, ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/tutorials/abc", nil, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodDelete, "/api/v1/tutorials", nil, testAdminToken), http.StatusMethodNotAllowed)

	events, _, _ := env.audit.List(context.Background(), audit.ListOptions{ResourceType: audit.ResourceTutorial})
	if len(events) != 2 || events[0].ActorType != audit.ActorTypeAdmin {
		t.Errorf("tutorial audit events = %+v", events)
	}
}

func TestQuoteRequestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i, plan := range []string{"Free Plan", "eBranch Plan", "eBranch Plan"} {
		rec, err := env.store.CreateQuoteRequest(ctx, domain.QuoteRequest{
			Name: "Client", Email: "client@example.com", SelectedPlan: plan, CartItems: "[]",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/quote-requests", nil, ""), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/quote-requests", nil, "wrong-token-value"), http.StatusUnauthorized)

	type page struct {
		Items  []domain.QuoteRequest `json:"items"`
		Total  int                   `json:"total"`
		Limit  int                   `json:"limit"`
		Offset int                   `json:"offset"`
	}
	p := decode[page](t, env.do(t, http.MethodGet, "/api/v1/quote-requests?plan=eBranch+Plan&limit=1", nil, testAdminToken))
	if p.Total != 2 || len(p.Items) != 1 || p.Items[0].ID != ids[2] || p.Limit != 1 {
		t.Errorf("filtered page = %+v", p)
	}
	p = decode[page](t, env.do(t, http.MethodGet, "/api/v1/quote-requests?since=2026-06-01T10:00:00Z", nil, testAdminToken))
	if p.Total != 2 || p.Limit != storage.DefaultListLimit {
		t.Errorf("since page = %+v", p)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/quote-requests?since=yesterday", nil, testAdminToken), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/quote-requests?limit=-1", nil, testAdminToken), http.StatusBadRequest)

	rr := env.do(t, http.MethodGet, "/api/v1/quote-requests/"+ids[0], nil, testAdminToken)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[domain.QuoteRequest](t, rr); got.SelectedPlan != "Free Plan" {
		t.Errorf("get = %+v", got)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/quote-requests/missing", nil, testAdminToken), http.StatusNotFound)
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t).ID
	expectStatus(t, env.do(t, http.MethodDelete, "/api/v1/quote/sessions/"+id, nil, ""), http.StatusNoContent)

	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/audit", nil, ""), http.StatusUnauthorized)
	rr := env.do(t, http.MethodGet, "/api/v1/audit?resource_type=session&resource_id="+id, nil, testAdminToken)
	expectStatus(t, rr, http.StatusOK)
	body := decode[struct {
		Events []audit.AuditEvent `json:"events"`
		Total  int                `json:"total"`
	}](t, rr)
	if body.Total != 2 || body.Events[0].Action != audit.ActionDelete || body.Events[1].Action != audit.ActionCreate {
		t.Errorf("audit = %+v", body)
	}
	if body.Events[0].RequestID == "" || body.Events[0].ActorType != audit.ActorTypeSession {
		t.Errorf("audit event missing request or actor: %+v", body.Events[0])
	}
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/audit?since=bad", nil, testAdminToken), http.StatusBadRequest)
}

type downStore struct{ *storage.MemoryStore }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/healthz", nil, ""), http.StatusOK)
	rr := env.do(t, http.MethodGet, "/readyz", nil, "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[ReadinessResponse](t, rr); got.Checks["database"] != "ok" {
		t.Errorf("readiness = %+v", got)
	}

	down := newTestEnv(t, func(o *Options) { o.Store = downStore{storage.NewMemoryStore()} })
	rr = down.do(t, http.MethodGet, "/readyz", nil, "")
	expectStatus(t, rr, http.StatusServiceUnavailable)
	if got := decode[ReadinessResponse](t, rr); got.Status != "unhealthy" || got.Checks["database"] != "error" {
		t.Errorf("readiness = %+v", got)
	}
}

func TestDashboardRedirect(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/dashboard", nil, "")
	expectStatus(t, rr, http.StatusFound)
	if loc := rr.Header().Get("Location"); loc != "https://dashboard.example.com/client" {
		t.Errorf("Location = %q", loc)
	}

	bare := newTestEnv(t, func(o *Options) { o.DashboardURL = "" })
	expectStatus(t, bare.do(t, http.MethodGet, "/dashboard", nil, ""), http.StatusNotFound)
}

func TestStaticRoutes(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/", nil, "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Header().Get("Content-Type"), "text/html") {
		t.Errorf("index content type = %q", rr.Header().Get("Content-Type"))
	}

	rr = env.do(t, http.MethodGet, "/openapi.yaml", nil, "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "/api/v1/quote/sessions") {
		t.Error("openapi document does not describe the session routes")
	}

	expectStatus(t, env.do(t, http.MethodGet, "/nowhere", nil, ""), http.StatusNotFound)

	rr = env.do(t, http.MethodGet, "/metrics", nil, "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "active_sessions") {
		t.Error("metrics should expose active_sessions")
	}
}
