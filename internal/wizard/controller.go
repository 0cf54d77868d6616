// Package wizard implements the nine-step quote flow: a Controller that owns
// the current step and accumulated state, step components that collect input,
// and a registry of in-memory sessions.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"quotewizard/internal/catalog"
	"quotewizard/internal/domain"
	"quotewizard/internal/pricing"
)

// Step numbers.
const (
	StepBusinessJourney = iota + 1
	StepGeography
	StepServices
	StepBusinessProfile
	StepTimeline
	StepPlanSelection
	StepAddOns
	StepContactInfo
	StepSummary

	FirstStep  = StepBusinessJourney
	TotalSteps = StepSummary
)

var (
	// ErrIncomplete is returned when Continue is attempted before the step's
	// required fields are present.
	ErrIncomplete = errors.New("step incomplete")
	// ErrWrongStep is returned when input for one step arrives while the
	// controller is on another.
	ErrWrongStep = errors.New("wrong step")
	// ErrInvalidChoice is returned when a selection is not in the catalog.
	ErrInvalidChoice = errors.New("invalid choice")
)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSummaryDelay sets how long the summary reports itself as generating
// after it is entered.
func WithSummaryDelay(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.summaryDelay = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithQuoteHook registers a callback run after each successful pricing on
// entry to the summary step.
func WithQuoteHook(fn func(pricing.Quote)) ControllerOption {
	return func(c *Controller) { c.onQuote = fn }
}

// WithStrictValidation enables format checks on contact details and profile URLs.
func WithStrictValidation(strict bool) ControllerOption {
	return func(c *Controller) { c.strict = strict }
}

// Controller owns the current step and the accumulated WizardState.
// It is not safe for concurrent use; Session serializes access.
type Controller struct {
	cat   *catalog.Catalog
	step  int
	state domain.WizardState

	summaryDelay   time.Duration
	summaryReadyAt time.Time
	pricingErr     error
	strict         bool

	now     func() time.Time
	onQuote func(pricing.Quote)
}

// NewController starts a fresh wizard on step 1 with empty state.
func NewController(cat *catalog.Catalog, opts ...ControllerOption) *Controller {
	c := &Controller{
		cat:   cat,
		step:  FirstStep,
		state: domain.NewWizardState(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the catalog the controller validates against.
func (c *Controller) Catalog() *catalog.Catalog { return c.cat }

// CurrentStep returns the active step in [1, 9].
func (c *Controller) CurrentStep() int { return c.step }

// NextStep advances one step unless already on the summary. Entering the
// summary runs the pricing calculator once.
func (c *Controller) NextStep() {
	if c.step >= TotalSteps {
		return
	}
	c.step++
	if c.step == StepSummary {
		c.enterSummary()
	}
}

// PrevStep goes back one step unless already on the first.
func (c *Controller) PrevStep() {
	if c.step > FirstStep {
		c.step--
	}
}

// UpdateUserData shallow-merges u into the state.
func (c *Controller) UpdateUserData(u domain.WizardUpdate) {
	c.state = u.Apply(c.state)
}

// Snapshot returns a deep copy of the state.
func (c *Controller) Snapshot() domain.WizardState {
	return c.state.Clone()
}

// PricingError returns the error from the last summary pricing run, if any.
func (c *Controller) PricingError() error { return c.pricingErr }

// Generating reports whether the summary was entered less than the summary
// delay ago.
func (c *Controller) Generating() bool {
	return c.step == StepSummary && c.now().Before(c.summaryReadyAt)
}

// SummaryReadyAt is when the summary stops reporting Generating. It is zero
// until the summary has been entered.
func (c *Controller) SummaryReadyAt() time.Time { return c.summaryReadyAt }

func (c *Controller) enterSummary() {
	c.summaryReadyAt = c.now().Add(c.summaryDelay)
	q, err := pricing.ForState(c.cat, c.state)
	c.pricingErr = err
	if err != nil {
		return
	}
	c.UpdateUserData(q.Update())
	if c.onQuote != nil {
		c.onQuote(q)
	}
}

// Badge is one entry of the progress indicator.
type Badge struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Current   bool   `json:"current"`
}

// Progress describes how far through the wizard the session is.
type Progress struct {
	Step    int     `json:"step"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Badges  []Badge `json:"badges"`
}

// Progress returns the progress indicator for the current step.
func (c *Controller) Progress() Progress {
	p := Progress{
		Step:    c.step,
		Total:   TotalSteps,
		Percent: float64(c.step) / float64(TotalSteps) * 100,
		Badges:  make([]Badge, 0, TotalSteps),
	}
	for i := 1; i <= TotalSteps; i++ {
		title := ""
		if i-1 < len(c.cat.Steps) {
			title = c.cat.Steps[i-1].Title
		}
		p.Badges = append(p.Badges, Badge{ID: i, Title: title, Completed: i < c.step, Current: i == c.step})
	}
	return p
}

// requireStep returns ErrWrongStep unless the controller is on step n.
func (c *Controller) requireStep(n int) error {
	if c.step != n {
		return &StepError{Want: n, Current: c.step}
	}
	return nil
}

// StepError reports input for a step other than the current one.
type StepError struct {
	Want    int
	Current int
}

func (e *StepError) Error() string {
	return fmt.Sprintf("input for step %d but wizard is on step %d", e.Want, e.Current)
}

func (e *StepError) Unwrap() error { return ErrWrongStep }

