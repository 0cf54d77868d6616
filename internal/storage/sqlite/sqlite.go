//go:build sqlite

// Package sqlite implements storage.Store on SQLite through the CGO-less
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"quotewizard/internal/domain"
	"quotewizard/internal/storage"
	migfs "quotewizard/migrations"
)

// timeLayout is fixed width so created_at strings sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens dsn, applies pragmas and runs pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Status opens dsn and summarizes its schema_migrations table against the
// embedded migrations without applying any.
func Status(dsn string) (string, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()
	st, err := migrationStatus(db, migfs.Files)
	if err != nil {
		return "", err
	}
	return st.String(), nil
}

// DB exposes the connection so the audit logger can share it.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const requestColumns = `id, name, email, phone, company, selected_plan, cart_items, add_ons, total_amount, base_price,
	country_fees, business_journey, based_in, expand_to, services, timeline, website, linkedin, company_size,
	session_id, source, vat_cents, gross_total_cents, created_at`

func (s *Store) CreateQuoteRequest(ctx context.Context, r domain.QuoteRequest) (domain.QuoteRequest, error) {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Name) == "" {
		return domain.QuoteRequest{}, fmt.Errorf("name and email required: %w", storage.ErrValidation)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if r.Source == "" {
		r.Source = domain.SourceWizard
	}

	addOns, _ := json.Marshal(nonNil(r.AddOns))
	fees, _ := json.Marshal(nonNil(r.CountryFees))
	expand, _ := json.Marshal(nonNil(r.ExpandTo))
	services, _ := json.Marshal(nonNil(r.Services))
	cart := r.CartItems
	if cart == "" {
		cart = "[]"
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO quote_requests(`+requestColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Email, r.Phone, r.Company, r.SelectedPlan, cart, string(addOns), r.TotalAmount, r.BasePrice,
		string(fees), r.BusinessJourney, r.BasedIn, string(expand), string(services), r.Timeline, r.Website, r.LinkedIn,
		r.CompanySize, r.SessionID, r.Source, r.VATCents, r.GrossTotalCents, r.CreatedAt.Format(timeLayout))
	if err != nil {
		return domain.QuoteRequest{}, storage.WrapIfConflict(err)
	}
	r.CartItems = cart
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (domain.QuoteRequest, error) {
	var r domain.QuoteRequest
	var addOns, fees, expand, services, ts string
	if err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Phone, &r.Company, &r.SelectedPlan, &r.CartItems, &addOns,
		&r.TotalAmount, &r.BasePrice, &fees, &r.BusinessJourney, &r.BasedIn, &expand, &services, &r.Timeline,
		&r.Website, &r.LinkedIn, &r.CompanySize, &r.SessionID, &r.Source, &r.VATCents, &r.GrossTotalCents, &ts); err != nil {
		return domain.QuoteRequest{}, err
	}
	if err := json.Unmarshal([]byte(addOns), &r.AddOns); err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("decode add_ons: %w", err)
	}
	if err := json.Unmarshal([]byte(fees), &r.CountryFees); err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("decode country_fees: %w", err)
	}
	if err := json.Unmarshal([]byte(expand), &r.ExpandTo); err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("decode expand_to: %w", err)
	}
	if err := json.Unmarshal([]byte(services), &r.Services); err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("decode services: %w", err)
	}
	if t, err := time.Parse(timeLayout, ts); err == nil {
		r.CreatedAt = t
	}
	return r, nil
}

func (s *Store) GetQuoteRequest(ctx context.Context, id string) (domain.QuoteRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM quote_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuoteRequest{}, fmt.Errorf("quote request %s: %w", id, storage.ErrNotFound)
	}
	return r, err
}

func (s *Store) ListQuoteRequests(ctx context.Context, opts storage.QuoteRequestListOptions) ([]domain.QuoteRequest, int, error) {
	opts = opts.Normalize()
	where := "1=1"
	args := []any{}
	if opts.SelectedPlan != "" {
		where += " AND selected_plan = ?"
		args = append(args, opts.SelectedPlan)
	}
	if opts.Email != "" {
		where += " AND email = ? COLLATE NOCASE"
		args = append(args, opts.Email)
	}
	if opts.Source != "" {
		where += " AND source = ?"
		args = append(args, opts.Source)
	}
	if !opts.Since.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, opts.Since.UTC().Format(timeLayout))
	}
	if !opts.Until.IsZero() {
		where += " AND created_at <= ?"
		args = append(args, opts.Until.UTC().Format(timeLayout))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quote_requests WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + requestColumns + " FROM quote_requests WHERE " + where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []domain.QuoteRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *Store) ListTutorials(ctx context.Context) ([]domain.Tutorial, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, country, main_url FROM tutorials ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	var out []domain.Tutorial
	index := map[int64]int{}
	for rows.Next() {
		t := domain.Tutorial{Steps: []domain.TutorialStep{}}
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Country, &t.MainURL); err != nil {
			rows.Close()
			return nil, err
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		return []domain.Tutorial{}, nil
	}

	steps, err := s.db.QueryContext(ctx, `SELECT id, tutorial_id, step_number, step_title, step_description, step_image_url
		FROM tutorial_steps ORDER BY tutorial_id ASC, step_number ASC`)
	if err != nil {
		return nil, err
	}
	defer steps.Close()
	for steps.Next() {
		var st domain.TutorialStep
		if err := steps.Scan(&st.ID, &st.TutorialID, &st.StepNumber, &st.StepTitle, &st.StepDescription, &st.StepImageURL); err != nil {
			return nil, err
		}
		if i, ok := index[st.TutorialID]; ok {
			out[i].Steps = append(out[i].Steps, st)
		}
	}
	return out, steps.Err()
}

func (s *Store) GetTutorial(ctx context.Context, id int64) (domain.Tutorial, error) {
	t := domain.Tutorial{Steps: []domain.TutorialStep{}}
	err := s.db.QueryRowContext(ctx, `SELECT id, title, description, country, main_url FROM tutorials WHERE id = ?`, id).
		Scan(&t.ID, &t.Title, &t.Description, &t.Country, &t.MainURL)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tutorial{}, fmt.Errorf("tutorial %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return domain.Tutorial{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, tutorial_id, step_number, step_title, step_description, step_image_url
		FROM tutorial_steps WHERE tutorial_id = ? ORDER BY step_number ASC`, id)
	if err != nil {
		return domain.Tutorial{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var st domain.TutorialStep
		if err := rows.Scan(&st.ID, &st.TutorialID, &st.StepNumber, &st.StepTitle, &st.StepDescription, &st.StepImageURL); err != nil {
			return domain.Tutorial{}, err
		}
		t.Steps = append(t.Steps, st)
	}
	return t, rows.Err()
}

func (s *Store) CreateTutorial(ctx context.Context, in domain.CreateTutorial) (domain.Tutorial, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Country) == "" {
		return domain.Tutorial{}, fmt.Errorf("title and country required: %w", storage.ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tutorial{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO tutorials(title, description, country, main_url, created_at) VALUES(?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.Country, in.MainURL, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return domain.Tutorial{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Tutorial{}, err
	}
	for _, st := range in.Steps {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tutorial_steps(tutorial_id, step_number, step_title, step_description, step_image_url) VALUES(?, ?, ?, ?, ?)`,
			id, st.StepNumber, st.StepTitle, st.StepDescription, st.StepImageURL); err != nil {
			return domain.Tutorial{}, storage.WrapIfConflict(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Tutorial{}, err
	}
	return s.GetTutorial(ctx, id)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
