//go:build sqlite

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"quotewizard/internal/domain"
	"quotewizard/internal/storage"
	"quotewizard/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?cache=shared"
	s, err := New(dsn)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return newTestStore(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "again.db")
	s, err := New(dsn)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = New(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	status, err := Status(dsn)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(status, "schema_version=4") || !strings.Contains(status, "applied=4") || !strings.Contains(status, "pending=0") {
		t.Errorf("unexpected status: %s", status)
	}
	if !strings.Contains(status, "004_quote_request_source.sql") {
		t.Errorf("status should name the applied migrations: %s", status)
	}

	st, err := s.Migrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Applied) != 4 || st.Applied[0].Name != "001_quote_requests.sql" || st.Applied[0].AppVersion == "" {
		t.Errorf("applied = %+v", st.Applied)
	}
}

func TestMigrationFailureRollsBack(t *testing.T) {
	s := newTestStore(t)
	bad := fstest.MapFS{
		"900_broken.sql": {Data: []byte("CREATE TABLE broken (id INTEGER PRIMARY KEY); NOT SQL")},
	}
	if err := runMigrationsFS(s.db, bad); err == nil || !strings.Contains(err.Error(), "900_broken.sql") {
		t.Fatalf("expected migration error naming the file, got %v", err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE version = 900`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("failed migration was recorded as applied")
	}
	if _, err := s.db.Exec(`SELECT 1 FROM broken`); err == nil {
		t.Error("failed migration left its table behind")
	}
}

func TestMigrationRecordsAppVersion(t *testing.T) {
	t.Setenv("APP_VERSION", "1.4.2")
	s := newTestStore(t)
	extra := fstest.MapFS{
		"901_cart_index.sql": {Data: []byte("CREATE INDEX IF NOT EXISTS idx_cart_company ON quote_requests(company)")},
	}
	if err := runMigrationsFS(s.db, extra); err != nil {
		t.Fatal(err)
	}
	st, err := migrationStatus(s.db, extra)
	if err != nil {
		t.Fatal(err)
	}
	last := st.Applied[len(st.Applied)-1]
	if last.Name != "901_cart_index.sql" || last.AppVersion != "1.4.2" || len(st.Pending) != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestDuplicateQuoteRequestID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := storagetest.SampleRequest("dup@example.com")
	r.ID = "0d3c1a5e-9f61-4c7a-b9c2-111111111111"
	if _, err := s.CreateQuoteRequest(ctx, r); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateQuoteRequest(ctx, r); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDuplicateTutorialStepNumber(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateTutorial(context.Background(), domain.CreateTutorial{
		Title:   "Register an SL",
		Country: "Spain",
		Steps: []domain.CreateTutorialStep{
			{StepNumber: 1, StepTitle: "NIE"},
			{StepNumber: 1, StepTitle: "NIF"},
		},
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	list, err := s.ListTutorials(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("partial tutorial persisted: %+v", list)
	}
}
