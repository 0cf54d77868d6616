package storage

import (
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MigrationFile is one embedded NNN_name migration.
type MigrationFile struct {
	Version int
	Name    string
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version    int
	Name       string
	AppVersion string
	AppliedAt  time.Time
}

// MigrationStatus compares schema_migrations with the embedded files.
type MigrationStatus struct {
	Applied []AppliedMigration
	Pending []MigrationFile
}

// ListMigrations returns the files in fsys named NNN_<name><suffix>, oldest first.
func ListMigrations(fsys fs.FS, suffix string) ([]MigrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []MigrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		num, rest, ok := strings.Cut(e.Name(), "_")
		v, err := strconv.Atoi(num)
		if !ok || err != nil || rest == suffix {
			continue
		}
		out = append(out, MigrationFile{Version: v, Name: e.Name()})
	}
	slices.SortFunc(out, func(a, b MigrationFile) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// NewMigrationStatus splits files into applied and pending.
func NewMigrationStatus(files []MigrationFile, applied []AppliedMigration) MigrationStatus {
	st := MigrationStatus{Applied: slices.Clone(applied)}
	slices.SortFunc(st.Applied, func(a, b AppliedMigration) int { return cmp.Compare(a.Version, b.Version) })
	for _, f := range files {
		if !slices.ContainsFunc(st.Applied, func(a AppliedMigration) bool { return a.Version == f.Version }) {
			st.Pending = append(st.Pending, f)
		}
	}
	return st
}

// SchemaVersion is the highest applied version, or 0.
func (s MigrationStatus) SchemaVersion() int {
	if len(s.Applied) == 0 {
		return 0
	}
	return s.Applied[len(s.Applied)-1].Version
}

// String renders the status on one line, naming every applied migration.
func (s MigrationStatus) String() string {
	names := make([]string, len(s.Applied))
	for i, a := range s.Applied {
		names[i] = a.Name
	}
	pending := make([]string, len(s.Pending))
	for i, p := range s.Pending {
		pending[i] = p.Name
	}
	b := fmt.Sprintf("schema_version=%d applied=%d pending=%d migrations=%s",
		s.SchemaVersion(), len(s.Applied), len(s.Pending), strings.Join(names, ","))
	if len(pending) > 0 {
		b += " pending_migrations=" + strings.Join(pending, ",")
	}
	if n := len(s.Applied); n > 0 {
		last := s.Applied[n-1]
		b += fmt.Sprintf(" app_version=%s applied_at=%s", last.AppVersion, last.AppliedAt.UTC().Format(time.RFC3339))
	}
	return b
}

// AppVersion is the APP_VERSION recorded with each migration, "dev" when unset.
func AppVersion() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
