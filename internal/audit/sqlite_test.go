//go:build sqlite

package audit

import (
	"path/filepath"
	"testing"

	sqlitestore "quotewizard/internal/storage/sqlite"
)

func TestSQLiteAuditLogger(t *testing.T) {
	testAuditLogger(t, func(t *testing.T) AuditLogger {
		st, err := sqlitestore.New("file:" + filepath.Join(t.TempDir(), "audit.db"))
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return NewSQLiteAuditLoggerFromDB(st.DB())
	})
}
