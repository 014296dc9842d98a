package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/multierr"

	"github.com/clubsphere/clubsphere-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestLedgerMigrationEnforcesUniqueness(t *testing.T) {
	content := readMigration(t, "create_ledger_tables")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_memberships_active_user_club ON memberships (user_id, club_id) WHERE status = 'active'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_event_registrations_active_user_event ON event_registrations (user_id, event_id) WHERE status = 'registered'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_external_ref ON payments (external_ref)",
		"CHECK (amount_cents >= 0)",
		"DROP TABLE IF EXISTS payments",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestClubsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_clubs_and_events")

	checks := []string{
		"CREATE TYPE club_status AS ENUM ('pending', 'approved', 'rejected')",
		"CHECK (membership_fee_cents >= 0)",
		"CHECK (NOT is_paid OR event_fee_cents > 0)",
		"CHECK (max_attendees >= 0)",
		"DROP TABLE IF EXISTS clubs",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if err := migrate.ValidateFS(migrate.EmbeddedFS()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embedded, err := fs.Glob(migrate.EmbeddedFS(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_ok.sql":        {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")},
		"20260101000000_dup.sql":       {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"bad-name.sql":                 {Data: []byte("")},
		"20260102000000_no_down.sql":   {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"20260103000000_open_stmt.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		"README.md":                    {Data: []byte("ignored")},
	}

	err := migrate.ValidateFS(fsys)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"bad-name.sql", "already used", "missing \"-- +goose Down\"", "never closed"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
	if got := len(multierr.Errors(err)); got != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", got, err)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Club Tags!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_club_tags.sql") {
		t.Fatalf("unexpected migration path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for a name without usable characters")
	}
}

func TestParseVersion(t *testing.T) {
	v, err := migrate.ParseVersion("20261001090200")
	if err != nil || v != 20261001090200 {
		t.Fatalf("unexpected result %d, %v", v, err)
	}
	if _, err := migrate.ParseVersion("42"); err == nil {
		t.Fatal("expected short version to fail")
	}
}
