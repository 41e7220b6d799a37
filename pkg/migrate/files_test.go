package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShippedMigrationsAreValid(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("shipped migrations invalid: %v", err)
	}
}

func TestCreateSQLMigrationSanitizesAndOrders(t *testing.T) {
	dir := t.TempDir()
	future := filepath.Join(dir, "29990101000000_far_future.sql")
	if err := os.WriteFile(future, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	path, err := CreateSQLMigration(dir, "Add Staff-Alert index!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	base := filepath.Base(path)
	if base != "29990101000001_add_staff_alert_index.sql" {
		t.Fatalf("unexpected file name %q", base)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "-- rollback add_staff_alert_index") {
		t.Fatalf("unexpected template:\n%s", body)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), " !! "); err == nil {
		t.Fatal("expected error for empty slug")
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"20261001090000_reversed.sql": "-- +goose Down\n-- +goose Up\n",
		"20261001090000_dup.sql":      "-- +goose Up\n-- +goose Down\n",
		"2026_bad_name.sql":           "-- +goose Up\n-- +goose Down\n",
		"20261001090000_noup.sql":     "-- +goose Down\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
				t.Fatalf("seed: %v", err)
			}
			if name == "20261001090000_dup.sql" {
				_ = os.WriteFile(filepath.Join(dir, "20261001090000_other.sql"), []byte(body), 0o644)
			}
			if err := ValidateDir(dir); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}
