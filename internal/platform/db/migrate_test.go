package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadMigrations(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_core.sql":    "CREATE TABLE access_policy (id UUID PRIMARY KEY);",
		"002_audit.sql":   "CREATE TABLE access_audit (id UUID PRIMARY KEY);",
		"003_catalog.sql": "CREATE TABLE document_catalog (id UUID PRIMARY KEY);",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 3} {
		if migrations[i].Version != want {
			t.Errorf("migration[%d]: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("expected name 001_core.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE access_policy (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	// Versions deliberately out of lexical order on disk.
	dir := writeMigrations(t, map[string]string{
		"010_audit_indexes.sql": "SELECT 10;",
		"002_requests.sql":      "SELECT 2;",
		"001_core.sql":          "SELECT 1;",
		"005_catalog.sql":       "SELECT 5;",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	got := make([]int, len(migrations))
	for i, m := range migrations {
		got[i] = m.Version
	}
	want := []int{1, 2, 5, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected version %d, got %d", i, want[i], got[i])
		}
	}
}

func TestLoadMigrations_SkipsUnversionedFiles(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_core.sql":     "SELECT 1;",
		"002_audit.sql":    "SELECT 2;",
		"readme.sql":       "-- no version prefix",
		"notes.txt":        "not a sql file",
		"abc_requests.sql": "-- non-numeric prefix",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 versioned migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("unexpected versions: %d, %d", migrations[0].Version, migrations[1].Version)
	}
}

func TestLoadMigrations_EmptyDir(t *testing.T) {
	migrations, err := NewMigrator(nil, t.TempDir()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected no migrations from empty dir, got %d", len(migrations))
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	_, err := NewMigrator(nil, filepath.Join(t.TempDir(), "does-not-exist")).LoadMigrations()
	if err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestNewMigrator(t *testing.T) {
	m := NewMigrator(nil, "/srv/migrations")
	if m == nil {
		t.Fatal("expected non-nil Migrator")
	}
	if m.dir != "/srv/migrations" {
		t.Errorf("expected dir /srv/migrations, got %s", m.dir)
	}
}
