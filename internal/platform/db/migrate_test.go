package db

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func newTestMigrator(t *testing.T, files map[string]string) *Migrator {
	t.Helper()
	m, err := NewMigrator(nil, mapFS(files), "public")
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}
	return m
}

func TestLoad_OrdersByVersion(t *testing.T) {
	m := newTestMigrator(t, map[string]string{
		"010_indexes.sql":       "SELECT 10;",
		"003_prescriptions.sql": "CREATE TABLE prescriptions (id UUID PRIMARY KEY);",
		"001_users.sql":         "CREATE TABLE users (id UUID PRIMARY KEY);",
	})

	migrations, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []int{1, 3, 10}
	if len(migrations) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(migrations))
	}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].SQL != "CREATE TABLE users (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL %q", migrations[0].SQL)
	}
	if len(migrations[0].Checksum) != 64 {
		t.Errorf("expected hex sha256 checksum, got %q", migrations[0].Checksum)
	}
}

func TestLoad_SkipsUnversionedFiles(t *testing.T) {
	fsys := mapFS(map[string]string{
		"001_valid.sql":      "SELECT 1;",
		"readme.sql":         "-- no version prefix",
		"notes.txt":          "not sql",
		"abc_invalid.sql":    "-- non-numeric prefix",
		"000_zero.sql":       "-- zero is not a version",
		"002_also_valid.sql": "SELECT 2;",
		"003_dir.sql/nested": "SELECT 3;",
	})
	m, err := NewMigrator(nil, fsys, "public")
	if err != nil {
		t.Fatal(err)
	}

	migrations, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %+v", migrations)
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	m := newTestMigrator(t, map[string]string{
		"002_a.sql": "SELECT 1;",
		"002_b.sql": "SELECT 2;",
	})
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "share version 2") {
		t.Errorf("expected duplicate version error, got %v", err)
	}
}

func TestLoad_Empty(t *testing.T) {
	migrations, err := newTestMigrator(t, nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected no migrations, got %d", len(migrations))
	}
}

func TestPending(t *testing.T) {
	migrations, err := newTestMigrator(t, map[string]string{
		"001_users.sql":     "CREATE TABLE users ();",
		"002_diagnoses.sql": "CREATE TABLE diagnoses ();",
		"003_reminders.sql": "CREATE TABLE reminders ();",
	}).Load()
	if err != nil {
		t.Fatal(err)
	}

	applied := map[int]AppliedMigration{
		1: {Version: 1, Checksum: migrations[0].Checksum},
	}
	todo, err := pending(migrations, applied)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(todo) != 2 || todo[0].Version != 2 || todo[1].Version != 3 {
		t.Errorf("expected versions 2 and 3 pending, got %+v", todo)
	}

	applied[2] = AppliedMigration{Version: 2, Checksum: "stale"}
	if _, err := pending(migrations, applied); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestBuildStatuses(t *testing.T) {
	appliedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	migrations := []Migration{
		{Version: 1, Name: "001_users.sql", Checksum: "a"},
		{Version: 2, Name: "002_diagnoses.sql", Checksum: "b"},
		{Version: 3, Name: "003_prescriptions.sql", Checksum: "c"},
	}

	statuses := buildStatuses(migrations, map[int]AppliedMigration{
		1: {Version: 1, Checksum: "a", AppliedAt: appliedAt},
		2: {Version: 2, Checksum: "edited", AppliedAt: appliedAt},
	})
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].Modified || !statuses[0].AppliedAt.Equal(appliedAt) {
		t.Errorf("unexpected status for 001: %+v", statuses[0])
	}
	if !statuses[1].Modified {
		t.Errorf("expected 002 to be flagged as modified")
	}
	if statuses[2].Applied || statuses[2].AppliedAt != nil {
		t.Errorf("expected 003 pending, got %+v", statuses[2])
	}
}

func TestNewMigrator_RejectsBadSchema(t *testing.T) {
	for _, schema := range []string{"", "public; DROP TABLE users", "1abc", "a-b"} {
		if _, err := NewMigrator(nil, fstest.MapFS{}, schema); err == nil {
			t.Errorf("expected error for schema %q", schema)
		}
	}
}
