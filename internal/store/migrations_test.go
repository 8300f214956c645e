package store

import (
	"io/fs"
	"regexp"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := fs.ReadDir(Migrations, "migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}
	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected file in migrations: %s", entry.Name())
		}
		if byVersion[match[1]] == nil {
			byVersion[match[1]] = map[string]bool{}
		}
		byVersion[match[1]][match[2]] = true
	}
	if len(byVersion) == 0 {
		t.Fatal("no migrations embedded")
	}
	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s missing up or down file", version)
		}
	}
}

func TestUpMigrationsSorted(t *testing.T) {
	files, err := upMigrations(Migrations, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 || files[0] != "migrations/0001_annotations.up.sql" {
		t.Fatalf("upMigrations() = %v", files)
	}
}
