package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFiles_OrdersByVersionAndSkipsOthers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"010_later.sql",
		"002_second.sql",
		"001_first.sql",
		"README.md",
		"abc_not_versioned.sql",
		"000_zero.sql",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 10}
	if len(files) != len(want) {
		t.Fatalf("expected %d migrations, got %d: %+v", len(want), len(files), files)
	}
	for i, v := range want {
		if files[i].version != v {
			t.Fatalf("position %d: expected version %d, got %d", i, v, files[i].version)
		}
	}
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	if _, err := migrationFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestMigrationFiles_ShipsVectorStoreSchema(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) == 0 || files[0].name != "001_knowledge_base_schema.sql" {
		t.Fatalf("expected 001_knowledge_base_schema.sql first, got %+v", files)
	}
}
