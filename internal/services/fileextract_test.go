package services

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractText_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fl250.TXT")
	raw := "  Forklift FL250  \r\n\r\n\r\n\r\nLift capacity: 2.5 t\r\n   \n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ExtractText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "Forklift FL250\n\nLift capacity: 2.5 t"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestExtractText_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.md")
	if err := os.WriteFile(empty, []byte("  \n\n "), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"unsupported", filepath.Join(dir, "sheet.docx")},
		{"missing", filepath.Join(dir, "missing.txt")},
		{"blank", empty},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ExtractText(tc.path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSupportedDocument(t *testing.T) {
	for path, want := range map[string]bool{
		"a.pdf":  true,
		"a.PDF":  true,
		"a.txt":  true,
		"a.md":   true,
		"a.docx": false,
		"a":      false,
	} {
		if got := SupportedDocument(path); got != want {
			t.Errorf("SupportedDocument(%q) = %v, want %v", path, got, want)
		}
	}
}
