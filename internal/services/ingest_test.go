package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"machinery-assistant/internal/models"
)

type stubEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
	texts []string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type stubChunkWriter struct {
	calls  int
	kb     string
	source string
	chunks []models.KnowledgeChunk
	err    error
}

func (s *stubChunkWriter) ReplaceSource(ctx context.Context, knowledgeBaseID, source string, chunks []models.KnowledgeChunk) error {
	s.calls++
	s.kb, s.source, s.chunks = knowledgeBaseID, source, chunks
	return s.err
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "w" + string(rune('a'+i%26))
	}
	return strings.Join(w, " ")
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name    string
		words   int
		size    int
		overlap int
		want    []int // words per chunk
	}{
		{"single chunk", 5, 10, 2, []int{5}},
		{"exact fit", 10, 5, 0, []int{5, 5}},
		{"with overlap", 10, 5, 2, []int{5, 5, 4}},
		{"overlap too large is ignored", 10, 5, 5, []int{5, 5}},
		{"empty", 0, 5, 1, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ChunkText(words(tc.words), tc.size, tc.overlap)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d chunks, got %d: %q", len(tc.want), len(got), got)
			}
			for i, n := range tc.want {
				if c := len(strings.Fields(got[i])); c != n {
					t.Errorf("chunk %d: expected %d words, got %d", i, n, c)
				}
			}
		})
	}
}

func TestChunkText_OverlapRepeatsWords(t *testing.T) {
	got := ChunkText("one two three four five six", 4, 2)
	want := []string{"one two three four", "three four five six"}
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestIngestText_EmbedsAndStoresInOrder(t *testing.T) {
	embedder := &stubEmbedder{}
	store := &stubChunkWriter{}
	ing := NewIngestor(embedder, store, 3, 0)

	n, err := ing.IngestText(context.Background(), "heavy-machinery", "bd850.txt", "a b c d e f g")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 || embedder.calls != 3 {
		t.Fatalf("expected 3 chunks embedded, got n=%d calls=%d", n, embedder.calls)
	}
	if store.calls != 1 || store.kb != "heavy-machinery" || store.source != "bd850.txt" {
		t.Errorf("unexpected store call: %+v", store)
	}
	for i, want := range []string{"a b c", "d e f", "g"} {
		c := store.chunks[i]
		if c.Text != want {
			t.Errorf("chunk %d: expected %q, got %q", i, want, c.Text)
		}
		if c.Metadata["chunk_index"] != i {
			t.Errorf("chunk %d: unexpected index %v", i, c.Metadata["chunk_index"])
		}
		if len(c.Embedding) == 0 || c.Embedding[0] != float32(len(want)) {
			t.Errorf("chunk %d: embedding does not belong to its text: %v", i, c.Embedding)
		}
	}
}

func TestIngestText_EmbedFailureStoresNothing(t *testing.T) {
	store := &stubChunkWriter{}
	ing := NewIngestor(&stubEmbedder{err: errors.New("quota")}, store, 3, 0)

	if _, err := ing.IngestText(context.Background(), "kb", "x.txt", "a b c d"); err == nil {
		t.Fatal("expected error")
	}
	if store.calls != 0 {
		t.Errorf("expected no store call, got %d", store.calls)
	}
}

func TestIngestText_RejectsPlaceholderAndEmptyText(t *testing.T) {
	ing := NewIngestor(&stubEmbedder{}, &stubChunkWriter{}, 3, 0)

	var vErr *ValidationError
	if _, err := ing.IngestText(context.Background(), models.PlaceholderKnowledgeBaseID, "x", "text"); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError for placeholder id, got %v", err)
	}
	if _, err := ing.IngestText(context.Background(), "kb", "x", "   "); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError for empty text, got %v", err)
	}
}

func TestIngestFile_UsesBaseNameAsSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dt1000.txt")
	if err := os.WriteFile(path, []byte("Dump Truck DT1000\n\n100-ton capacity"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := &stubChunkWriter{}
	ing := NewIngestor(&stubEmbedder{}, store, DefaultChunkWords, DefaultOverlapWords)

	n, err := ing.IngestFile(context.Background(), "kb", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || store.source != "dt1000.txt" {
		t.Errorf("unexpected result n=%d source=%q", n, store.source)
	}
}
