package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"machinery-assistant/internal/models"
)

type stubTextGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	reqs  []models.GenerationRequest
}

func (s *stubTextGenerator) GenerateText(ctx context.Context, req models.GenerationRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.reqs = append(s.reqs, req)
	return s.reply, s.err
}

func TestClassify_Labels(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"in-domain", "Category E", true},
		{"lowercase", "category e", true},
		{"surrounding whitespace", "  CATEGORY E \n", true},
		{"architecture", "Category A", false},
		{"disallowed", "Category B", false},
		{"off-topic", "Category C", false},
		{"instruction probe", "Category D", false},
		{"trailing punctuation", "Category E.", false},
		{"explanation", "Category E because it is about excavators", false},
		{"empty reply", "", false},
		{"garbage", "I cannot help with that", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &stubTextGenerator{reply: tc.reply}
			c := NewPromptClassifier(backend)

			got, err := c.Classify(context.Background(), "What is the bucket capacity of the X950?", "model-a")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.reply, got, tc.want)
			}
		})
	}
}

func TestCategorize_MalformedReplyIsUnknown(t *testing.T) {
	c := NewPromptClassifier(&stubTextGenerator{reply: "Category Z"})

	got, err := c.Categorize(context.Background(), "hello", "model-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.CategoryUnknown {
		t.Errorf("expected %q, got %q", models.CategoryUnknown, got)
	}
}

func TestClassify_DecodingSettings(t *testing.T) {
	backend := &stubTextGenerator{reply: "Category E"}
	c := NewPromptClassifier(backend)

	if _, err := c.Classify(context.Background(), "How often should I grease the BD850 blade pivots?", "model-b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if backend.calls != 1 {
		t.Fatalf("expected exactly one remote call, got %d", backend.calls)
	}
	req := backend.reqs[0]
	if req.ModelID != "model-b" {
		t.Errorf("expected model-b, got %q", req.ModelID)
	}
	if req.Temperature != 0 {
		t.Errorf("expected temperature 0, got %g", req.Temperature)
	}
	if req.TopP != 0.1 {
		t.Errorf("expected top-p 0.1, got %g", req.TopP)
	}
	if req.MaxOutputTokens != 10 {
		t.Errorf("expected 10 output tokens, got %d", req.MaxOutputTokens)
	}
	if !strings.Contains(req.Prompt, "<user_request>\nHow often should I grease the BD850 blade pivots?\n</user_request>") {
		t.Errorf("prompt does not wrap the utterance:\n%s", req.Prompt)
	}
	for _, label := range []string{"Category A", "Category B", "Category C", "Category D", "Category E"} {
		if !strings.Contains(req.Prompt, label) {
			t.Errorf("prompt is missing %s", label)
		}
	}
}

func TestClassify_EmptyUtterance(t *testing.T) {
	for _, utterance := range []string{"", "   ", "\n\t"} {
		backend := &stubTextGenerator{reply: "Category E"}
		c := NewPromptClassifier(backend)

		_, err := c.Classify(context.Background(), utterance, "model-a")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError for %q, got %v", utterance, err)
		}
		if backend.calls != 0 {
			t.Errorf("expected no remote call for %q, got %d", utterance, backend.calls)
		}
	}
}

func TestClassify_BackendErrorNotRetried(t *testing.T) {
	remote := newRemoteError("classification", CodeAccessDenied, "denied", nil)
	backend := &stubTextGenerator{err: remote}
	c := NewPromptClassifier(backend)

	ok, err := c.Classify(context.Background(), "excavator hydraulics", "model-a")
	if !errors.Is(err, remote) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if ok {
		t.Error("expected false on error")
	}
	if backend.calls != 1 {
		t.Errorf("expected a single attempt, got %d", backend.calls)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	backend := &stubTextGenerator{reply: "Category E"}
	c := NewPromptClassifier(backend)

	for i := 0; i < 3; i++ {
		if _, err := c.Classify(context.Background(), "forklift mast height", "model-a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for i := 1; i < len(backend.reqs); i++ {
		if backend.reqs[i] != backend.reqs[0] {
			t.Fatalf("request %d differs from the first: %+v vs %+v", i, backend.reqs[i], backend.reqs[0])
		}
	}
}
