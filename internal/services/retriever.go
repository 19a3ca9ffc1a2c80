package services

import (
	"context"
	"strings"

	"machinery-assistant/internal/metrics"
	"machinery-assistant/internal/models"
)

const defaultTopK = 3

// PassageSearcher is a remote semantic-search endpoint.
type PassageSearcher interface {
	SearchPassages(ctx context.Context, knowledgeBaseID, query string, topK int) ([]models.RetrievedPassage, error)
}

// KnowledgeRetriever issues one similarity query per call and returns the
// hits in the backend's rank order. It does not cache, merge or re-rank.
type KnowledgeRetriever struct {
	backend PassageSearcher
	topK    int
}

func NewKnowledgeRetriever(backend PassageSearcher, topK int) *KnowledgeRetriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &KnowledgeRetriever{backend: backend, topK: topK}
}

// Retrieve queries the knowledge base. topK <= 0 uses the configured default.
// An empty result is not an error.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query, knowledgeBaseID string, topK int) ([]models.RetrievedPassage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Fields: map[string]string{"query": "must not be empty"}}
	}
	if topK <= 0 {
		topK = r.topK
	}

	done := metrics.ObserveRemoteCall("retrieval")
	passages, err := r.backend.SearchPassages(ctx, knowledgeBaseID, query, topK)
	done(err)
	if err != nil {
		return nil, err
	}

	if passages == nil {
		passages = []models.RetrievedPassage{}
	}
	return passages, nil
}
