package services

import (
	"context"

	"machinery-assistant/internal/models"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PassageStore is the nearest-neighbour lookup over stored chunks.
type PassageStore interface {
	Search(ctx context.Context, knowledgeBaseID string, embedding []float32, topK int) ([]models.RetrievedPassage, error)
}

// VectorSearch is the self-hosted PassageSearcher: it embeds the query and
// asks the pgvector table for the closest chunks.
type VectorSearch struct {
	embedder Embedder
	store    PassageStore
}

func NewVectorSearch(embedder Embedder, store PassageStore) *VectorSearch {
	return &VectorSearch{embedder: embedder, store: store}
}

func (v *VectorSearch) SearchPassages(ctx context.Context, knowledgeBaseID, query string, topK int) ([]models.RetrievedPassage, error) {
	embedding, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	passages, err := v.store.Search(ctx, knowledgeBaseID, embedding, topK)
	if err != nil {
		return nil, newRemoteError("retrieval", CodeRemote, "vector store query failed", err)
	}
	return passages, nil
}
