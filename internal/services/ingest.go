package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"machinery-assistant/internal/models"
)

// Fixed-size chunking, matching the managed knowledge base's default of 300
// tokens with 20% overlap. Words stand in for tokens.
const (
	DefaultChunkWords   = 300
	DefaultOverlapWords = 60

	embedConcurrency = 4
)

// ChunkText splits text into windows of size words, each starting
// size-overlap words after the previous one.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkWords
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(words); start += size - overlap {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// ChunkWriter stores the chunks of one source document.
type ChunkWriter interface {
	ReplaceSource(ctx context.Context, knowledgeBaseID, source string, chunks []models.KnowledgeChunk) error
}

// Ingestor loads spec sheets into the self-hosted knowledge base.
type Ingestor struct {
	embedder Embedder
	store    ChunkWriter
	size     int
	overlap  int
}

func NewIngestor(embedder Embedder, store ChunkWriter, size, overlap int) *Ingestor {
	return &Ingestor{embedder: embedder, store: store, size: size, overlap: overlap}
}

// IngestFile extracts, chunks and embeds one document and replaces whatever
// was stored for it before. It returns the number of chunks written.
func (i *Ingestor) IngestFile(ctx context.Context, knowledgeBaseID, path string) (int, error) {
	text, err := ExtractText(path)
	if err != nil {
		return 0, err
	}
	return i.IngestText(ctx, knowledgeBaseID, filepath.Base(path), text)
}

func (i *Ingestor) IngestText(ctx context.Context, knowledgeBaseID, source, text string) (int, error) {
	if models.ResolveMode(knowledgeBaseID) != models.ModeKnowledgeBase {
		return 0, &ValidationError{Fields: map[string]string{"knowledge_base_id": "must be a real knowledge base id"}}
	}

	pieces := ChunkText(text, i.size, i.overlap)
	if len(pieces) == 0 {
		return 0, &ValidationError{Fields: map[string]string{"text": "must not be empty"}}
	}

	chunks := make([]models.KnowledgeChunk, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for idx, piece := range pieces {
		g.Go(func() error {
			embedding, err := i.embedder.Embed(gctx, piece)
			if err != nil {
				return fmt.Errorf("embed chunk %d of %s: %w", idx, source, err)
			}
			chunks[idx] = models.KnowledgeChunk{
				Text:      piece,
				Embedding: embedding,
				Metadata:  map[string]any{"chunk_index": idx},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := i.store.ReplaceSource(ctx, knowledgeBaseID, source, chunks); err != nil {
		return 0, fmt.Errorf("store chunks of %s: %w", source, err)
	}
	return len(chunks), nil
}
