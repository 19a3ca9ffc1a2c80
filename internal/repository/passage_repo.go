package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"machinery-assistant/internal/models"
)

// Metadata keys written by the ingestion tool.
const (
	MetaKnowledgeBaseID = "knowledge_base_id"
	MetaSource          = "source"
	MetaChunkIndex      = "chunk_index"
)

// PassageRepo reads and writes the self-hosted knowledge base table.
type PassageRepo struct {
	pool *pgxpool.Pool
}

func NewPassageRepo(pool *pgxpool.Pool) *PassageRepo {
	return &PassageRepo{pool: pool}
}

// Search returns the topK rows of a knowledge base nearest to embedding by
// cosine distance, closest first. Score is cosine similarity.
func (r *PassageRepo) Search(ctx context.Context, knowledgeBaseID string, embedding []float32, topK int) ([]models.RetrievedPassage, error) {
	query := `SELECT chunks, metadata, 1 - (embedding <=> $1) AS score
		FROM bedrock_integration.bedrock_kb
		WHERE metadata->>'knowledge_base_id' = $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), knowledgeBaseID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	passages := []models.RetrievedPassage{}
	for rows.Next() {
		var (
			p       models.RetrievedPassage
			rawMeta []byte
		)
		if err := rows.Scan(&p.Text, &rawMeta, &p.Score); err != nil {
			return nil, err
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &p.Metadata); err != nil {
				return nil, fmt.Errorf("decode passage metadata: %w", err)
			}
		}
		if src, ok := p.Metadata[MetaSource].(string); ok {
			p.SourceURI = src
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

// ReplaceSource deletes every row previously ingested from source into the
// knowledge base and inserts chunks in its place, in one transaction.
func (r *PassageRepo) ReplaceSource(ctx context.Context, knowledgeBaseID, source string, chunks []models.KnowledgeChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"DELETE FROM bedrock_integration.bedrock_kb WHERE metadata->>'knowledge_base_id' = $1 AND metadata->>'source' = $2",
		knowledgeBaseID, source,
	)
	if err != nil {
		return fmt.Errorf("failed to delete old chunks for %s: %w", source, err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta := map[string]any{}
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta[MetaKnowledgeBaseID] = knowledgeBaseID
		meta[MetaSource] = source

		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		batch.Queue(
			"INSERT INTO bedrock_integration.bedrock_kb (id, embedding, chunks, metadata) VALUES ($1, $2, $3, $4)",
			uuid.New(), pgvector.NewVector(c.Embedding), c.Text, string(metaBytes),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks for %s: %w", source, err)
	}

	return tx.Commit(ctx)
}

// Count returns the number of rows stored for a knowledge base.
func (r *PassageRepo) Count(ctx context.Context, knowledgeBaseID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM bedrock_integration.bedrock_kb WHERE metadata->>'knowledge_base_id' = $1",
		knowledgeBaseID,
	).Scan(&n)
	return n, err
}
