// Command ingest loads equipment spec sheets into the self-hosted pgvector
// knowledge base.
//
//	ingest -kb heavy-machinery ./documents
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"machinery-assistant/internal/config"
	"machinery-assistant/internal/database"
	"machinery-assistant/internal/models"
	"machinery-assistant/internal/repository"
	"machinery-assistant/internal/services"
)

func main() {
	cfg, err := config.LoadIngest()
	if err != nil {
		log.Fatalf("✗ %v", err)
	}

	kb := flag.String("kb", cfg.KnowledgeBaseID, "knowledge base id to ingest into")
	chunkWords := flag.Int("chunk-words", cfg.ChunkWords, "words per chunk")
	overlapWords := flag.Int("overlap-words", cfg.OverlapWords, "words shared by consecutive chunks")
	migrateOnly := flag.Bool("migrate-only", false, "provision the schema and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Vector store schema ready")
	if *migrateOnly {
		return
	}

	if models.ResolveMode(*kb) != models.ModeKnowledgeBase {
		log.Fatalf("✗ -kb must name a real knowledge base id")
	}

	files, err := collectDocuments(flag.Args())
	if err != nil {
		log.Fatalf("✗ %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("✗ no .pdf, .txt or .md documents given")
	}

	gemini, err := services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer gemini.Close()

	repo := repository.NewPassageRepo(pool)
	ingestor := services.NewIngestor(gemini, repo, *chunkWords, *overlapWords)

	failed := 0
	for _, path := range files {
		n, err := ingestor.IngestFile(ctx, *kb, path)
		if err != nil {
			failed++
			log.Printf("✗ %s: %v", path, err)
			continue
		}
		log.Printf("✓ %s: %d chunks", path, n)
	}

	total, err := repo.Count(ctx, *kb)
	if err != nil {
		log.Fatalf("✗ count rows: %v", err)
	}
	log.Printf("Knowledge base %s now holds %d chunks", *kb, total)

	if failed > 0 {
		os.Exit(1)
	}
}

// collectDocuments expands directories (one level) into supported files.
func collectDocuments(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !services.SupportedDocument(arg) {
				return nil, fmt.Errorf("unsupported document %s", arg)
			}
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			path := filepath.Join(arg, e.Name())
			if !e.IsDir() && services.SupportedDocument(path) {
				files = append(files, path)
			}
		}
	}
	return files, nil
}
