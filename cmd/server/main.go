package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"machinery-assistant/internal/config"
	"machinery-assistant/internal/database"
	"machinery-assistant/internal/handlers"
	"machinery-assistant/internal/middleware"
	"machinery-assistant/internal/repository"
	"machinery-assistant/internal/router"
	"machinery-assistant/internal/services"
	"machinery-assistant/internal/websocket"
)

const credentialProbeTimeout = 5 * time.Second

func main() {
	log.Println("🚀 Starting Heavy Machinery Assistant...")
	ctx := context.Background()

	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("✗ Configuration invalid: %v", err)
	}
	log.Printf("✓ Environment variables loaded (generation=%s, retrieval=%s, mode=%s)",
		cfg.GenerationProvider, cfg.RetrievalProvider, cfg.Mode)

	// ──── Step 2: Initialize Model Clients ────
	var (
		textBackend services.TextGenerator
		bedrock     *services.BedrockService
		gemini      *services.GeminiService
	)
	if cfg.GenerationProvider == config.ProviderBedrock || cfg.RetrievalProvider == config.ProviderBedrock {
		bedrock, err = services.NewBedrockService(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("✗ Bedrock client initialization failed: %v", err)
		}
		log.Printf("✓ Bedrock clients initialized (%s)", cfg.AWSRegion)
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err = services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.GeminiConcurrentReqs)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer gemini.Close()
		log.Println("✓ Gemini client initialized")
	}
	if cfg.GenerationProvider == config.ProviderGemini {
		textBackend = gemini
	} else {
		textBackend = bedrock
	}

	// Probe every backend a turn can reach: Bedrock for Bedrock generation or
	// retrieval, Gemini for Gemini generation or pgvector query embeddings.
	var probers []services.IdentityProber
	if bedrock != nil {
		probers = append(probers, bedrock)
	}
	if cfg.GenerationProvider == config.ProviderGemini || cfg.RetrievalProvider == config.ProviderPGVector {
		probers = append(probers, gemini)
	}

	// ──── Step 3: Initialize PostgreSQL Connection Pool (optional) ────
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")
	}

	// ──── Step 4: Initialize Redis Client (optional) ────
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClient.Close()
		log.Println("✓ Redis connected")
	} else {
		log.Println("✓ Redis not configured, status events stay in-process")
	}

	// ──── Step 5: Probe Credentials ────
	statuses := make([]services.CredentialStatus, 0, len(probers))
	for _, p := range probers {
		statuses = append(statuses, services.ProbeCredentials(ctx, p, credentialProbeTimeout))
	}
	credentials := services.CombineCredentials(statuses...)
	if credentials.Available {
		log.Printf("✓ %s", credentials.Detail)
	} else {
		log.Printf("✗ %s (serving offline replies)", credentials.Detail)
	}

	// ──── Initialize Services ────
	var searcher services.PassageSearcher = bedrock
	if cfg.RetrievalProvider == config.ProviderPGVector {
		searcher = services.NewVectorSearch(gemini, repository.NewPassageRepo(pool))
	}

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.SessionTokenTTL)
	wsHub := websocket.NewHub(redisClient, jwtAuth, cfg.FrontendURL)

	orchestrator := services.NewChatOrchestrator(
		services.NewPromptClassifier(textBackend),
		services.NewKnowledgeRetriever(searcher, cfg.TopK),
		services.NewResponseGenerator(textBackend, cfg.MaxOutputTokens),
		wsHub,
		credentials,
		services.OrchestratorOptions{
			TopK:            cfg.TopK,
			MaxContextChars: cfg.MaxContextChars,
			TurnTimeout:     cfg.TurnTimeout,
		},
	)
	transcripts := services.NewTranscriptStore(cfg.TranscriptMaxTurns)

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(jwtAuth, cfg.DefaultSettings(), cfg.ModelOptions)
	chatHandler := handlers.NewChatHandler(orchestrator, transcripts)
	statusHandler := handlers.NewStatusHandler(orchestrator, cfg.GenerationProvider, cfg.RetrievalProvider, cfg.Mode, cfg.ModelOptions)
	chatLimiter := middleware.NewRateLimiter(cfg.ChatRequestsPerSecond, cfg.ChatBurst)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		chatLimiter,
		sessionHandler,
		chatHandler,
		statusHandler,
		wsHub.HandleWebSocket,
		cfg.FrontendURL,
		cfg.TrustProxyHeaders,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.TurnTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("✓ Heavy Machinery Assistant ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
