package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"machinery-assistant/internal/models"
)

const (
	ProviderBedrock  = "bedrock"
	ProviderGemini   = "gemini"
	ProviderPGVector = "pgvector"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database (pgvector retrieval and ingestion only)
	DatabaseURL   string
	MigrationsDir string

	// Redis (optional; status fan-out across instances)
	RedisURL string

	// Session tokens
	JWTSecret       string
	SessionTokenTTL time.Duration

	// Remote providers
	GenerationProvider string
	RetrievalProvider  string
	AWSRegion          string

	// Gemini AI
	GeminiAPIKey         string
	GeminiConcurrentReqs int
	EmbeddingModel       string

	// Chat defaults
	ModelOptions       []string
	DefaultTemperature float64
	DefaultTopP        float64
	KnowledgeBaseID    string
	Mode               models.Mode
	TopK               int
	MaxOutputTokens    int
	MaxContextChars    int
	TurnTimeout        time.Duration
	TranscriptMaxTurns int

	// Rate limiting for the chat endpoint
	ChatRequestsPerSecond float64
	ChatBurst             int
	// Honour X-Forwarded-For / X-Real-IP; only safe behind a trusted proxy.
	TrustProxyHeaders bool

	// Frontend
	FrontendURL string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	generation := strings.ToLower(getEnvOrDefault("GENERATION_PROVIDER", ProviderBedrock))

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		MigrationsDir:         getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:              getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		SessionTokenTTL:       getEnvAsDurationOrDefault("SESSION_TOKEN_TTL", 24*time.Hour),
		GenerationProvider:    generation,
		RetrievalProvider:     strings.ToLower(getEnvOrDefault("RETRIEVAL_PROVIDER", ProviderBedrock)),
		AWSRegion:             getEnvOrDefault("AWS_REGION", "us-west-2"),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		EmbeddingModel:        getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-004"),
		ModelOptions:          getEnvAsListOrDefault("MODEL_OPTIONS", defaultModelOptions(generation)),
		DefaultTemperature:    getEnvAsFloatOrDefault("DEFAULT_TEMPERATURE", 1.0),
		DefaultTopP:           getEnvAsFloatOrDefault("DEFAULT_TOP_P", 1.0),
		KnowledgeBaseID:       getEnvOrDefault("KNOWLEDGE_BASE_ID", models.PlaceholderKnowledgeBaseID),
		TopK:                  getEnvAsIntOrDefault("RETRIEVAL_TOP_K", 3),
		MaxOutputTokens:       getEnvAsIntOrDefault("MAX_OUTPUT_TOKENS", 500),
		MaxContextChars:       getEnvAsIntOrDefault("MAX_CONTEXT_CHARS", 12000),
		TurnTimeout:           getEnvAsDurationOrDefault("TURN_TIMEOUT", 60*time.Second),
		TranscriptMaxTurns:    getEnvAsIntOrDefault("TRANSCRIPT_MAX_TURNS", 200),
		ChatRequestsPerSecond: getEnvAsFloatOrDefault("CHAT_REQUESTS_PER_SECOND", 1),
		ChatBurst:             getEnvAsIntOrDefault("CHAT_BURST", 5),
		TrustProxyHeaders:     getEnvAsBoolOrDefault("TRUST_PROXY_HEADERS", false),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	// The mode is fixed here; nothing downstream re-derives it from the id.
	cfg.Mode = models.Mode(strings.ToLower(getEnvOrDefault("CHAT_MODE", "")))
	if cfg.Mode == "" {
		cfg.Mode = models.ResolveMode(cfg.KnowledgeBaseID)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	problems := map[string]string{}

	switch c.GenerationProvider {
	case ProviderBedrock, ProviderGemini:
	default:
		problems["GENERATION_PROVIDER"] = fmt.Sprintf("unsupported provider %q", c.GenerationProvider)
	}
	switch c.RetrievalProvider {
	case ProviderBedrock, ProviderPGVector:
	default:
		problems["RETRIEVAL_PROVIDER"] = fmt.Sprintf("unsupported provider %q", c.RetrievalProvider)
	}
	if c.RetrievalProvider == ProviderPGVector && c.DatabaseURL == "" {
		problems["DATABASE_URL"] = "required for the pgvector retrieval provider"
	}
	if (c.GenerationProvider == ProviderGemini || c.RetrievalProvider == ProviderPGVector) && c.GeminiAPIKey == "" {
		problems["GEMINI_API_KEY"] = "required for gemini generation or pgvector embeddings"
	}
	if !c.Mode.Valid() {
		problems["CHAT_MODE"] = fmt.Sprintf("must be %q or %q", models.ModeDemo, models.ModeKnowledgeBase)
	}
	if c.Mode == models.ModeKnowledgeBase && models.ResolveMode(c.KnowledgeBaseID) == models.ModeDemo {
		problems["KNOWLEDGE_BASE_ID"] = "knowledge_base mode needs a real knowledge base id"
	}
	if len(c.ModelOptions) != 2 {
		problems["MODEL_OPTIONS"] = fmt.Sprintf("expected exactly two models, got %d", len(c.ModelOptions))
	}
	if c.DefaultTemperature < 0 || c.DefaultTemperature > 1 {
		problems["DEFAULT_TEMPERATURE"] = "must be within [0,1]"
	}
	if c.DefaultTopP < 0 || c.DefaultTopP > 1 {
		problems["DEFAULT_TOP_P"] = "must be within [0,1]"
	}
	if c.TopK <= 0 {
		problems["RETRIEVAL_TOP_K"] = "must be positive"
	}
	if c.MaxOutputTokens <= 0 {
		problems["MAX_OUTPUT_TOKENS"] = "must be positive"
	}
	if c.MaxContextChars <= 0 {
		problems["MAX_CONTEXT_CHARS"] = "must be positive"
	}
	if c.TurnTimeout <= 0 {
		problems["TURN_TIMEOUT"] = "must be positive"
	}

	if len(problems) == 0 {
		return nil
	}

	keys := make([]string, 0, len(problems))
	for k := range problems {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+problems[k])
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(parts, "; "))
}

// DefaultSettings are the settings a new chat session starts with.
func (c *Config) DefaultSettings() models.SessionSettings {
	return models.SessionSettings{
		ModelID:         c.ModelOptions[0],
		Temperature:     c.DefaultTemperature,
		TopP:            c.DefaultTopP,
		KnowledgeBaseID: c.KnowledgeBaseID,
		Mode:            c.Mode,
	}
}

func defaultModelOptions(provider string) []string {
	if provider == ProviderGemini {
		return []string{"gemini-1.5-flash", "gemini-1.5-pro"}
	}
	return []string{
		"anthropic.claude-3-haiku-20240307-v1:0",
		"anthropic.claude-3-5-sonnet-20240620-v1:0",
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsListOrDefault splits a comma separated value, dropping blanks.
func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IngestConfig is the subset of settings the ingestion tool needs.
type IngestConfig struct {
	DatabaseURL          string
	MigrationsDir        string
	GeminiAPIKey         string
	GeminiConcurrentReqs int
	EmbeddingModel       string
	KnowledgeBaseID      string
	ChunkWords           int
	OverlapWords         int
}

func LoadIngest() (*IngestConfig, error) {
	godotenv.Load()

	cfg := &IngestConfig{
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		MigrationsDir:        getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		EmbeddingModel:       getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-004"),
		KnowledgeBaseID:      getEnvOrDefault("KNOWLEDGE_BASE_ID", ""),
		ChunkWords:           getEnvAsIntOrDefault("CHUNK_WORDS", 300),
		OverlapWords:         getEnvAsIntOrDefault("CHUNK_OVERLAP_WORDS", 60),
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("invalid configuration: missing %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}
