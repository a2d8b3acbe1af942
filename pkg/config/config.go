package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Supported search backends.
const (
	SearchAPITavily     = "tavily"
	SearchAPIPerplexity = "perplexity"
	SearchAPIYouTube    = "youtube"
	SearchAPIArxiv      = "arxiv"
)

// Config holds all runtime configuration. It is loaded once at process
// start and never mutated afterwards; stages receive it by reference.
type Config struct {
	// Model
	LocalLLM       string
	OllamaBaseURL  string
	EmbeddingModel string
	EmbeddingDim   int

	// Search
	SearchAPI        string
	SearchMaxResults int
	TavilyAPIKey     string
	PerplexityAPIKey string
	YouTubeAPIKey    string

	// Loop
	MaxLoops int

	// Mail
	EmailRecipient string
	SMTPUsername   string
	SMTPPassword   string
	SMTPServer     string
	SMTPPort       int

	// Server
	Port string

	// Storage (optional)
	DatabaseURL    string
	RedisURL       string
	SearchCacheTTL time.Duration
	CollectionName string
	ChunkSize      int
	ChunkOverlap   int

	// Per-call timeouts for external collaborators
	LLMTimeout    time.Duration
	SearchTimeout time.Duration
	MailTimeout   time.Duration
}

func Load() *Config {
	return &Config{
		LocalLLM:       getEnv("LOCAL_LLM", "llama3.2"),
		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:   getEnvAsInt("EMBEDDING_DIMENSION", 768),

		SearchAPI:        getEnv("SEARCH_API", SearchAPITavily),
		SearchMaxResults: getEnvAsInt("SEARCH_MAX_RESULTS", 3),
		TavilyAPIKey:     getEnv("TAVILY_API_KEY", ""),
		PerplexityAPIKey: getEnv("PERPLEXITY_API_KEY", ""),
		YouTubeAPIKey:    getEnv("YOUTUBE_API_KEY", ""),

		MaxLoops: getEnvAsInt("MAX_WEB_RESEARCH_LOOPS", 3),

		EmailRecipient: getEnv("EMAIL_RECIPIENT", ""),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPServer:     getEnv("SMTP_SERVER", "smtp.gmail.com"),
		SMTPPort:       getEnvAsInt("SMTP_PORT", 587),

		Port: getEnv("PORT", "2024"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		SearchCacheTTL: time.Duration(getEnvAsInt("SEARCH_CACHE_TTL_SECONDS", 900)) * time.Second,
		CollectionName: getEnv("COLLECTION_NAME", "research_sources"),
		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 200),

		LLMTimeout:    time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		SearchTimeout: time.Duration(getEnvAsInt("SEARCH_TIMEOUT_SECONDS", 30)) * time.Second,
		MailTimeout:   time.Duration(getEnvAsInt("MAIL_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// Validate checks the configuration against the selected providers.
// Errors here are fatal at startup.
func (c *Config) Validate() error {
	if c.MaxLoops <= 0 {
		return fmt.Errorf("MAX_WEB_RESEARCH_LOOPS must be greater than zero, got %d", c.MaxLoops)
	}

	switch c.SearchAPI {
	case SearchAPITavily:
		if c.TavilyAPIKey == "" {
			return fmt.Errorf("SEARCH_API is %q but TAVILY_API_KEY is not set", c.SearchAPI)
		}
	case SearchAPIPerplexity:
		if c.PerplexityAPIKey == "" {
			return fmt.Errorf("SEARCH_API is %q but PERPLEXITY_API_KEY is not set", c.SearchAPI)
		}
	case SearchAPIYouTube:
		if c.YouTubeAPIKey == "" {
			return fmt.Errorf("SEARCH_API is %q but YOUTUBE_API_KEY is not set", c.SearchAPI)
		}
	case SearchAPIArxiv:
		// No credentials required.
	default:
		return fmt.Errorf("unsupported SEARCH_API: %q", c.SearchAPI)
	}

	if c.EmailRecipient != "" {
		if c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("EMAIL_RECIPIENT is set but SMTP_USERNAME/SMTP_PASSWORD are incomplete")
		}
		if c.SMTPServer == "" || c.SMTPPort == 0 {
			return fmt.Errorf("EMAIL_RECIPIENT is set but SMTP_SERVER/SMTP_PORT are incomplete")
		}
	}

	return nil
}

// MailEnabled reports whether report delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.EmailRecipient != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
