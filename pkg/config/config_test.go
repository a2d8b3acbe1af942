package config

import (
	"strings"
	"testing"
	"time"
)

func clearResearchEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"LOCAL_LLM", "OLLAMA_BASE_URL", "EMBEDDING_MODEL", "EMBEDDING_DIMENSION",
		"SEARCH_API", "SEARCH_MAX_RESULTS", "TAVILY_API_KEY", "PERPLEXITY_API_KEY", "YOUTUBE_API_KEY",
		"MAX_WEB_RESEARCH_LOOPS",
		"EMAIL_RECIPIENT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_SERVER", "SMTP_PORT",
		"PORT", "DATABASE_URL", "REDIS_URL", "SEARCH_CACHE_TTL_SECONDS",
		"COLLECTION_NAME", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"LLM_TIMEOUT_SECONDS", "SEARCH_TIMEOUT_SECONDS", "MAIL_TIMEOUT_SECONDS",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearResearchEnv(t)

	cfg := Load()

	if cfg.LocalLLM != "llama3.2" {
		t.Errorf("LocalLLM = %q, want llama3.2", cfg.LocalLLM)
	}
	if cfg.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("OllamaBaseURL = %q, want local default", cfg.OllamaBaseURL)
	}
	if cfg.SearchAPI != SearchAPITavily {
		t.Errorf("SearchAPI = %q, want tavily", cfg.SearchAPI)
	}
	if cfg.SearchMaxResults != 3 {
		t.Errorf("SearchMaxResults = %d, want 3", cfg.SearchMaxResults)
	}
	if cfg.MaxLoops != 3 {
		t.Errorf("MaxLoops = %d, want 3", cfg.MaxLoops)
	}
	if cfg.SMTPServer != "smtp.gmail.com" || cfg.SMTPPort != 587 {
		t.Errorf("SMTP defaults = %s:%d, want smtp.gmail.com:587", cfg.SMTPServer, cfg.SMTPPort)
	}
	if cfg.Port != "2024" {
		t.Errorf("Port = %q, want 2024", cfg.Port)
	}
	if cfg.SearchCacheTTL != 900*time.Second {
		t.Errorf("SearchCacheTTL = %v, want 15m", cfg.SearchCacheTTL)
	}
	if cfg.CollectionName != "research_sources" {
		t.Errorf("CollectionName = %q, want research_sources", cfg.CollectionName)
	}
	if cfg.EmbeddingModel != "nomic-embed-text" || cfg.EmbeddingDim != 768 {
		t.Errorf("embedding defaults = %s/%d, want nomic-embed-text/768", cfg.EmbeddingModel, cfg.EmbeddingDim)
	}
	if cfg.LLMTimeout != 120*time.Second {
		t.Errorf("LLMTimeout = %v, want 2m", cfg.LLMTimeout)
	}
	if cfg.MailEnabled() {
		t.Error("MailEnabled() = true without EMAIL_RECIPIENT")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearResearchEnv(t)
	t.Setenv("LOCAL_LLM", "qwen3")
	t.Setenv("SEARCH_API", "arxiv")
	t.Setenv("MAX_WEB_RESEARCH_LOOPS", "7")
	t.Setenv("SEARCH_CACHE_TTL_SECONDS", "60")
	t.Setenv("EMAIL_RECIPIENT", "me@example.com")

	cfg := Load()

	if cfg.LocalLLM != "qwen3" {
		t.Errorf("LocalLLM = %q, want override", cfg.LocalLLM)
	}
	if cfg.SearchAPI != SearchAPIArxiv {
		t.Errorf("SearchAPI = %q, want arxiv", cfg.SearchAPI)
	}
	if cfg.MaxLoops != 7 {
		t.Errorf("MaxLoops = %d, want 7", cfg.MaxLoops)
	}
	if cfg.SearchCacheTTL != time.Minute {
		t.Errorf("SearchCacheTTL = %v, want 1m", cfg.SearchCacheTTL)
	}
	if !cfg.MailEnabled() {
		t.Error("MailEnabled() = false with EMAIL_RECIPIENT set")
	}
}

func TestLoadIgnoresUnparsableInt(t *testing.T) {
	clearResearchEnv(t)
	t.Setenv("MAX_WEB_RESEARCH_LOOPS", "many")

	cfg := Load()
	if cfg.MaxLoops != 3 {
		t.Errorf("MaxLoops = %d, want default 3 for unparsable value", cfg.MaxLoops)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			SearchAPI:    SearchAPITavily,
			TavilyAPIKey: "key",
			MaxLoops:     3,
			SMTPServer:   "smtp.gmail.com",
			SMTPPort:     587,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid tavily", func(c *Config) {}, ""},
		{
			"Tavily without key",
			func(c *Config) { c.TavilyAPIKey = "" },
			"TAVILY_API_KEY",
		},
		{
			"Perplexity without key",
			func(c *Config) { c.SearchAPI = SearchAPIPerplexity },
			"PERPLEXITY_API_KEY",
		},
		{
			"YouTube without key",
			func(c *Config) { c.SearchAPI = SearchAPIYouTube },
			"YOUTUBE_API_KEY",
		},
		{
			"Arxiv needs no key",
			func(c *Config) { c.SearchAPI = SearchAPIArxiv; c.TavilyAPIKey = "" },
			"",
		},
		{
			"Unknown provider",
			func(c *Config) { c.SearchAPI = "bing" },
			"unsupported SEARCH_API",
		},
		{
			"Zero loops",
			func(c *Config) { c.MaxLoops = 0 },
			"MAX_WEB_RESEARCH_LOOPS",
		},
		{
			"Negative loops",
			func(c *Config) { c.MaxLoops = -1 },
			"MAX_WEB_RESEARCH_LOOPS",
		},
		{
			"Recipient without credentials",
			func(c *Config) { c.EmailRecipient = "me@example.com" },
			"SMTP_USERNAME/SMTP_PASSWORD",
		},
		{
			"Recipient without server",
			func(c *Config) {
				c.EmailRecipient = "me@example.com"
				c.SMTPUsername = "user"
				c.SMTPPassword = "pass"
				c.SMTPServer = ""
			},
			"SMTP_SERVER/SMTP_PORT",
		},
		{
			"Complete mail config",
			func(c *Config) {
				c.EmailRecipient = "me@example.com"
				c.SMTPUsername = "user"
				c.SMTPPassword = "pass"
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
