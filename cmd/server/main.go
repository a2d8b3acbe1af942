package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/deep-researcher/pkg/archive"
	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/database"
	"github.com/mikeboe/deep-researcher/pkg/embeddings"
	"github.com/mikeboe/deep-researcher/pkg/mail"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/scheduler"
	"github.com/mikeboe/deep-researcher/pkg/search"
	"github.com/mikeboe/deep-researcher/pkg/server"
	"github.com/mikeboe/deep-researcher/pkg/splitter"
	"github.com/mikeboe/deep-researcher/pkg/store"
	"github.com/mikeboe/deep-researcher/pkg/vectorstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Setup structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	// Store: Postgres when configured, in-memory otherwise
	var runStore store.RunStore = store.NewMemoryStore()
	var db *database.PostgresDB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		runStore = store.NewPostgresStore(db)
	} else {
		slog.Warn("DATABASE_URL not set, runs are kept in memory")
	}

	// Model client
	llm, err := clients.NewOllamaClient(cfg.OllamaBaseURL, cfg.LocalLLM)
	if err != nil {
		log.Fatalf("Failed to create ollama client: %v", err)
	}

	// Search provider, with Redis cache when configured
	provider, err := search.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create search provider: %v", err)
	}

	svc := server.NewService(runStore, cfg, llm, provider)

	// Mail delivery
	if cfg.MailEnabled() {
		base := mail.NewSMTPMailer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailRecipient)
		svc.NewMailer = func(recipient string) research.Mailer {
			if recipient == "" {
				return base
			}
			return base.WithRecipient(recipient)
		}
	} else {
		slog.Info("Mail delivery not configured, reports will not be emailed")
	}

	// Source archive, requires Postgres
	if db != nil {
		arch, err := buildArchive(ctx, cfg, db)
		if err != nil {
			log.Fatalf("Failed to init source archive: %v", err)
		}
		svc.Archive = arch
	}

	// Scheduler
	sched := scheduler.New(runStore, svc.StartScheduled)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	handler := server.NewHandler(svc, sched)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func buildArchive(ctx context.Context, cfg *config.Config, db *database.PostgresDB) (*archive.Archiver, error) {
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure vector extension: %w", err)
	}
	if err := db.CreateArchiveTable(ctx, cfg.CollectionName, cfg.EmbeddingDim); err != nil {
		return nil, err
	}

	embedClient, err := clients.NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewOllamaEmbedder(embedClient)
	if err != nil {
		return nil, err
	}

	vs, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		return nil, err
	}

	split := splitter.NewRecursiveCharacterTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	return archive.New(embedder, vs, split), nil
}
