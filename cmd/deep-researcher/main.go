package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/mail"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/search"
)

var (
	topic      string
	maxLoops   int
	email      string
	outputFile string
)

func main() {
	// Setup structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "deep-researcher",
		Short: "A terminal-based iterative research agent",
		Long: `deep-researcher runs an autonomous web research loop on a topic: it
generates a search query, retrieves sources, summarizes them with a
local model, and reflects on what is missing until the summary is
sufficient, then writes a markdown report with references.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("topic") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)

				fmt.Print("Enter research topic: ")
				input, _ := reader.ReadString('\n')
				topic = strings.TrimSpace(input)
			}
			if strings.TrimSpace(topic) == "" {
				slog.Error("Topic cannot be empty")
				os.Exit(1)
			}

			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				slog.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}

			loops := cfg.MaxLoops
			if maxLoops > 0 {
				loops = maxLoops
			}

			ctx := context.Background()

			llm, err := clients.NewOllamaClient(cfg.OllamaBaseURL, cfg.LocalLLM)
			if err != nil {
				slog.Error("Failed to create ollama client", "error", err)
				os.Exit(1)
			}

			provider, err := search.New(ctx, cfg)
			if err != nil {
				slog.Error("Failed to create search provider", "error", err)
				os.Exit(1)
			}

			engine := research.NewEngine(research.Config{
				MaxLoops:      loops,
				LLMTimeout:    cfg.LLMTimeout,
				SearchTimeout: cfg.SearchTimeout,
				MailTimeout:   cfg.MailTimeout,
			}, llm, provider)

			recipient := email
			if recipient == "" {
				recipient = cfg.EmailRecipient
			}
			if recipient != "" {
				if cfg.SMTPServer == "" || cfg.SMTPUsername == "" || cfg.SMTPPassword == "" {
					slog.Error("Recipient set but SMTP is not fully configured")
					os.Exit(1)
				}
				engine.Mailer = mail.NewSMTPMailer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, recipient)
			}

			slog.Info("Starting research", "topic", topic, "max_loops", loops, "search_api", provider.Name())

			report, err := engine.Run(ctx, topic)
			if err != nil {
				slog.Error("Error running research", "error", err)
				os.Exit(1)
			}

			if err := writeArtifacts(report, engine.State); err != nil {
				slog.Error("Failed to write report files", "error", err)
				os.Exit(1)
			}

			fmt.Println(report)
		},
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().IntVarP(&maxLoops, "loops", "l", 0, "Maximum research iterations (overrides MAX_WEB_RESEARCH_LOOPS)")
	rootCmd.Flags().StringVarP(&email, "email", "e", "", "Email the report to this address (overrides EMAIL_RECIPIENT)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Report file path (default report_<timestamp>.md)")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

// writeArtifacts saves the report and the retrieved source list into
// the working directory so runs leave an inspectable trail.
func writeArtifacts(report string, state *research.ResearchState) error {
	name := outputFile
	if name == "" {
		name = fmt.Sprintf("report_%d.md", time.Now().Unix())
	}
	if err := os.WriteFile(name, []byte(report), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	slog.Info("Report written", "file", name)

	sources, err := json.MarshalIndent(state.Sources, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	if err := os.WriteFile("sources.json", sources, 0o644); err != nil {
		return fmt.Errorf("failed to write sources: %w", err)
	}
	slog.Info("Sources written", "file", "sources.json", "count", len(state.Sources))
	return nil
}
