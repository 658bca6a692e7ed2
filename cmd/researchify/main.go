package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/researchify/pkg/chat"
	"github.com/mikeboe/researchify/pkg/clients"
	"github.com/mikeboe/researchify/pkg/config"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research"
	"github.com/mikeboe/researchify/pkg/server"
)

var (
	topic    string
	files    []string
	useOCR   bool
	provider string
	format   string
	output   string
	verbose  bool
)

func main() {
	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "researchify",
		Short: "Write a research report on a topic",
		Long: `Researchify searches the web, PubMed and Wikipedia (plus any documents you pass with --file)
and asks an LLM to write a markdown report from the results.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		RunE: runReport,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringSliceVarP(&files, "file", "f", nil, "Document to include (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&useOCR, "ocr", false, "Run PDFs through OCR instead of the text layer")

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().StringVar(&provider, "provider", "", "Report model provider (google|groq)")
	rootCmd.Flags().StringVar(&format, "format", "", "Report layout (classic|extended)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to this file instead of stdout")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Chat with the research assistant",
		RunE:  runChat,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if provider != "" {
		cfg.LLMProvider = strings.ToLower(provider)
	}
	if format != "" {
		if !research.ValidFormat(format) {
			return nil, fmt.Errorf("unknown report format: %s", format)
		}
		cfg.ReportFormat = format
	}
	return cfg, cfg.Validate()
}

// loadLibrary indexes the --file documents into a fresh library. It returns
// nil when no files were given. release drops the library's index.
func loadLibrary(ctx context.Context, cfg *config.Config) (lib *localdocs.Library, release func(), err error) {
	release = func() {}
	if len(files) == 0 {
		return nil, release, nil
	}

	registry, err := server.NewRegistry(ctx, cfg, nil)
	if err != nil {
		return nil, release, err
	}
	id, lib, err := registry.Create(ctx)
	if err != nil {
		return nil, release, err
	}
	release = func() {
		if err := registry.Delete(context.Background(), id); err != nil {
			slog.Warn("Failed to drop document index", "error", err)
		}
	}

	uploads := make([]localdocs.Upload, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			release()
			return nil, func() {}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		uploads = append(uploads, localdocs.Upload{Name: filepath.Base(path), Data: data})
	}

	statuses, err := lib.Ingest(ctx, uploads, useOCR)
	if err != nil {
		release()
		return nil, func() {}, err
	}
	for _, st := range statuses {
		if st.Error != "" {
			slog.Warn("Skipped document", "file", st.Name, "error", st.Error)
			continue
		}
		slog.Info("Indexed document", "file", st.Name, "chunks", st.Chunks)
	}
	return lib, release, nil
}

func promptTopic() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter research topic: ")
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return err
	}

	if !cmd.Flags().Changed("topic") {
		if topic, err = promptTopic(); err != nil {
			return err
		}
	}
	if strings.TrimSpace(topic) == "" {
		slog.Error("Topic cannot be empty")
		return research.ErrEmptyTopic
	}

	lib, release, err := loadLibrary(ctx, cfg)
	if err != nil {
		slog.Error("Failed to load documents", "error", err)
		return err
	}
	defer release()

	llm, model, err := clients.ReportModel(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init report model", "error", err)
		return err
	}

	engine := research.NewEngine(cfg, llm, model)
	req := research.Request{Topic: topic}
	if lib != nil {
		req.Library = lib
	}

	slog.Info("Starting research", "topic", topic, "provider", cfg.LLMProvider, "model", model)
	report, err := engine.Run(ctx, req)
	if err != nil {
		if errors.Is(err, research.ErrNoResults) {
			fmt.Fprintln(os.Stderr, research.FailureMessage)
		}
		slog.Error("Research failed", "error", err)
		return err
	}
	for _, w := range report.Warnings {
		slog.Warn(w)
	}

	if output == "" {
		fmt.Println(report.Markdown)
		return nil
	}
	if err := os.WriteFile(output, []byte(report.Markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	slog.Info("Report written", "path", output, "sources", len(report.Sources))
	return nil
}

func runChat(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Load()
	if cfg.GoogleApiKey == "" {
		return errors.New("GOOGLE_API_KEY is not set")
	}

	lib, release, err := loadLibrary(ctx, cfg)
	if err != nil {
		slog.Error("Failed to load documents", "error", err)
		return err
	}
	defer release()

	svc, err := chat.NewService(ctx, chat.NewMemoryStore(), cfg)
	if err != nil {
		return err
	}
	conv, err := svc.CreateConversation(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Ask a question (empty line or Ctrl-D to quit).")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			return nil
		}

		answer, err := svc.Ask(ctx, conv.ID, question, lib)
		if err != nil {
			slog.Error("Chat failed", "error", err)
			continue
		}
		fmt.Println(answer)
	}
}
