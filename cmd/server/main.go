package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/researchify/pkg/chat"
	"github.com/mikeboe/researchify/pkg/clients"
	"github.com/mikeboe/researchify/pkg/config"
	"github.com/mikeboe/researchify/pkg/database"
	"github.com/mikeboe/researchify/pkg/research"
	"github.com/mikeboe/researchify/pkg/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	var (
		db        *database.PostgresDB
		jobs      server.JobStore = server.NewMemoryJobStore()
		chatStore chat.Store      = chat.NewMemoryStore()
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			slog.Error("Failed to initialize schema", "error", err)
			os.Exit(1)
		}
		jobs = server.NewPostgresJobStore(db)
		chatStore = chat.NewPostgresStore(db)
	} else {
		slog.Warn("DATABASE_URL not set, jobs and conversations are kept in memory")
	}

	sessions, err := server.NewRegistry(ctx, cfg, db)
	if err != nil {
		slog.Error("Failed to set up document sessions", "error", err)
		os.Exit(1)
	}

	llm, model, err := clients.ReportModel(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init report model", "error", err)
		os.Exit(1)
	}
	newEngine := func(l *slog.Logger) *research.ResearchEngine {
		engine := research.NewEngine(cfg, llm, model)
		engine.Logger = l
		return engine
	}

	var chatSvc *chat.Service
	if cfg.GoogleApiKey != "" {
		chatSvc, err = chat.NewService(ctx, chatStore, cfg)
		if err != nil {
			slog.Error("Failed to init chat service", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("GOOGLE_API_KEY not set, chat is disabled")
	}

	svc := server.NewService(jobs, sessions, newEngine)
	svc.Logger = logger
	handler := server.NewHandler(svc, chatSvc)

	r := gin.Default()
	r.MaxMultipartMemory = 64 << 20

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	slog.Info("Server starting", "port", cfg.Port, "provider", cfg.LLMProvider, "model", model, "vector_backend", cfg.VectorBackend)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
