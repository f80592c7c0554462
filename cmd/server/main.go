package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/database"
	"github.com/mikeboe/research-bot/pkg/research"
	"github.com/mikeboe/research-bot/pkg/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	cfg := config.Load()
	rcfg := config.LoadResearch()
	ctx := context.Background()

	// Database Connection
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Schema
	if err := db.InitSchema(ctx); err != nil {
		slog.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}

	// Each job gets its own engine logging into the job's audit trail.
	factory := func(logger *slog.Logger) (server.Researcher, error) {
		return research.NewEngineFromConfig(ctx, cfg, rcfg, logger)
	}

	// Initialize Service & Handler
	svc := server.NewService(db.Pool, factory, rcfg)
	svc.ReportDir = cfg.ReportDir
	handler := server.NewHandler(svc)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"}, // Allow all for dev
		AllowMethods:  []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposeHeaders: []string{"Content-Length", "Mcp-Session-Id"},
	}))

	handler.RegisterRoutes(r)

	slog.Info("Server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
