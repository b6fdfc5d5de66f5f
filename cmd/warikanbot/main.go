package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/susu3304/warikanbot/internal/api"
	"github.com/susu3304/warikanbot/internal/bot"
	"github.com/susu3304/warikanbot/internal/config"
	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/logger"
	"github.com/susu3304/warikanbot/internal/settlement"
	"github.com/susu3304/warikanbot/internal/warikan"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	database, err := db.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.L.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(context.Background()); err != nil {
		logger.L.Fatal("failed to run migrations", zap.Error(err))
	}

	engine := settlement.NewEngine(settlement.WithTolerance(cfg.ChecksumTolerance))
	svc := warikan.NewService(database, engine, cfg.CurrencySymbol)

	// Initialize Discord bot
	discordBot, err := bot.New(cfg.DiscordToken, cfg.WebUIBaseURL, svc, database)
	if err != nil {
		logger.L.Fatal("failed to create discord bot", zap.Error(err))
	}

	// Initialize API server
	apiServer := api.New(cfg, svc, database)

	// Start Discord bot
	if err := discordBot.Start(); err != nil {
		logger.L.Fatal("failed to start discord bot", zap.Error(err))
	}
	defer discordBot.Stop()

	// Start API server
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.L.Error("api server stopped", zap.Error(err))
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.L.Info("shutting down")
}
