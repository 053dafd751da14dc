package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitmex-dashboard-go/internal/bitmex"
	"bitmex-dashboard-go/internal/config"
	"bitmex-dashboard-go/internal/database"
	"bitmex-dashboard-go/internal/logger"
	"bitmex-dashboard-go/internal/server"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Open the account store
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize BitMEX REST client and verify connectivity against the
	// public instrument endpoint.
	restClient := bitmex.NewRestClient(&cfg.Bitmex, log)
	if _, err := restClient.GetActiveInstruments(context.Background()); err != nil {
		log.Fatal("Failed to connect to BitMEX API", zap.Error(err))
	}
	log.Info("Successfully connected to BitMEX API.")

	// Start the dashboard API server
	srv := server.NewServer(log, &cfg, restClient, db)
	srv.Start()

	// Block until a shutdown signal arrives
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error("Failed to stop server cleanly", zap.Error(err))
	}

	log.Info("Dashboard has been shut down.")
}
