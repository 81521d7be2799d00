package main

import (
	"log"

	"go.uber.org/zap"

	"betting-service/internal/config"
	"betting-service/internal/database"
	"betting-service/internal/logger"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	zlog, err := logger.New(cfg.ServiceName+"-migrate", cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("database connect", zap.Error(err))
	}

	// Run Migrations
	zlog.Info("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
	zlog.Info("Migrations completed successfully!")
}
