package main

import (
	"log"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"betting-service/internal/catalog"
	"betting-service/internal/config"
	"betting-service/internal/database"
	"betting-service/internal/events"
	"betting-service/internal/logger"
	"betting-service/internal/services"
	"betting-service/internal/worker"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	zlog, err := logger.New(cfg.ServiceName+"-worker", cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Connect DB
	db, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("database connect", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicBetPlaced, cfg.TopicBetSettled)
		defer func() { _ = kafkaPublisher.Close() }()
		publisher = kafkaPublisher
	}

	settlement := services.NewSettlementService(db, catalog.New(db), publisher, zlog)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	zlog.Info("Starting Asynq Worker...", zap.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.StartWorker(redisOpt, cfg.WorkerConcurrency, worker.NewWorker(settlement, zlog)); err != nil {
		zlog.Fatal("worker stopped", zap.Error(err))
	}
}
