package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"betting-service/internal/catalog"
	"betting-service/internal/config"
	"betting-service/internal/database"
	"betting-service/internal/events"
	grpcServer "betting-service/internal/grpc"
	"betting-service/internal/handlers"
	"betting-service/internal/ledger"
	"betting-service/internal/logger"
	"betting-service/internal/metrics"
	"betting-service/internal/scheduler"
	"betting-service/internal/services"
	"betting-service/internal/worker"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	zlog, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Initialize Database
	db, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("database connect", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("database migrate", zap.Error(err))
	}

	// Events
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicBetPlaced, cfg.TopicBetSettled)
		defer func() { _ = kafkaPublisher.Close() }()
		publisher = kafkaPublisher
	} else {
		zlog.Warn("KAFKA_BROKERS not set, bet events are not published")
	}

	// Init Services
	store := ledger.NewStore(db)
	cat := catalog.New(db)
	betService := services.NewBetService(db, store, cat, catalog.NewLimits(db), publisher, zlog)
	settlementService := services.NewSettlementService(db, cat, publisher, zlog)
	walletService := services.NewWalletService(db, store, zlog)

	// Redis
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = rdb.Close() }()

	var dispatcher scheduler.Dispatcher = scheduler.InlineDispatcher{Settlement: settlementService}
	if !cfg.SweepInline {
		asynqClient := asynq.NewClient(redisOpt)
		defer func() { _ = asynqClient.Close() }()
		dispatcher = worker.NewDispatcher(asynqClient, cfg.DispatchWindow)
	}

	sweeper := scheduler.NewSweeper(cat, dispatcher, scheduler.NewRedisLock(rdb), zlog)
	sweeper.Spec = cfg.SweepSpec
	sweeper.LockTTL = cfg.SweepLockTTL
	sweepCron, err := sweeper.Start()
	if err != nil {
		zlog.Fatal("settlement scheduler", zap.Error(err))
	}

	// Initialize Gin
	r := gin.Default()
	handlers.New(betService, settlementService, walletService, zlog).Register(r)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start gRPC server
	gs := grpcServer.NewGRPCServer(&grpcServer.Server{Bets: betService, Settlement: settlementService, Log: zlog})
	go func() {
		if err := grpcServer.StartGRPCServer(cfg.GRPCPort, gs, zlog); err != nil {
			zlog.Fatal("gRPC server", zap.Error(err))
		}
	}()

	metricsServer := metrics.StartMetricsServer(cfg.MetricsPort, database.Ping(db))

	go func() {
		zlog.Info("HTTP server starting", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	zlog.Info("shutting down")

	<-sweepCron.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP shutdown", zap.Error(err))
	}
	gs.GracefulStop()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("metrics shutdown", zap.Error(err))
	}
}
