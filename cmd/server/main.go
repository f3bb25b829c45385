package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-order-service/config"
	"sales-order-service/internal/api"
	"sales-order-service/internal/broker"
	"sales-order-service/internal/mailer"
	"sales-order-service/internal/redisclient"
	"sales-order-service/internal/service"
	"sales-order-service/internal/store"
	"sales-order-service/internal/util"
	"sales-order-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, util.ServiceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting sales order service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	if cfg.Database.Migrate {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrated")
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))

	eventPublisher := broker.NewEventPublisher(producer)
	background := service.Detached(5 * time.Second)

	orderService := service.NewOrderService(db, db, eventPublisher, redisClient, background, cfg.Redis.IdempotencyTTL)
	notificationService := service.NewNotificationService(db)
	teamService := service.NewTeamService(db, eventPublisher, background)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	broadcastConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup+worker.BroadcastGroupSuffix)
	broadcastWorker := worker.NewBroadcastWorker(broadcastConsumer, redisClient, cfg.Redis.Channel)
	go func() {
		if err := broadcastWorker.Start(workerCtx); err != nil {
			logger.Error("Broadcast worker error", zap.Error(err))
		}
	}()

	mailConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup+worker.MailGroupSuffix)
	mailWorker := worker.NewMailWorker(mailConsumer, db, mailer.New(cfg.Mail))
	go func() {
		if err := mailWorker.Start(workerCtx); err != nil {
			logger.Error("Mail worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, notificationService, teamService, api.Options{
		JWTSecret:         cfg.Auth.JWTSecret,
		UploadDir:         cfg.Server.UploadDir,
		BulkRatePerSecond: cfg.Limits.BulkRatePerSecond,
		BulkBurst:         cfg.Limits.BulkBurst,
		Checks: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	broadcastWorker.Stop()
	mailWorker.Stop()

	logger.Info("Server exited")
}
