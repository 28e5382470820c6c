package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fekuna/omnipos-inventory-ledger/config"
	adjH "github.com/fekuna/omnipos-inventory-ledger/internal/adjustment/handler"
	adjUCPkg "github.com/fekuna/omnipos-inventory-ledger/internal/adjustment/usecase"
	"github.com/fekuna/omnipos-inventory-ledger/internal/auth"
	calRepoPkg "github.com/fekuna/omnipos-inventory-ledger/internal/calendar/repository"
	invH "github.com/fekuna/omnipos-inventory-ledger/internal/inventory/handler"
	invUCPkg "github.com/fekuna/omnipos-inventory-ledger/internal/inventory/usecase"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	ledgerRepoPkg "github.com/fekuna/omnipos-inventory-ledger/internal/ledger/repository"
	"github.com/fekuna/omnipos-inventory-ledger/internal/notification"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
	poH "github.com/fekuna/omnipos-inventory-ledger/internal/posync/handler"
	poListenerPkg "github.com/fekuna/omnipos-inventory-ledger/internal/posync/listener"
	poUCPkg "github.com/fekuna/omnipos-inventory-ledger/internal/posync/usecase"
	"github.com/fekuna/omnipos-inventory-ledger/internal/threshold"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/broker"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/cache"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/database/postgres"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, purchase order listener and threshold sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	// 1. Logger
	appLogger := newLogger(cfg)
	defer appLogger.Sync()

	// 2. Database
	db, err := postgres.NewPostgres(postgresConfig(cfg))
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	ledgerRepo := ledgerRepoPkg.NewPGRepository(db)
	calendarRepo := calRepoPkg.NewPGRepository(db)

	// 3. Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 4. Kafka
	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.PurchaseOrderTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()

	kafkaProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.NotificationTopic,
	})
	defer kafkaProducer.Close()
	appLogger.Info("Kafka configured",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("purchase_order_topic", cfg.Kafka.PurchaseOrderTopic),
		zap.String("notification_topic", cfg.Kafka.NotificationTopic),
	)

	// 5. Outbound side effects
	queue := outbound.NewQueue(outbound.Config{
		Workers:     cfg.Outbound.Workers,
		QueueSize:   cfg.Outbound.QueueSize,
		MaxAttempts: cfg.Outbound.MaxAttempts,
		TaskTimeout: cfg.Outbound.TaskTimeout,
	}, appLogger)
	queue.Start()
	defer queue.Close()

	notifier := notification.NewKafkaDispatcher(kafkaProducer)
	evaluator := threshold.NewEvaluator(
		ledgerRepo,
		threshold.NewRedisAlertState(redisClient.Client, cfg.Threshold.AlertTTL),
		notifier,
		appLogger,
	)
	effects := outbound.NewEffects(queue, evaluator, notifier, calendarRepo)

	// 6. UseCases
	writer := ledger.NewWriter(ledgerRepo, ledger.Config{
		MaxRetries:           cfg.Ledger.MaxWriteRetries,
		EnforceNegativeFloor: cfg.Ledger.EnforceNegativeFloor,
		NegativeFloor:        cfg.Ledger.NegativeStockFloor,
	}, appLogger)

	invUC := invUCPkg.NewInventoryUseCase(ledgerRepo, writer, appLogger)
	adjUC := adjUCPkg.NewAdjustmentUseCase(writer, effects, appLogger)
	poUC := poUCPkg.NewPOSyncUseCase(writer, redisClient, effects, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Listener and sweeper
	poListener := poListenerPkg.NewPurchaseOrderListener(kafkaConsumer, poUC, appLogger)
	go poListener.Start(ctx)

	scheduler := cron.New()
	sweeper := threshold.NewSweeper(ledgerRepo, effects, cfg.Threshold.StaleAfter, cfg.Threshold.SweepBatchSize, appLogger)
	if _, err := sweeper.Schedule(scheduler, cfg.Threshold.SweepSchedule); err != nil {
		appLogger.Fatal("Invalid threshold sweep schedule", zap.String("schedule", cfg.Threshold.SweepSchedule), zap.Error(err))
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// 8. HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api/v1", auth.Middleware())
	invH.NewInventoryHandler(invUC, appLogger).Register(api)
	adjH.NewAdjustmentHandler(adjUC, appLogger).Register(api)
	poH.NewPOSyncHandler(poUC, appLogger).Register(api)

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", cfg.Server.HTTPPort))
		if err := e.Start(listenAddr(cfg.Server.HTTPPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve http", zap.Error(err))
		}
	}()

	// 9. gRPC health server
	lis, err := net.Listen("tcp", listenAddr(cfg.Server.GRPCPort))
	if err != nil {
		appLogger.Fatal("failed to listen", zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		appLogger.Info("Starting gRPC health server", zap.String("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve grpc", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
	return nil
}

func listenAddr(port string) string {
	if !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}
