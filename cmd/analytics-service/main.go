package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cloess/interaction-analytics/internal/catalog"
	"github.com/cloess/interaction-analytics/internal/config"
	"github.com/cloess/interaction-analytics/internal/geo"
	"github.com/cloess/interaction-analytics/internal/interaction"
	"github.com/cloess/interaction-analytics/internal/query"
	"github.com/cloess/interaction-analytics/internal/rollup"
	"github.com/cloess/interaction-analytics/internal/server"
	"github.com/cloess/interaction-analytics/internal/session"
	"github.com/cloess/interaction-analytics/pkg/kafka"
	"github.com/cloess/interaction-analytics/pkg/logger"
	"github.com/cloess/interaction-analytics/pkg/postgres"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log = logger.WithService(log, "analytics-service")
	log.Info("Starting Analytics Service",
		zap.String("environment", cfg.Environment),
		zap.String("http_port", cfg.HTTPPort),
	)

	db, err := postgres.New(postgres.Config{
		DSN:             cfg.Postgres.PostgresDSN(),
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:          cfg.Kafka.Brokers,
		Topic:            cfg.Kafka.Topic,
		Retries:          cfg.Kafka.ProducerRetries,
		Timeout:          cfg.Kafka.ProducerTimeout,
		RequiredAcks:     cfg.Kafka.RequiredAcks,
		Compression:      cfg.Kafka.CompressionType,
		IdempotentWrites: cfg.Kafka.IdempotentWrites,
		MaxMessageBytes:  cfg.Kafka.MaxMessageBytes,
	}, log)
	if err != nil {
		log.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	locator := geo.NewClient(geo.ClientConfig{
		Timeout: cfg.Analytics.GeoLookupTimeout,
	}, log)

	sessionRepo := session.NewRepository(db.DB, log)
	sessionService := session.NewService(sessionRepo, locator, log,
		session.WithGeoTimeout(cfg.Analytics.GeoLookupTimeout))

	productCatalog := catalog.New(db.DB, log)

	interactionRepo := interaction.NewRepository(db.DB, log)
	interactionService := interaction.NewService(
		interactionRepo,
		productCatalog,
		sessionService,
		producer,
		cfg.Analytics.TouchOnInteraction,
		log,
	)

	queryRepo := query.NewRepository(db.DB, log)
	queryService := query.NewService(queryRepo, productCatalog, log)

	rollupRepo := rollup.NewRepository(db.DB, log)
	rollupService := rollup.NewService(rollupRepo, log)

	handler := server.NewHandler(sessionService, interactionService, queryService, rollupService, db, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP server shutdown timed out", zap.Error(err))
	}

	log.Info("Analytics Service stopped")
}
