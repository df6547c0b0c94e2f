package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cloess/interaction-analytics/internal/config"
	"github.com/cloess/interaction-analytics/internal/rollup"
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

	log = logger.WithService(log, "rollup-service")
	log.Info("Starting Rollup Service",
		zap.String("environment", cfg.Environment),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("consumer_group", cfg.Kafka.GroupID),
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

	rollupRepo := rollup.NewRepository(db.DB, log)
	rollupService := rollup.NewService(rollupRepo, log)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:           cfg.Kafka.Brokers,
		Topics:            []string{cfg.Kafka.Topic},
		GroupID:           cfg.Kafka.GroupID,
		AutoCommit:        cfg.Kafka.AutoCommit,
		CommitInterval:    cfg.Kafka.CommitInterval,
		SessionTimeout:    cfg.Kafka.SessionTimeout,
		RebalanceStrategy: "sticky",
	}, rollupService.MessageHandler(), log)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error("Consumer error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully...")
	cancel()

	log.Info("Rollup Service stopped")
}
