package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTPPort    string
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Analytics   AnalyticsConfig
}

type PostgresConfig struct {
	Host            string
	Port            string
	Database        string
	Username        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string
}

type KafkaConfig struct {
	Brokers          []string
	Topic            string
	GroupID          string
	ProducerRetries  int
	ProducerTimeout  time.Duration
	RequiredAcks     int
	CompressionType  string
	MaxMessageBytes  int
	IdempotentWrites bool
	AutoCommit       bool
	CommitInterval   time.Duration
	SessionTimeout   time.Duration
}

type AnalyticsConfig struct {
	// TouchOnInteraction extends session last_seen on every tracked
	// interaction, not only on explicit bootstrap calls.
	TouchOnInteraction bool
	GeoLookupTimeout   time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
	}

	cfg.Postgres = PostgresConfig{
		Host:            getEnv("POSTGRES_HOST", "localhost"),
		Port:            getEnv("POSTGRES_PORT", "5432"),
		Database:        getEnv("POSTGRES_DB", "cloess"),
		Username:        getEnv("POSTGRES_USER", "postgres"),
		Password:        getEnv("POSTGRES_PASSWORD", ""),
		MaxOpenConns:    getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
	}

	brokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	cfg.Kafka = KafkaConfig{
		Brokers:          strings.Split(brokers, ","),
		Topic:            getEnv("KAFKA_TOPIC_INTERACTIONS", "product-interactions"),
		GroupID:          getEnv("KAFKA_GROUP_ID", "interaction-rollup"),
		ProducerRetries:  getEnvAsInt("KAFKA_PRODUCER_RETRIES", 3),
		ProducerTimeout:  getEnvAsDuration("KAFKA_PRODUCER_TIMEOUT", 10*time.Second),
		RequiredAcks:     getEnvAsInt("KAFKA_REQUIRED_ACKS", -1),
		CompressionType:  getEnv("KAFKA_COMPRESSION", "snappy"),
		IdempotentWrites: getEnvAsBool("KAFKA_IDEMPOTENT", true),
		MaxMessageBytes:  getEnvAsInt("KAFKA_MAX_MESSAGE_BYTES", 1000000),
		AutoCommit:       getEnvAsBool("KAFKA_AUTO_COMMIT", true),
		CommitInterval:   getEnvAsDuration("KAFKA_COMMIT_INTERVAL", time.Second),
		SessionTimeout:   getEnvAsDuration("KAFKA_SESSION_TIMEOUT", 30*time.Second),
	}

	cfg.Analytics = AnalyticsConfig{
		TouchOnInteraction: getEnvAsBool("ANALYTICS_TOUCH_ON_INTERACTION", true),
		GeoLookupTimeout:   getEnvAsDuration("ANALYTICS_GEO_TIMEOUT", 5*time.Second),
	}

	return cfg, nil
}

func (c *PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
