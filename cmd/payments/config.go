package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"PaymentsEngine/internal/observability"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all application configuration, loaded from the environment.
// Every exporter is off unless its endpoint is set.
type Config struct {
	TxLogPath   string
	LogLevel    zerolog.Level
	MetricsFile string

	// Postgres snapshot store
	PostgresDSN   string
	MigrationsDir string

	// NATS JetStream snapshot publisher
	NATSURL     string
	NATSSubject string

	// Kafka balance publisher
	KafkaBrokers []string
	KafkaTopic   string

	ExportTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TxLogPath:     envOrDefault("PAYMENTS_TX_LOG", "transactions.log"),
		LogLevel:      observability.ParseLogLevel(os.Getenv("PAYMENTS_LOG_LEVEL")),
		MetricsFile:   os.Getenv("PAYMENTS_METRICS_FILE"),
		PostgresDSN:   os.Getenv("PAYMENTS_POSTGRES_DSN"),
		MigrationsDir: os.Getenv("PAYMENTS_MIGRATIONS_DIR"),
		NATSURL:       os.Getenv("PAYMENTS_NATS_URL"),
		NATSSubject:   envOrDefault("PAYMENTS_NATS_SUBJECT", "payments.snapshots"),
		KafkaBrokers:  envListOrDefault("PAYMENTS_KAFKA_BROKERS", nil),
		KafkaTopic:    envOrDefault("PAYMENTS_KAFKA_TOPIC", "payments.balances"),
		ExportTimeout: envDurationOrDefault("PAYMENTS_EXPORT_TIMEOUT", 30*time.Second),
	}
}

// LoadConfig loads an optional .env file from the working directory, then
// reads the environment. Variables already set win over the file.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return DefaultConfig(), nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envListOrDefault splits a comma separated value, dropping empty items.
func envListOrDefault(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
