package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	NATSURL         string
	NATSConnTimeout time.Duration
	Subject         string
	QueueGroup      string

	ClickHouseDSN          string
	ClickHouseMaxOpenConns int
	ClickHouseMaxIdleConns int
	ClickHouseConnMaxLife  time.Duration
	ClickHouseUsername     string
	ClickHousePassword     string
	ClickHouseDatabase     string

	BatchSize         int
	MaxPendingBatches int
	FlushInterval     time.Duration
	InsertTimeout     time.Duration
	MaxRetries        int
	RetryDelay        time.Duration

	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	config := &Config{
		NATSURL:         getEnvString("NATS_URL", "nats://localhost:4222"),
		NATSConnTimeout: getEnvDuration("NATS_CONN_TIMEOUT", 10*time.Second),
		Subject:         getEnvString("NATS_SUBJECT", "jobs.crawled"),
		QueueGroup:      getEnvString("NATS_QUEUE_GROUP", "loader-service"),

		ClickHouseDSN:          getEnvString("CLICKHOUSE_DSN", "localhost:9000"),
		ClickHouseMaxOpenConns: getEnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		ClickHouseMaxIdleConns: getEnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ClickHouseConnMaxLife:  getEnvDuration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseUsername:     getEnvString("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     getEnvString("CLICKHOUSE_PASSWORD", ""),
		ClickHouseDatabase:     getEnvString("CLICKHOUSE_DATABASE", "jobgrid"),

		BatchSize:         getEnvInt("BATCH_SIZE", 100),
		MaxPendingBatches: getEnvInt("MAX_PENDING_BATCHES", 10),
		FlushInterval:     getEnvDuration("FLUSH_INTERVAL", 5*time.Second),
		InsertTimeout:     getEnvDuration("INSERT_TIMEOUT", time.Minute),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		RetryDelay:        getEnvDuration("RETRY_DELAY", 2*time.Second),

		OTLPEndpoint: getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	return config, nil
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
