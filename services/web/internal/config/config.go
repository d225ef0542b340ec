package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppName        string
	HTTPAddr       string
	RequestTimeout time.Duration

	// SelfBaseURL is where the grid page fetches /jobs/data from.
	SelfBaseURL string

	APIServiceBaseURL string
	APITimeout        time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	config := &Config{
		AppName:        getEnvString("APP_NAME", "Job Posting Grid"),
		HTTPAddr:       getEnvString("HTTP_ADDR", ":8001"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		SelfBaseURL:    getEnvString("SELF_BASE_URL", "http://localhost:8001"),

		APIServiceBaseURL: getEnvString("API_SERVICE_BASE_URL", "http://localhost:8000"),
		APITimeout:        getEnvDuration("API_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnvString("REDIS_ADDR", ""),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", time.Minute),

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
