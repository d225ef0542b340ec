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

	Workers      int
	MaxLineBytes int

	CrawlBaseURL string
	CrawlPages   int
	CrawlPerPage int
	CrawlRetries int
	CrawlDelay   time.Duration
	CrawlTimeout time.Duration
}

func LoadConfig() (*Config, error) {
	config := &Config{
		NATSURL:         getEnvString("NATS_URL", "nats://localhost:4222"),
		NATSConnTimeout: getEnvDuration("NATS_CONN_TIMEOUT", 10*time.Second),
		Subject:         getEnvString("NATS_SUBJECT", "jobs.crawled"),

		Workers:      getEnvInt("REPLAY_WORKERS", 4),
		MaxLineBytes: getEnvInt("REPLAY_MAX_LINE_BYTES", 4<<20),

		CrawlBaseURL: getEnvString("CRAWL_BASE_URL", "https://www.saramin.co.kr"),
		CrawlPages:   getEnvInt("CRAWL_PAGES", 1),
		CrawlPerPage: getEnvInt("CRAWL_PER_PAGE", 30),
		CrawlRetries: getEnvInt("CRAWL_RETRIES", 3),
		CrawlDelay:   getEnvDuration("CRAWL_DELAY", 3*time.Second),
		CrawlTimeout: getEnvDuration("CRAWL_TIMEOUT", 30*time.Second),
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
