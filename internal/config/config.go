package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr            string
	RabbitURL           string
	EventsExchange      string
	EventsQueue         string
	OutboxInterval      time.Duration
	OutboxBatchSize     int
	ShutdownGracePeriod time.Duration
	LogLevel            slog.Level
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Load reads the PIZZERIA_* environment. An empty PIZZERIA_RABBIT_URL keeps
// events in the log instead of a broker.
func Load() Config {
	return Config{
		HTTPAddr:            getEnv("PIZZERIA_HTTP_ADDR", ":8080"),
		RabbitURL:           getEnv("PIZZERIA_RABBIT_URL", ""),
		EventsExchange:      getEnv("PIZZERIA_EVENTS_EXCHANGE", "pizzeria.events"),
		EventsQueue:         getEnv("PIZZERIA_EVENTS_QUEUE", "pizzeria.events.tail"),
		OutboxInterval:      parseDuration("PIZZERIA_OUTBOX_INTERVAL", 2*time.Second),
		OutboxBatchSize:     parseInt("PIZZERIA_OUTBOX_BATCH", 32),
		ShutdownGracePeriod: parseDuration("PIZZERIA_SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:            parseLevel("PIZZERIA_LOG_LEVEL", slog.LevelInfo),
	}
}

func parseDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return def
}

func parseInt(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}

func parseLevel(key string, def slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(getEnv(key, "")))); err != nil {
		return def
	}
	return level
}
