// Package config loads service settings from the environment on top of
// built-in defaults.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BrokerKafka  = "kafka"
	BrokerMemory = "memory"
)

type Config struct {
	ServiceName string
	HTTPAddr    string
	LogLevel    string

	Broker       string
	KafkaBrokers []string
	KafkaGroupID string

	// PostgresDSN empty selects the in-memory stores.
	PostgresDSN string
	// RedisAddr empty selects the in-memory idempotency cache.
	RedisAddr string
	// SagaLogPath empty disables the saga audit log.
	SagaLogPath string

	StatusStreamTTL     time.Duration
	StatusSweepInterval time.Duration
	StatusBuffer        int

	ConsumerMaxAttempts  int
	ConsumerRetryBackoff time.Duration
	IdempotencyTTL       time.Duration

	TracingEnabled bool
}

// Default returns the settings used when no environment override is present.
func Default(service, httpAddr string) Config {
	return Config{
		ServiceName:          service,
		HTTPAddr:             httpAddr,
		LogLevel:             "info",
		Broker:               BrokerKafka,
		KafkaBrokers:         []string{"localhost:9092"},
		KafkaGroupID:         service,
		StatusStreamTTL:      30 * time.Minute,
		StatusSweepInterval:  5 * time.Minute,
		StatusBuffer:         16,
		ConsumerMaxAttempts:  5,
		ConsumerRetryBackoff: 200 * time.Millisecond,
		IdempotencyTTL:       24 * time.Hour,
		TracingEnabled:       true,
	}
}

// Load returns Default overlaid with the process environment.
func Load(service, httpAddr string) Config {
	return fromEnv(Default(service, httpAddr), os.Getenv)
}

func fromEnv(c Config, getenv func(string) string) Config {
	if v := getenv("OTEL_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("BROKER"); v != "" {
		c.Broker = strings.ToLower(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	if v := getenv("KAFKA_GROUP_ID"); v != "" {
		c.KafkaGroupID = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := getenv("SAGA_LOG_PATH"); v != "" {
		c.SagaLogPath = v
	}
	c.StatusStreamTTL = duration(getenv, "STATUS_STREAM_TTL", c.StatusStreamTTL)
	c.StatusSweepInterval = duration(getenv, "STATUS_SWEEP_INTERVAL", c.StatusSweepInterval)
	c.StatusBuffer = integer(getenv, "STATUS_BUFFER", c.StatusBuffer)
	c.ConsumerMaxAttempts = integer(getenv, "CONSUMER_MAX_ATTEMPTS", c.ConsumerMaxAttempts)
	c.ConsumerRetryBackoff = duration(getenv, "CONSUMER_RETRY_BACKOFF", c.ConsumerRetryBackoff)
	c.IdempotencyTTL = duration(getenv, "IDEMPOTENCY_TTL", c.IdempotencyTTL)
	if v := getenv("TRACING_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			c.TracingEnabled = true
		case "0", "false", "no":
			c.TracingEnabled = false
		default:
			slog.Warn("config: ignoring invalid bool", "key", "TRACING_ENABLED", "value", v)
		}
	}
	return c
}

func duration(getenv func(string) string, key string, fallback time.Duration) time.Duration {
	v := getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config: ignoring invalid duration", "key", key, "value", v)
		return fallback
	}
	return d
}

func integer(getenv func(string) string, key string, fallback int) int {
	v := getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("config: ignoring invalid integer", "key", key, "value", v)
		return fallback
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
