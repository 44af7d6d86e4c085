// Package config reads process configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the full process configuration.
type Server struct {
	Addr        string
	Environment string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	JWT JWTConfig
}

// RedisConfig tunes the optional Redis client used for the token revocation
// list. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig points the audit outbox relay at a broker set. Empty brokers
// disable the relay.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// JWTConfig carries token signing parameters.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("VIGIA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	environment := os.Getenv("VIGIA_ENV")
	if environment == "" {
		environment = "development"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "vigia.audit"
	}

	return Server{
		Addr:        addr,
		Environment: environment,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{Brokers: brokers, Topic: topic},
		JWT: JWTConfig{
			SigningKey: jwtSigningKey,
			Issuer:     envOr("JWT_ISSUER", "vigia"),
			Audience:   envOr("JWT_AUDIENCE", "vigia-clients"),
			TokenTTL:   envDuration("JWT_TOKEN_TTL", 3*time.Hour),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}
