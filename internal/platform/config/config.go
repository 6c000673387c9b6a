package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Everything the engine needs
// at runtime is passed in explicitly; no package reads the environment
// after startup.
type Server struct {
	Addr string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	BackendBaseURL string

	ChallengeRetryWindow time.Duration

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig configures the optional Redis challenge store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional Postgres vault store.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the optional Kafka audit sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	addr := os.Getenv("IDV_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("IDV_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	retryWindow := 30 * time.Second
	if raw := os.Getenv("IDV_CHALLENGE_RETRY_WINDOW"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			retryWindow = parsed
		}
	}

	cfg := Server{
		Addr:                 addr,
		JWTSigningKey:        jwtSigningKey,
		JWTIssuer:            envOr("IDV_JWT_ISSUER", "idv"),
		JWTAudience:          envOr("IDV_JWT_AUDIENCE", "idv-flows"),
		BackendBaseURL:       os.Getenv("IDV_BACKEND_URL"),
		ChallengeRetryWindow: retryWindow,
		Redis: RedisConfig{
			URL:          os.Getenv("IDV_REDIS_URL"),
			PoolSize:     envInt("IDV_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("IDV_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("IDV_POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Topic: envOr("IDV_KAFKA_AUDIT_TOPIC", "idv.audit"),
		},
	}
	if brokers := os.Getenv("IDV_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
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
