package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idv/internal/audit"
	"idv/internal/challenge"
	flowmetrics "idv/internal/flow/metrics"
	flowservice "idv/internal/flow/service"
	"idv/internal/gateway"
	"idv/internal/identify"
	"idv/internal/platform/config"
	"idv/internal/platform/httpserver"
	"idv/internal/platform/logger"
	"idv/internal/platform/redis"
	"idv/internal/session"
	httptransport "idv/internal/transport/http"
	"idv/internal/vault"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if cfg.BackendBaseURL == "" {
		log.Error("IDV_BACKEND_URL is required")
		os.Exit(1)
	}
	backend := gateway.NewClient(cfg.BackendBaseURL)
	locator := gateway.NewLocatorClient(backend)
	submitter := gateway.NewSubmitterClient(backend)
	issuer := gateway.NewIssuerClient(backend)

	tokens := identify.NewTokenService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	var challengeStore challenge.Store = challenge.NewInMemoryStore()
	if cfg.Redis.URL != "" {
		redisClient, err := redis.New(cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		challengeStore = challenge.NewRedisStore(redisClient.Client)
		log.Info("challenge store: redis")
	}

	challenges, err := challenge.New(challengeStore, issuer,
		challenge.WithLogger(log),
		challenge.WithRetryWindow(cfg.ChallengeRetryWindow),
	)
	if err != nil {
		log.Error("failed to build challenge service", "error", err)
		os.Exit(1)
	}

	var vaultStore vault.Store = vault.NewInMemoryStore()
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		vaultStore = vault.NewPostgresStore(db)
		log.Info("vault store: postgres")
	}
	decrypter, err := vault.NewService(vaultStore, tokens)
	if err != nil {
		log.Error("failed to build vault service", "error", err)
		os.Exit(1)
	}

	var auditStore audit.Store = audit.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
		log.Info("audit sink: kafka", "topic", cfg.Kafka.Topic)
	}
	auditor := audit.NewPublisher(auditStore)

	flows, err := flowservice.New(decrypter, submitter, locator, challenges, tokens,
		flowservice.WithLogger(log),
		flowservice.WithAuditPublisher(auditor),
		flowservice.WithMetrics(flowmetrics.New()),
	)
	if err != nil {
		log.Error("failed to build flow service", "error", err)
		os.Exit(1)
	}

	sessions := session.NewInMemoryStore()
	handler := httptransport.New(flows, sessions, log)

	router := chi.NewRouter()
	handler.Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting idv flow engine", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
