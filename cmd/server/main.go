package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	accesshandler "vigia/internal/access/handler"
	accessmetrics "vigia/internal/access/metrics"
	"vigia/internal/access/resolver"
	accessservice "vigia/internal/access/service"
	accessstore "vigia/internal/access/store"
	authhandler "vigia/internal/auth/handler"
	"vigia/internal/auth/jwt"
	authservice "vigia/internal/auth/service"
	"vigia/internal/auth/store/revocation"
	directoryhandler "vigia/internal/directory/handler"
	directoryservice "vigia/internal/directory/service"
	directorystore "vigia/internal/directory/store"
	passhandler "vigia/internal/pass/handler"
	passmetrics "vigia/internal/pass/metrics"
	passservice "vigia/internal/pass/service"
	passstore "vigia/internal/pass/store"
	"vigia/internal/platform/config"
	"vigia/internal/platform/httpserver"
	"vigia/internal/platform/kafka"
	"vigia/internal/platform/logger"
	"vigia/internal/platform/postgres"
	platformredis "vigia/internal/platform/redis"
	"vigia/internal/platform/tracing"
	httptransport "vigia/internal/transport/http"
	"vigia/pkg/platform/audit"
	auditpublisher "vigia/pkg/platform/audit/publisher"
	auditmemory "vigia/pkg/platform/audit/store/memory"
	auditpostgres "vigia/pkg/platform/audit/store/postgres"
	txrunner "vigia/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

// main wires storage, services, and the HTTP surface. Every backend is
// optional: without DATABASE_URL the process runs fully in memory, which is
// what the development and demo setups use.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, "vigia", cfg.Environment)
	if err != nil {
		log.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	var (
		passes     passstore.Store
		ledger     accessstore.Store
		directory  directorystore.Store
		auditStore audit.Store
		runner     txrunner.Runner
		trl        revocation.TokenRevocationList
		checks     = map[string]httptransport.HealthChecker{}
	)

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres open failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		passes = passstore.NewPostgres(db)
		ledger = accessstore.NewPostgres(db)
		directory = directorystore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		runner = txrunner.NewSQLRunner(db)
		trl = revocation.NewPostgresTRL(db)
		checks["postgres"] = httptransport.HealthCheckerFunc(func(ctx context.Context) error {
			return postgres.Health(ctx, db)
		})
		log.Info("using postgres storage")
	} else {
		passes = passstore.NewInMemory()
		ledger = accessstore.NewInMemory()
		directory = directorystore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		runner = txrunner.NewShardedRunner()
		trl = revocation.NewMemoryTRL()
		log.Warn("no DATABASE_URL set, using in-memory storage")
	}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		trl = revocation.NewRedisTRL(rdb.Client)
		checks["redis"] = rdb
		log.Info("using redis token revocation list")
	}

	publisher := auditpublisher.NewPublisher(auditStore, auditpublisher.WithAsyncBuffer(256))
	defer publisher.Close()

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Error("kafka connect failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	tokens := jwt.NewService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TokenTTL)

	passSvc := passservice.New(passes, ledger, runner, nil,
		passservice.WithLogger(log),
		passservice.WithAuditPublisher(publisher),
		passservice.WithMetrics(passmetrics.New()),
	)
	accessSvc := accessservice.New(ledger, resolver.New(directory, passes), directory, runner,
		accessservice.WithLogger(log),
		accessservice.WithAuditPublisher(publisher),
		accessservice.WithMetrics(accessmetrics.New()),
	)
	directorySvc := directoryservice.New(directory, passes, ledger, runner,
		directoryservice.WithLogger(log),
		directoryservice.WithAuditPublisher(publisher),
	)
	authSvc := authservice.New(directory, tokens, trl,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(publisher),
	)

	router := httptransport.New(httptransport.Config{
		Logger:    log,
		Validator: tokens,
		Revoked:   trl,
		Auth:      authhandler.New(authSvc, tokens, log),
		Passes:    passhandler.New(passSvc, log),
		Access:    accesshandler.New(accessSvc, log),
		Directory: directoryhandler.New(directorySvc, log),
		Checks:    checks,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if db != nil && producer != nil {
		relay := kafka.NewOutboxRelay(db, producer, cfg.Kafka.Topic, log)
		g.Go(func() error { return relay.Run(gctx) })
		log.Info("audit outbox relay enabled", "topic", cfg.Kafka.Topic)
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func openDB(url string) (*sql.DB, error) {
	if url == "" {
		return nil, nil
	}
	return postgres.Open(url)
}
