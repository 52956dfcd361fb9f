package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"laurel/internal/allocation"
	allocmetrics "laurel/internal/allocation/metrics"
	allocmemory "laurel/internal/allocation/store/memory"
	allocpostgres "laurel/internal/allocation/store/postgres"
	"laurel/internal/anchoring"
	anchormetrics "laurel/internal/anchoring/metrics"
	certmetrics "laurel/internal/certificate/metrics"
	certservice "laurel/internal/certificate/service"
	certstore "laurel/internal/certificate/store"
	certmemory "laurel/internal/certificate/store/memory"
	certpostgres "laurel/internal/certificate/store/postgres"
	certredis "laurel/internal/certificate/store/redis"
	"laurel/internal/classifier"
	"laurel/internal/coordinator"
	"laurel/internal/coordinator/adapters"
	coordhandler "laurel/internal/coordinator/handler"
	coordmetrics "laurel/internal/coordinator/metrics"
	"laurel/internal/coordinator/ports"
	epochhandler "laurel/internal/epoch/handler"
	epochmetrics "laurel/internal/epoch/metrics"
	epochservice "laurel/internal/epoch/service"
	epochstore "laurel/internal/epoch/store"
	epochmemory "laurel/internal/epoch/store/memory"
	epochpostgres "laurel/internal/epoch/store/postgres"
	"laurel/internal/platform/config"
	"laurel/internal/platform/httpserver"
	"laurel/internal/platform/logger"
	platformmetrics "laurel/internal/platform/metrics"
	"laurel/internal/platform/middleware"
	"laurel/internal/platform/postgres"
	"laurel/internal/platform/redis"
	"laurel/internal/ratelimit"
	httptransport "laurel/internal/transport/http"
	"laurel/pkg/platform/audit/publisher"
	kafkasink "laurel/pkg/platform/audit/sink/kafka"
	auditmemory "laurel/pkg/platform/audit/store/memory"
	"laurel/pkg/platform/circuit"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Backing stores. Postgres when a DSN is configured, in-memory otherwise.
	// Redis, when configured, replaces the certificate store.
	var (
		epochs epochstore.Store = epochmemory.NewInMemoryStore()
		allocs allocation.Store = allocmemory.NewInMemoryStore()
		certs  certstore.Store  = certmemory.NewInMemoryStore()
		db     *sql.DB
		cache  *redis.Client
	)
	if cfg.Postgres.DSN != "" {
		db, err = postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := ensureSchema(ctx, db); err != nil {
			return err
		}
		epochs = epochpostgres.NewPostgres(db)
		allocs = allocpostgres.NewPostgres(db)
		certs = certpostgres.NewPostgres(db)
		log.Info("using postgres stores")
	}
	cache, err = redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		certs = certredis.NewRedisStore(cache.Client)
		log.Info("using redis certificate store")
	}

	// Audit trail. Events always land in the queryable store; with brokers
	// configured they are also published to the compliance topic.
	auditOpts := []publisher.Option{publisher.WithLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer sink.Close()
		auditOpts = append(auditOpts,
			publisher.WithSink(sink),
			publisher.WithAsyncBuffer(cfg.AuditBuf),
		)
		log.Info("audit events published to kafka", "topic", cfg.Kafka.Topic)
	}
	auditStore := auditmemory.NewInMemoryStore()
	auditPub := publisher.NewPublisher(auditStore, auditOpts...)
	defer auditPub.Close()

	// Tokenomics core.
	policy, err := epochservice.PolicyFromConfig(cfg.Policy)
	if err != nil {
		return err
	}
	ledger, err := epochservice.NewLedger(epochs, policy,
		epochservice.WithLogger(log),
		epochservice.WithMetrics(epochmetrics.New()),
	)
	if err != nil {
		return err
	}
	genesis, err := ledger.EnsureGenesis(ctx)
	if err != nil {
		return err
	}
	log.Info("active epoch", "index", genesis.Index, "budget", genesis.EmissionBudget)

	rewards, err := allocation.RewardTableFromConfig(cfg.Policy.Rewards)
	if err != nil {
		return err
	}
	engine, err := allocation.NewEngine(ledger, allocs, rewards,
		allocation.WithLogger(log),
		allocation.WithMetrics(allocmetrics.New()),
	)
	if err != nil {
		return err
	}
	registry := certservice.NewRegistry(certs,
		certservice.WithLogger(log),
		certservice.WithMetrics(certmetrics.New()),
		certservice.WithAuditPublisher(auditPub),
	)

	var scorer ports.ScorerPort
	if cfg.Scorer.BaseURL != "" {
		scorer = adapters.NewHTTPScorer(cfg.Scorer.BaseURL, cfg.Scorer.Timeout, cfg.Scorer.CacheTTL, log)
		log.Info("metric scorer configured", "base_url", cfg.Scorer.BaseURL)
	}

	coordOpts := []coordinator.Option{
		coordinator.WithLogger(log),
		coordinator.WithMetrics(coordmetrics.New()),
		coordinator.WithAuditEmitter(auditPub),
	}

	// Out-of-band anchoring. Without an endpoint certificates stay
	// unanchored until one is attached through the API.
	if cfg.Anchor.Endpoint != "" {
		queue := anchoring.NewQueue(cfg.Anchor.QueueSize)
		defer queue.Close()
		breaker := circuit.New("anchorer",
			circuit.WithFailureThreshold(cfg.Anchor.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.Anchor.SuccessThreshold),
		)
		worker := anchoring.NewWorker(queue,
			anchoring.NewHTTPAnchorer(cfg.Anchor.Endpoint, cfg.Anchor.Timeout),
			registry, breaker,
			anchoring.WithLogger(log),
			anchoring.WithMetrics(anchormetrics.New()),
			anchoring.WithAuditEmitter(auditPub),
		)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("anchor worker stopped", "error", err)
			}
		}()
		coordOpts = append(coordOpts, coordinator.WithAnchorQueue(queue))
		log.Info("anchoring worker started", "endpoint", cfg.Anchor.Endpoint)
	}

	weights := classifier.Weights{
		Coherence:  cfg.Policy.Weights.Coherence,
		Density:    cfg.Policy.Weights.Density,
		Novelty:    cfg.Policy.Weights.Novelty,
		Redundancy: cfg.Policy.Weights.Redundancy,
	}
	service := coordinator.New(classifier.New(weights), ledger, engine, registry, scorer, coordOpts...)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Validator:      middleware.NewTokenValidator(cfg.Server.JWTSigningKey),
		HTTPMetrics:    platformmetrics.NewHTTP(),
		Certifications: coordhandler.New(service, registry, log),
		Epochs:         epochhandler.New(ledger, log),
		Audit:          auditStore,
		SubmitLimiter:  ratelimit.NewSlidingWindow(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		Health:         healthCheck(db, cache),
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "grace", cfg.Server.ShutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ensureSchema applies the store DDL. Every statement is idempotent.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, schema := range []string{epochpostgres.Schema, allocpostgres.Schema, certpostgres.Schema} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

// healthCheck pings whichever backends are configured.
func healthCheck(db *sql.DB, cache *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
		}
		if cache != nil {
			return cache.Health(ctx)
		}
		return nil
	}
}
