// Command gateway runs the admission gateway: an HTTP front that rate
// limits, authorizes, scans, and dispatches every inbound request, with an
// asynchronous audit trail behind it.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bulwark/internal/admission"
	"bulwark/internal/audit"
	"bulwark/internal/auth"
	"bulwark/internal/circuit"
	"bulwark/internal/dispatch"
	"bulwark/internal/dlp"
	"bulwark/internal/platform/config"
	"bulwark/internal/platform/httpserver"
	"bulwark/internal/platform/logger"
	platformredis "bulwark/internal/platform/redis"
	"bulwark/internal/policy"
	rlservice "bulwark/internal/ratelimit/service"
	"bulwark/internal/ratelimit/store/counter"
	httptransport "bulwark/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Counter store: shared Redis when configured, in-process otherwise.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var store rlservice.CounterStore
	if redisClient != nil {
		defer redisClient.Close()
		store = counter.NewRedisStore(redisClient.Client)
		log.Info("rate limiter using redis counter store")
	} else {
		store = counter.NewInMemoryStore()
		log.Warn("REDIS_URL not set, rate limits are per-instance only")
	}

	limiter, err := rlservice.New(store,
		rlservice.WithLogger(log),
		rlservice.WithLimits(rlservice.Limits{
			UserPerMinute:    cfg.Limits.UserPerMinute,
			TenantPerHour:    cfg.Limits.TenantPerHour,
			UserTokensPerDay: cfg.Limits.UserTokensPerDay,
		}),
	)
	if err != nil {
		return err
	}

	var classifier dlp.Classifier = dlp.NopClassifier{}
	if cfg.ClassifierURL != "" {
		classifier = dlp.NewHTTPClassifier(cfg.ClassifierURL, 5*time.Second)
	}
	scanner := dlp.NewScanner(classifier, dlp.WithLogger(log))

	policyClient := policy.New(cfg.Policy.URL, cfg.Policy.Timeout, policy.WithLogger(log))

	registry := circuit.NewRegistry()
	adapter := dispatch.NewHTTPAdapter(
		cfg.Dispatch.UpstreamURL,
		cfg.Dispatch.UpstreamAPIKey,
		dispatch.WithAdapterHTTPClient(&http.Client{Timeout: cfg.Dispatch.Timeout}),
	)
	dispatcher, err := dispatch.New(adapter, registry,
		cfg.Dispatch.DefaultTarget, cfg.Dispatch.FallbackTarget,
		dispatch.WithLogger(log),
	)
	if err != nil {
		return err
	}

	sink, err := buildAuditSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	publisher, err := audit.NewPublisher(sink, audit.WithLogger(log))
	if err != nil {
		return err
	}

	pipeline, err := admission.New(limiter, policyClient, scanner, dispatcher, publisher,
		admission.WithLogger(log))
	if err != nil {
		return err
	}

	jwtService := auth.NewJWTService(cfg.JWTSigningKey, "bulwark")

	var health httptransport.HealthChecker
	if redisClient != nil {
		health = redisClient
	}
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Chat:      httptransport.NewChatHandler(pipeline, limiter, log),
		Admin:     httptransport.NewAdminHandler(limiter, scanner, registry, log),
		Auth:      httptransport.Authenticate(jwtService),
		AdminRole: "admin",
		Health:    health,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := publisher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		log.Info("gateway listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return httpserver.Shutdown(srv)
	})

	return g.Wait()
}

// buildAuditSink composes the configured trail: Kafka for streaming,
// Postgres for queryable retention, both when both are set, structured
// logs when neither is.
func buildAuditSink(ctx context.Context, cfg config.Server, log *slog.Logger) (audit.Sink, error) {
	var sinks []audit.Sink

	if len(cfg.Kafka.Seeds) > 0 {
		kafka, err := audit.NewKafkaSink(cfg.Kafka.Seeds, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kafka)
		log.Info("audit trail streaming to kafka", "topic", cfg.Kafka.Topic)
	}

	if cfg.AuditDB != "" {
		pg, err := audit.NewPostgresSink(ctx, cfg.AuditDB)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
		log.Info("audit trail persisting to postgres")
	}

	switch len(sinks) {
	case 0:
		log.Warn("no audit sink configured, writing audit entries to logs")
		return audit.NewLogSink(log), nil
	case 1:
		return sinks[0], nil
	default:
		return audit.NewMultiSink(sinks...), nil
	}
}
