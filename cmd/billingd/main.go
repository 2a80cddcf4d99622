// Command billingd receives billing provider webhooks and reconciles local
// subscription state with the provider.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingkit/pkg/broadcast"
	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/environment"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/idempotency"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/redis"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/pkg/subscription/pgstore"
	"github.com/dmitrymomot/billingkit/pkg/vindi"
	"github.com/dmitrymomot/billingkit/pkg/webhookhttp"
)

type appConfig struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"billingd"`
	Store       string `env:"BILLING_STORE" envDefault:"postgres"`     // postgres or memory
	DedupeStore string `env:"WEBHOOK_DEDUPE_STORE" envDefault:"redis"` // redis or memory
	WebhookPath string `env:"WEBHOOK_PATH" envDefault:"/webhooks/vindi"`
	WebhookUser string `env:"WEBHOOK_USER"`
	WebhookPass string `env:"WEBHOOK_PASSWORD"`
	EventBuffer int    `env:"BILLING_EVENT_BUFFER" envDefault:"256"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("billingd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		app     appConfig
		subCfg  subscription.Config
		gwCfg   vindi.Config
		dedupe  idempotency.Config
		httpCfg httpserver.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&app) },
		func() error { return config.Load(&subCfg) },
		func() error { return config.Load(&gwCfg) },
		func() error { return config.Load(&dedupe) },
		func() error { return config.Load(&httpCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	log := logger.New(
		logger.WithEnvironment(subCfg.Env, app.ServiceName),
		logger.WithContextExtractors(environment.LoggerExtractor()),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
	logger.SetAsDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var probes []httpserver.Probe

	repo, closeRepo, probe, err := openRepository(ctx, app.Store, log)
	if err != nil {
		return err
	}
	defer closeRepo()
	if probe != nil {
		probes = append(probes, *probe)
	}

	claimer, closeClaimer, dedupeProbe, err := openDedupeStore(ctx, app.DedupeStore, dedupe)
	if err != nil {
		return err
	}
	defer closeClaimer()
	if dedupeProbe != nil {
		probes = append(probes, *dedupeProbe)
	}

	gwMetrics, err := vindi.NewMetrics(reg)
	if err != nil {
		return err
	}
	gateway, err := vindi.New(gwCfg, vindi.WithLogger(log), vindi.WithMetrics(gwMetrics))
	if err != nil {
		return err
	}

	subMetrics, err := subscription.NewMetrics(reg)
	if err != nil {
		return err
	}

	events := broadcast.NewMemoryBroadcaster[subscription.Event](app.EventBuffer)
	defer events.Close()
	go logEvents(ctx, events.Subscribe(ctx), log)

	svc := subscription.NewService(repo, gateway,
		subscription.WithConfig(subCfg),
		subscription.WithLogger(log),
		subscription.WithMetrics(subMetrics),
		subscription.WithEmitter(subscription.NewDedupEmitter(subscription.NewBroadcastEmitter(events), claimer)),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(environment.Middleware(subCfg.Env))
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, probes...))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount(app.WebhookPath, webhookhttp.New(svc,
		webhookhttp.WithLogger(log),
		webhookhttp.WithBasicAuth(app.WebhookUser, app.WebhookPass),
	).Routes())

	log.InfoContext(ctx, "starting billingd",
		slog.String("store", app.Store),
		slog.String("dedupe_store", app.DedupeStore),
		slog.String("webhook_path", app.WebhookPath),
	)
	return httpserver.New(httpCfg, httpserver.WithLogger(log)).Run(ctx, r)
}

func openRepository(ctx context.Context, driver string, log *slog.Logger) (subscription.Repository, func(), *httpserver.Probe, error) {
	switch driver {
	case "memory":
		log.WarnContext(ctx, "using in-memory subscription store, state is lost on restart")
		return subscription.NewMemoryRepository(nil), func() {}, nil, nil
	case "postgres":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, log); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pgstore.New(pool), pool.Close,
			&httpserver.Probe{Name: "postgres", Check: pg.Healthcheck(pool)}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown BILLING_STORE %q", driver)
	}
}

func openDedupeStore(ctx context.Context, driver string, cfg idempotency.Config) (idempotency.Store, func(), *httpserver.Probe, error) {
	switch driver {
	case "memory":
		return idempotency.NewMemoryStore(cfg.Options()...), func() {}, nil, nil
	case "redis":
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return nil, nil, nil, err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
				slog.Warn("failed to close redis client", logger.Error(err))
			}
		}
		return idempotency.NewRedisStore(client, cfg.Options()...), closeFn,
			&httpserver.Probe{Name: "redis", Check: redis.Healthcheck(client)}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown WEBHOOK_DEDUPE_STORE %q", driver)
	}
}

// logEvents is the notification collaborator: it records every domain event
// the reconciler emits.
func logEvents(ctx context.Context, sub broadcast.Subscriber[subscription.Event], log *slog.Logger) {
	defer sub.Close()
	for msg := range sub.Receive() {
		log.InfoContext(ctx, "billing event",
			slog.String("event", msg.Data.EventName()),
			slog.String("dedupe_key", msg.Data.DedupeKey()),
		)
	}
}
