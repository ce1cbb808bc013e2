// Command meterd runs the usage metering API, the rollover runner and the
// Prometheus endpoint in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/meterkit/internal/db"
	"github.com/dmitrymomot/meterkit/internal/telemetry"
	"github.com/dmitrymomot/meterkit/pkg/config"
	"github.com/dmitrymomot/meterkit/pkg/httpserver"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/quota"
	"github.com/dmitrymomot/meterkit/pkg/redis"
	"github.com/dmitrymomot/meterkit/pkg/requestid"
	"github.com/dmitrymomot/meterkit/pkg/rollover"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
	"github.com/dmitrymomot/meterkit/pkg/usage"
	"github.com/dmitrymomot/meterkit/svc/metering"
)

type appConfig struct {
	PlansFile   string `env:"PLANS_FILE"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.FromConfig(logCfg, logger.WithContextExtractors(requestid.LoggerExtractor()))
	logger.SetAsDefault(log)

	if err := run(ctx, log); err != nil {
		log.Error("meterd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	var (
		app         appConfig
		pgCfg       pg.Config
		usageCfg    usage.Config
		rolloverCfg rollover.Config
		httpCfg     httpserver.Config
		paddleCfg   subscription.PaddleConfig
	)
	for _, load := range []func() error{
		func() error { return config.Load(&app) },
		func() error { return config.Load(&pgCfg) },
		func() error { return config.Load(&usageCfg) },
		func() error { return config.Load(&rolloverCfg) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&paddleCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, db.Migrations, db.MigrationsDir, pgCfg, log); err != nil {
		return err
	}

	if app.PlansFile != "" {
		if err := plans.Seed(ctx, pool, plans.NewYAMLSource(app.PlansFile)); err != nil {
			return err
		}
		log.InfoContext(ctx, "plan catalog seeded", slog.String("file", app.PlansFile))
	}
	catalog, err := plans.NewCatalog(ctx, plans.NewPGSource(pool))
	if err != nil {
		return err
	}

	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}}
	store, closeStore, storeChecks, err := newUsageStore(ctx, usageCfg, pool)
	if err != nil {
		return err
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	metrics := telemetry.New()
	subs := subscription.NewPGStore(pool)
	tracker := usage.NewTracker(store,
		usage.WithLogger(log),
		usage.WithRecorder(metrics),
		usage.WithRetry(usageCfg))
	if err := registerGauges(ctx, log, tracker, usageCfg, pool); err != nil {
		return err
	}
	validator := quota.NewValidator(subs, catalog, tracker,
		quota.WithLogger(log),
		quota.WithRecorder(metrics))
	scheduler := rollover.NewScheduler(subs, catalog, tracker,
		rollover.WithLogger(log),
		rollover.WithRecorder(metrics))

	svcOpts := []metering.Option{metering.WithLogger(log)}
	if paddleCfg.WebhookSecret != "" {
		parser, err := subscription.NewPaddleParser(paddleCfg)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, metering.WithBilling(parser,
			subscription.NewSync(subs, subscription.WithSyncLogger(log))))
	} else {
		log.WarnContext(ctx, "PADDLE_WEBHOOK_SECRET is not set, billing webhook disabled")
	}
	svc := metering.New(validator, tracker, scheduler, svcOpts...)

	router := chi.NewRouter()
	router.Get("/healthz", httpserver.LivenessHandler())
	router.Get("/readyz", httpserver.ReadinessHandler(log, checks...))
	router.Mount("/", svc.Handler())

	api := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log), httpserver.WithName("api"))
	metricsSrv := httpserver.New(
		httpserver.WithAddr(app.MetricsAddr),
		httpserver.WithLogger(log),
		httpserver.WithName("metrics"))

	log.InfoContext(ctx, "meterd starting",
		slog.String("usage_store", usageCfg.Store),
		slog.Int("plans", len(catalog.All())),
		slog.Bool("rollover_enabled", rolloverCfg.Enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Run(gctx, router) })
	g.Go(func() error { return metricsSrv.Run(gctx, metrics.Handler()) })
	if rolloverCfg.Enabled {
		runner := rollover.NewRunnerFromConfig(scheduler, rolloverCfg, rollover.WithRunnerLogger(log))
		g.Go(func() error {
			if err := runner.Start(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// newUsageStore builds the Store selected by cfg.Store together with its
// cleanup func and readiness checks.
func newUsageStore(ctx context.Context, cfg usage.Config, pool *pgxpool.Pool) (usage.Store, func(), []httpserver.Check, error) {
	noop := func() {}

	switch cfg.Store {
	case usage.StorePostgres:
		return usage.NewPGStore(pool), noop, nil, nil

	case usage.StoreRedis:
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, noop, nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, noop, nil, err
		}
		checks := []httpserver.Check{{Name: "redis", Fn: redis.Healthcheck(client, redisCfg.KeyPrefix)}}
		return usage.NewRedisStore(client, redisCfg.KeyPrefix), func() { _ = client.Close() }, checks, nil

	case usage.StoreMemory:
		return usage.NewMemoryStore(), noop, nil, nil

	default:
		return nil, noop, nil, fmt.Errorf("unknown USAGE_STORE %q: want %s, %s or %s",
			cfg.Store, usage.StorePostgres, usage.StoreRedis, usage.StoreMemory)
	}
}

// registerGauges wires the configured live-count queries into the tracker.
func registerGauges(ctx context.Context, log *slog.Logger, tracker *usage.Tracker, cfg usage.Config, pool *pgxpool.Pool) error {
	for _, metric := range plans.Metrics() {
		query, ok := cfg.GaugeQueries()[metric]
		if !ok {
			continue
		}
		if query == "" {
			log.WarnContext(ctx, "no live count configured, gauge carries over between periods",
				logger.Metric(metric))
			continue
		}
		if err := tracker.RegisterGauge(metric, usage.PGGauge(pool, query)); err != nil {
			return err
		}
	}
	return nil
}
