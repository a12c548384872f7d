package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/angelmondragon/aquaflow-backend/internal/app"
	"github.com/angelmondragon/aquaflow-backend/internal/cron"
	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/instance"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
	"github.com/angelmondragon/aquaflow-backend/pkg/migrate"
	"github.com/angelmondragon/aquaflow-backend/pkg/redis"
)

const lockName = "cron-worker"

type worker struct {
	cfg       *config.Config
	logg      *logger.Logger
	service   *cron.Service
	batch     *cron.SubscriptionBatchJob
	closeFunc func()
}

func main() {
	cliApp := &cli.App{
		Name:  "cron-worker",
		Usage: "scheduled jobs: subscription materialization and outbox retention",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run every job on the scheduler interval until interrupted",
				Action: serve,
			},
			{
				Name:  "run-subscription-batch",
				Usage: "materialize due subscriptions once",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "calendar date to run for (YYYY-MM-DD); defaults to today in the scheduler timezone",
					},
				},
				Action: runSubscriptionBatch,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	w, err := bootstrap()
	if err != nil {
		return err
	}
	defer w.closeFunc()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = w.logg.WithFields(ctx, map[string]any{
		"env":         w.cfg.App.Env,
		"serviceKind": w.cfg.Service.Kind,
		"instance":    instance.GetID(),
		"interval":    w.cfg.Scheduler.Interval.String(),
	})
	w.logg.Info(ctx, "starting cron worker")

	if err := w.service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return err
	}
	w.logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// runSubscriptionBatch fails only when the batch could not run at all;
// per-subscription failures are reported in the logs.
func runSubscriptionBatch(c *cli.Context) error {
	w, err := bootstrap()
	if err != nil {
		return err
	}
	defer w.closeFunc()

	ctx := w.logg.WithField(c.Context, "env", w.cfg.App.Env)
	if raw := c.String("date"); raw != "" {
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", raw, err)
		}
		return w.service.RunLocked(ctx, func() error {
			_, err := w.batch.RunFor(ctx, date)
			return err
		})
	}
	return w.service.RunJob(ctx, cron.SubscriptionBatchJobName)
}

func bootstrap() (*worker, error) {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.ForApp("cron-worker", cfg.App)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	closeFunc := func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}

	w, err := wire(cfg, logg, dbClient, redisClient, loc)
	if err != nil {
		closeFunc()
		return nil, err
	}
	w.closeFunc = closeFunc
	return w, nil
}

func wire(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, loc *time.Location) (*worker, error) {
	container, err := app.FromConfig(cfg, dbClient, metrics.NewCommerceMetrics(prometheus.DefaultRegisterer), logg)
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", err)
	}

	batch, err := cron.NewSubscriptionBatchJob(cron.SubscriptionBatchJobParams{
		Logger:       logg,
		Materializer: container.Materializer,
		Location:     loc,
	})
	if err != nil {
		return nil, fmt.Errorf("subscription batch job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: container.OutboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, lockName, cfg.Scheduler.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(batch, retention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Scheduler.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("cron service: %w", err)
	}
	return &worker{cfg: cfg, logg: logg, service: service, batch: batch}, nil
}
