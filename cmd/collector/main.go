// Command collector polls the odds dashboard, reconciles matches
// against in-memory stores and persists every delta.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/backup"
	"github.com/oddsline/collector/internal/clock/system"
	"github.com/oddsline/collector/internal/collector"
	"github.com/oddsline/collector/internal/config"
	"github.com/oddsline/collector/internal/database"
	"github.com/oddsline/collector/internal/failure"
	"github.com/oddsline/collector/internal/fetcher/headless"
	"github.com/oddsline/collector/internal/fetcher/static"
	"github.com/oddsline/collector/internal/health"
	"github.com/oddsline/collector/internal/logging"
	"github.com/oddsline/collector/internal/metrics"
	"github.com/oddsline/collector/internal/persist"
	"github.com/oddsline/collector/internal/poll"
	"github.com/oddsline/collector/internal/publisher"
	"github.com/oddsline/collector/internal/retention"
	"github.com/oddsline/collector/internal/source/xbet"
	"github.com/oddsline/collector/internal/status"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("collector exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	runID := uuid.NewString()[:8]
	clock := system.New()
	logger.Info("starting odds collector",
		zap.String("run_id", runID),
		zap.String("url", cfg.Collector.BaseURL),
	)

	db, err := newDBProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	pub, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closer, ok := pub.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	bak, err := newBackupProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer bak.Close()

	state := status.NewState(runID, clock.Now())
	srv := status.NewServer(state, clock, cfg.Interval(), logger.Named("status"))
	go func() {
		if err := srv.Listen(cfg.Server.Port); err != nil {
			logger.Error("status server failed", zap.Error(err))
		}
	}()

	persister, err := persist.New(cfg.Collector.DataDir, cfg.Collector.SnapshotEvery, clock, logger.Named("persist"))
	if err != nil {
		return err
	}

	loopCfg := poll.Config{
		RunID:           runID,
		BaseURL:         cfg.Collector.BaseURL,
		Interval:        cfg.Interval(),
		RetentionWindow: cfg.RetentionWindow(),
		KeepFiles:       cfg.Retention.KeepFiles,
		LeaguesEvery:    cfg.Collector.LeaguesEvery,
		RetentionEvery:  cfg.Collector.RetentionEvery,
		PingEvery:       cfg.Collector.PingEvery,
		GCEvery:         cfg.Collector.GCEvery,
		Topic:           cfg.PubSub.TopicName,
	}

	// Bounded restart loop. A crash inside an attempt burns one
	// restart; running out of restarts is fatal.
	for attempt := 0; ; attempt++ {
		err := runAttempt(ctx, cfg, loopCfg, poll.Deps{
			Source:    xbet.New(logger.Named("parser")),
			Persister: persister,
			Retention: retention.New(logger.Named("retention")),
			Failures:  failure.New(cfg.Collector.MaxConsecutiveFailures, cfg.FetcherMaxAge(), logger.Named("failure")),
			DB:        db,
			Publisher: pub,
			Backup:    bak,
			Pinger:    health.New(cfg.Health.PingURL, logger.Named("health")),
			State:     state,
			Clock:     clock,
			Logger:    logger.Named("poll"),
		})
		if ctx.Err() != nil {
			logger.Info("collector stopped", zap.String("run_id", runID))
			return nil
		}
		if err == nil {
			return nil
		}
		if attempt+1 >= cfg.Collector.MaxRestarts {
			return fmt.Errorf("restart budget exhausted after %d attempts: %w", attempt+1, err)
		}
		logger.Warn("collector crashed, restarting",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", cfg.RestartDelay()),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.RestartDelay()):
		}
	}
}

// runAttempt runs one poll loop with a fresh fetcher and converts a
// panic into an error so the restart loop can count it.
func runAttempt(ctx context.Context, cfg config.Config, loopCfg poll.Config, deps poll.Deps) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collector panicked: %v", r)
		}
	}()

	deps.Fetcher = newFetcher(cfg, deps.Clock, deps.Logger)
	defer deps.Fetcher.Close()

	return poll.New(loopCfg, deps).Run(ctx)
}

func newFetcher(cfg config.Config, clock collector.Clock, logger *zap.Logger) collector.Fetcher {
	if cfg.Fetcher.Headless {
		return headless.New(headless.Config{
			UserAgent:         cfg.Fetcher.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
		}, clock, logger)
	}
	return static.New(static.Config{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, clock)
}

func newDBProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (database.Provider, error) {
	switch cfg.DB.Provider {
	case "noop":
		return database.NoOp{}, nil
	case "postgres":
		return database.NewPostgres(ctx, cfg.DB.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown db.provider %q", cfg.DB.Provider)
	}
}

func newPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (collector.Publisher, error) {
	switch cfg.PubSub.Provider {
	case "noop":
		return publisher.NewMemory(), nil
	case "pubsub":
		return publisher.NewGooglePubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger)
	default:
		return nil, fmt.Errorf("unknown pubsub.provider %q", cfg.PubSub.Provider)
	}
}

func newBackupProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (backup.Provider, error) {
	switch cfg.Backup.Provider {
	case "noop":
		return backup.NoOp{}, nil
	case "gcs":
		return backup.NewGCS(ctx, cfg.Backup.GCSBucket, cfg.Backup.Prefix, logger)
	default:
		return nil, fmt.Errorf("unknown backup.provider %q", cfg.Backup.Provider)
	}
}
