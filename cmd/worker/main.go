// Sync worker: drains the sync-job queue and replays analytics, triggers and
// view fan-out for each touched poll.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/agoradev/agora/internal/app/ledger"
	"github.com/agoradev/agora/internal/app/view"
	"github.com/agoradev/agora/internal/app/worker"
	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/clock"
	"github.com/agoradev/agora/internal/platform/config"
	"github.com/agoradev/agora/internal/platform/health"
	"github.com/agoradev/agora/internal/platform/ids"
	"github.com/agoradev/agora/internal/platform/logger"
	"github.com/agoradev/agora/internal/platform/migrations"
	"github.com/agoradev/agora/internal/platform/permission"
	"github.com/agoradev/agora/internal/platform/presenter"
	postgresstorage "github.com/agoradev/agora/internal/platform/storage/postgres"
	redisstorage "github.com/agoradev/agora/internal/platform/storage/redis"
	"github.com/agoradev/agora/internal/platform/throttle"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	// Same GORM connection setup as the API so both binaries share schema and
	// migration state.
	db, err := postgresstorage.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("postgres connection failed", "err", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("unwrapping sql.DB failed", "err", err)
	}
	defer sqlDB.Close()

	if cfg.AutoMigrate {
		if err := migrations.Run(db); err != nil {
			logger.Fatal("automatic migration failed", "err", err)
		}
	}

	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connection failed", "err", err)
	}
	defer redisClient.Close()

	queue := redisstorage.NewSyncQueue(redisClient, cfg.SyncQueueKey)
	outbox := redisstorage.NewNotificationOutbox(redisClient, cfg.NotificationStream)
	clockSystem := clock.NewSystemClock()
	checker := health.NewChecker(sqlDB, redisClient)

	if cfg.WorkerMetricsAddress != "" {
		go func() {
			// Metrics stay up while the main goroutine blocks on the queue.
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/readyz", checker.ReadyHandler())
			logger.Info("worker metrics listening", "addr", cfg.WorkerMetricsAddress)
			if err := http.ListenAndServe(cfg.WorkerMetricsAddress, mux); err != nil {
				logger.Error("worker metrics server error", "err", err)
			}
		}()
	}

	pollRepo := postgresstorage.NewPollRepository(db)
	optionRepo := postgresstorage.NewOptionRepository(db)
	voteRepo := postgresstorage.NewVoteRepository(db)
	replicaRepo := postgresstorage.NewReplicaRepository(db)
	snapshotRepo := postgresstorage.NewSnapshotRepository(db)
	scheduleRepo := postgresstorage.NewScheduleRepository(db)
	roleRepo := postgresstorage.NewRoleRepository(db)
	counter := redisstorage.NewCounter(redisClient, cfg.CounterKeyPrefix)

	fanout := view.NewFanout(
		pollRepo,
		replicaRepo,
		presenter.NewLog(logger.L()),
		clockSystem,
		logger.L(),
		cfg.SyncPushTimeout,
		cfg.SyncMaxConcurrency,
	)
	processor := worker.NewSyncProcessor(
		pollRepo,
		voteRepo,
		snapshotRepo,
		outbox,
		fanout,
		clockSystem,
		logger.L(),
	)

	// The scheduler drives auto-ends through the same ledger service the API
	// uses, so permissions and the ended sync job behave identically.
	service := ledger.NewService(
		pollRepo,
		optionRepo,
		voteRepo,
		replicaRepo,
		snapshotRepo,
		scheduleRepo,
		queue,
		counter,
		permission.NewRoleChecker(roleRepo),
		throttle.NewNoop(),
		clockSystem,
		ids.NewGenerator(),
		logger.L(),
	)
	scheduler := worker.NewScheduler(scheduleRepo, service, clockSystem, logger.L(), cfg.SchedulerInterval)

	logger.Info("worker started, waiting for sync jobs")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Consume(gctx, func(ctx context.Context, job domain.SyncJob) error {
			// One job at a time keeps the queue semantics simple; a failed job
			// is logged and dropped rather than wedging the loop.
			if err := processor.Process(ctx, job); err != nil {
				logger.Error("sync job failed", "poll", job.PollID, "cause", job.Cause, "err", err)
			}
			return nil
		})
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	err = g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Fatal("worker stopped with error", "err", err)
	}

	logger.Info("worker stopped")
}
