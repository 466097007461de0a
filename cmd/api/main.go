// API binary: loads configuration, wires the ledger service and serves HTTP.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agoradev/agora/internal/app/httpapi"
	"github.com/agoradev/agora/internal/app/ledger"
	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/clock"
	"github.com/agoradev/agora/internal/platform/config"
	"github.com/agoradev/agora/internal/platform/health"
	"github.com/agoradev/agora/internal/platform/ids"
	"github.com/agoradev/agora/internal/platform/logger"
	"github.com/agoradev/agora/internal/platform/migrations"
	"github.com/agoradev/agora/internal/platform/permission"
	"github.com/agoradev/agora/internal/platform/throttle"
	postgresstorage "github.com/agoradev/agora/internal/platform/storage/postgres"
	redisstorage "github.com/agoradev/agora/internal/platform/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	// The GORM connection is shared across the whole lifecycle: pool reuse plus
	// the readiness check ping the same instance.
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

	// Redis carries the sync queue, hot tallies and the vote throttle.
	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connection failed", "err", err)
	}
	defer redisClient.Close()

	pollRepo := postgresstorage.NewPollRepository(db)
	optionRepo := postgresstorage.NewOptionRepository(db)
	voteRepo := postgresstorage.NewVoteRepository(db)
	replicaRepo := postgresstorage.NewReplicaRepository(db)
	snapshotRepo := postgresstorage.NewSnapshotRepository(db)
	scheduleRepo := postgresstorage.NewScheduleRepository(db)
	roleRepo := postgresstorage.NewRoleRepository(db)
	counter := redisstorage.NewCounter(redisClient, cfg.CounterKeyPrefix)
	queue := redisstorage.NewSyncQueue(redisClient, cfg.SyncQueueKey)
	clockSystem := clock.NewSystemClock()
	idGen := ids.NewGenerator()

	var voteThrottle domain.Throttle = throttle.NewNoop()
	if cfg.ThrottleEnabled {
		window := time.Duration(cfg.ThrottleWindowSeconds) * time.Second
		voteThrottle = throttle.NewRedisThrottle(redisClient, cfg.ThrottleMaxVotes, window, cfg.ThrottleKeyPrefix)
	}

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
		voteThrottle,
		clockSystem,
		idGen,
		logger.L(),
	)

	mux := http.NewServeMux()
	checker := health.NewChecker(sqlDB, redisClient)

	api := httpapi.New(service, clockSystem, logger.L())
	api.Register(mux)
	mux.HandleFunc("/readyz", checker.ReadyHandler())
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("api listening", "addr", cfg.HTTPAddress)
	if err := http.ListenAndServe(cfg.HTTPAddress, mux); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
