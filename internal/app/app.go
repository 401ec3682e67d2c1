// Package app wires configuration into the long-lived components shared by
// the server and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seatpack-sync/internal/config"
	"github.com/iliyamo/seatpack-sync/internal/database"
	"github.com/iliyamo/seatpack-sync/internal/lock"
	"github.com/iliyamo/seatpack-sync/internal/pos"
	"github.com/iliyamo/seatpack-sync/internal/queue"
	"github.com/iliyamo/seatpack-sync/internal/repository"
	"github.com/iliyamo/seatpack-sync/internal/seatpack"
	"github.com/iliyamo/seatpack-sync/internal/service"
)

// App holds the wired components.  Redis is nil when it was unreachable at
// startup.
type App struct {
	Config    config.Config
	Log       *zap.Logger
	DB        *sql.DB
	Redis     *redis.Client
	Store     *repository.Store
	POS       *pos.HTTPClient
	Sync      *service.SyncService
	Publisher *service.Publisher
}

// New opens the database, applies migrations and builds the pipeline.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &App{Config: cfg, Log: log, DB: db, Redis: config.LoadRedisConfig().Connect(ctx)}
	var locker lock.Locker
	if a.Redis != nil {
		locker = lock.NewRedisLocker(a.Redis, cfg.SyncLockTTL, cfg.SyncLockWait)
	} else {
		log.Warn("redis unavailable; sync lock is process-local")
		locker = lock.NewLocalLocker(cfg.SyncLockWait)
	}

	a.Store = repository.NewStore(db)
	a.POS = pos.NewHTTPClient(pos.Options{
		BaseURL: cfg.POS.BaseURL,
		Token:   cfg.POS.Token,
		Timeout: cfg.POS.Timeout,
		RPS:     cfg.POS.RPS,
		Burst:   cfg.POS.Burst,
		Logger:  log,
	})
	a.Sync = service.NewSyncService(a.Store, service.SyncOptions{
		IDPrefix:    cfg.IDPrefix,
		MaxAttempts: cfg.IDCollisionAttempts,
		Generators:  seatpack.NewRegistry(nil),
		Locker:      locker,
		Reconciler:  pos.NewReconciler(a.POS, a.Store, cfg.POS.Concurrency, log),
		Publisher:   queue.NewSummaryPublisher(cfg.AMQPURL, cfg.SyncQueue, log),
		Logger:      log,
	})
	a.Publisher = service.NewPublisher(a.Store, a.POS, log)
	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = a.DB.Close()
	_ = a.Log.Sync()
}

// RedisPinger adapts a Redis client to handler.Pinger.
type RedisPinger struct{ Client *redis.Client }

func (p RedisPinger) PingContext(ctx context.Context) error { return p.Client.Ping(ctx).Err() }
