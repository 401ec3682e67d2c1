package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seatpack-sync/internal/app"
	"github.com/iliyamo/seatpack-sync/internal/config"
	"github.com/iliyamo/seatpack-sync/internal/handler"
	"github.com/iliyamo/seatpack-sync/internal/logging"
	"github.com/iliyamo/seatpack-sync/internal/middleware"
	"github.com/iliyamo/seatpack-sync/internal/queue"
	"github.com/iliyamo/seatpack-sync/internal/router"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Development: cfg.Env == "dev"})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	deps := map[string]handler.Pinger{"mysql": a.DB}
	if a.Redis != nil {
		deps["redis"] = app.RedisPinger{Client: a.Redis}
	}

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, handler.Ready(deps))
	router.RegisterAPI(e, router.API{
		Scrapes: handler.NewScrapeHandler(a.Sync, 0, logger),
		Packs:   handler.NewPackHandler(a.Store),
		Publish: handler.NewPublishHandler(a.Publisher, cfg.PublishBatch),
	}, cfg.JWTSecret, router.Extras{
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.Redis, logger),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), a.Redis),
	})

	consumer := queue.NewConsumer(queue.ConsumerOptions{
		URL:    cfg.AMQPURL,
		Queue:  cfg.ScrapeQueue,
		Logger: logger,
	}, queue.SnapshotHandler(a.Sync))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
