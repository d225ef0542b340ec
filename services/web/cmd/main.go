package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"jobgrid/common/cache"
	"jobgrid/common/cache/memory"
	"jobgrid/common/cache/redis"
	"jobgrid/common/telemetry"
	"jobgrid/services/web/internal/client"
	"jobgrid/services/web/internal/config"
	"jobgrid/services/web/internal/grid"
	"jobgrid/services/web/internal/handler"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return zap.NewProduction()
}

func newCache(cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) cache.Cache {
	opts := cache.Options{
		RedisURL:        cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisDB:         cfg.RedisDB,
		DefaultTTL:      cfg.CacheTTL,
		CleanupInterval: cache.DefaultOptions().CleanupInterval,
	}

	var c cache.Cache
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, using in-memory cache")
		c = memory.New(opts)
	} else {
		c = redis.New(opts)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c
}

func newGridSource(cfg *config.Config, logger *zap.Logger) grid.Source {
	return grid.NewHTTPSource(cfg.SelfBaseURL, &http.Client{Timeout: cfg.RequestTimeout}, logger)
}

func registerTelemetry(cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) {
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, "web-service", cfg.OTLPEndpoint)
			if err != nil {
				logger.Warn("tracing disabled", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

func registerServer(cfg *config.Config, h *handler.Handler, logger *zap.Logger, lc fx.Lifecycle) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("web service listening",
				zap.String("addr", srv.Addr),
				zap.String("api_service", cfg.APIServiceBaseURL))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down web service")
			return srv.Shutdown(ctx)
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newCache,
			client.NewJobPostingClient,
			newGridSource,
			handler.NewHandler,
		),
		fx.Invoke(
			registerTelemetry,
			registerServer,
		),
	)

	startCtx := context.Background()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	stopCtx := context.Background()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatal(err)
	}
}
