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

	"jobgrid/common/database"
	"jobgrid/common/telemetry"
	"jobgrid/services/api/internal/config"
	"jobgrid/services/api/internal/handler"
	"jobgrid/services/api/internal/store"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return zap.NewProduction()
}

func newClickHouseConnection(cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) (clickhouse.Conn, error) {
	db, err := database.New(context.Background(), database.Options{
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return db.Conn(), nil
}

func newLister(s *store.JobPostingStore) handler.Lister {
	return s
}

func newStatsReader(s *store.JobPostingStore) handler.StatsReader {
	return s
}

func registerTelemetry(cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) {
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, "api-service", cfg.OTLPEndpoint)
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
		Addr:         cfg.HTTPAddr,
		Handler:      http.TimeoutHandler(h.Router(), cfg.RequestTimeout, `{"detail":"request timed out"}`),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout + cfg.RequestTimeout/2,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("api service listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down api service")
			return srv.Shutdown(ctx)
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newClickHouseConnection,
			store.NewJobPostingStore,
			newLister,
			newStatsReader,
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
