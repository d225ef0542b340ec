package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"jobgrid/common/database"
	"jobgrid/common/database/schema"
	"jobgrid/common/database/schema/migrations"

	"go.uber.org/zap"
)

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func main() {
	down := flag.Int("down", 0, "Roll back the migration with this version instead of migrating up")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.Options{
		DSN:      envOr("CLICKHOUSE_DSN", "127.0.0.1:9000"),
		Database: envOr("CLICKHOUSE_DATABASE", "jobgrid"),
		Username: envOr("CLICKHOUSE_USERNAME", "default"),
		Password: envOr("CLICKHOUSE_PASSWORD", ""),
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to clickhouse", zap.Error(err))
	}
	defer db.Close()

	migrator := schema.NewMigrator(db.Conn(), logger)

	if *down > 0 {
		for _, migration := range migrations.All {
			if migration.Version != *down {
				continue
			}
			if err := migrator.RollbackMigration(ctx, migration); err != nil {
				logger.Fatal("failed to roll back migration", zap.Int("version", migration.Version), zap.Error(err))
			}
			logger.Info("rolled back migration", zap.Int("version", migration.Version))
			return
		}
		logger.Fatal("unknown migration version", zap.Int("version", *down))
	}

	count, err := migrator.Migrate(ctx, migrations.All)
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("all migrations completed successfully", zap.Int("applied", count))
}
