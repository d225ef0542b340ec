package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Username        string
	Password        string
	Database        string
}

type Database struct {
	conn   clickhouse.Conn
	logger *zap.Logger
}

// clickhouseOptions accepts either a bare host:port list ("a:9000,b:9000")
// or a full clickhouse:// DSN. Explicit credentials override the DSN's.
func clickhouseOptions(opts Options) (*clickhouse.Options, error) {
	var chOpts *clickhouse.Options
	if strings.Contains(opts.DSN, "://") {
		parsed, err := clickhouse.ParseDSN(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to parse clickhouse dsn: %w", err)
		}
		chOpts = parsed
	} else {
		hosts := strings.Split(strings.Split(opts.DSN, "?")[0], ",")
		chOpts = &clickhouse.Options{
			Protocol:    clickhouse.Native,
			Addr:        hosts,
			DialTimeout: time.Second * 30,
		}
	}

	if chOpts.Settings == nil {
		chOpts.Settings = clickhouse.Settings{}
	}
	if _, ok := chOpts.Settings["max_execution_time"]; !ok {
		chOpts.Settings["max_execution_time"] = 60
	}
	if opts.Database != "" {
		chOpts.Auth.Database = opts.Database
	}
	if opts.Username != "" {
		chOpts.Auth.Username = opts.Username
	}
	if opts.Password != "" {
		chOpts.Auth.Password = opts.Password
	}
	if opts.MaxOpenConns > 0 {
		chOpts.MaxOpenConns = opts.MaxOpenConns
	}
	if opts.MaxIdleConns > 0 {
		chOpts.MaxIdleConns = opts.MaxIdleConns
	}
	if opts.ConnMaxLifetime > 0 {
		chOpts.ConnMaxLifetime = opts.ConnMaxLifetime
	}
	return chOpts, nil
}

func New(ctx context.Context, opts Options, logger *zap.Logger) (*Database, error) {
	chOpts, err := clickhouseOptions(opts)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.Info("connected to clickhouse",
		zap.Strings("addr", chOpts.Addr),
		zap.String("database", chOpts.Auth.Database))

	return &Database{
		conn:   conn,
		logger: logger,
	}, nil
}

func (db *Database) Close() error {
	return db.conn.Close()
}

func (db *Database) Conn() clickhouse.Conn {
	return db.conn
}
