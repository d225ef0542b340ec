package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobgrid/services/ingestion/internal/config"
	"jobgrid/services/ingestion/internal/crawler"
	"jobgrid/services/ingestion/internal/messaging"
	"jobgrid/services/ingestion/internal/replay"

	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "JSON-lines file of crawled postings")
	crawl := flag.Bool("crawl", false, "crawl the job site instead of replaying a file")
	workers := flag.Int("workers", 0, "publishing goroutines (default REPLAY_WORKERS)")
	quiet := flag.Bool("quiet", false, "hide the progress bar")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if *file == "" && !*crawl {
		logger.Fatal("-file or -crawl is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	if *crawl {
		runCrawl(logger, cfg)
		return
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal("failed to open replay file", zap.String("file", *file), zap.Error(err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		logger.Fatal("failed to stat replay file", zap.Error(err))
	}

	publisher, err := messaging.NewPublisher(logger, cfg)
	if err != nil {
		logger.Fatal("failed to create NATS publisher", zap.Error(err))
	}
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting replay",
		zap.String("file", *file),
		zap.Int64("bytes", info.Size()),
		zap.String("subject", cfg.Subject),
		zap.Int("workers", cfg.Workers))

	var reader io.Reader = f
	finish := func() {}
	if !*quiet {
		reader, finish = replay.WithProgress(f, info.Size(), os.Stderr)
	}

	stats, err := replay.New(logger, publisher, cfg.Workers, cfg.MaxLineBytes).Run(ctx, reader)
	finish()
	if err != nil {
		logger.Error("replay stopped", zap.Error(err))
	}

	// FlushWithContext needs a deadline.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.Flush(flushCtx); err != nil {
		logger.Error("failed to flush publisher", zap.Error(err))
	}

	logger.Info("replay complete",
		zap.Int32("published", stats.Published),
		zap.Int32("skipped", stats.Skipped),
		zap.Int32("failed", stats.Failed))
}

func runCrawl(logger *zap.Logger, cfg *config.Config) {
	publisher, err := messaging.NewPublisher(logger, cfg)
	if err != nil {
		logger.Fatal("failed to create NATS publisher", zap.Error(err))
	}
	defer publisher.Close()

	c, err := crawler.New(logger, &http.Client{Timeout: cfg.CrawlTimeout}, publisher, cfg)
	if err != nil {
		logger.Fatal("failed to create crawler", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting crawl",
		zap.String("base_url", cfg.CrawlBaseURL),
		zap.Int("pages", cfg.CrawlPages),
		zap.String("subject", cfg.Subject))

	stats, err := c.Run(ctx)
	if err != nil {
		logger.Error("crawl stopped", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.Flush(flushCtx); err != nil {
		logger.Error("failed to flush publisher", zap.Error(err))
	}

	logger.Info("crawl complete",
		zap.Int("found", stats.Found),
		zap.Int("published", stats.Published),
		zap.Int("failed", stats.Failed))
}
