package events

import (
	"context"
	"fmt"
	"sync"

	"jobgrid/common/errors"
	"jobgrid/services/loader/internal/config"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PostingLoader accepts raw crawled documents.
type PostingLoader interface {
	Load(ctx context.Context, raw []byte) error
}

// conn is the part of *nats.Conn the handler uses.
type conn interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
	SetClosedHandler(cb nats.ConnHandler)
	Drain() error
	Close()
}

type Handler struct {
	logger *zap.Logger
	nc     conn
	tracer trace.Tracer
	loader PostingLoader
	config *config.Config
	sub    *nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, tracer trace.Tracer, loader PostingLoader, config *config.Config) *Handler {
	return &Handler{
		logger: logger,
		nc:     nc,
		tracer: tracer,
		loader: loader,
		config: config,
	}
}

// RegisterSubscriptions subscribes the loader and, on stop, drains the
// connection before later stop hooks run. Hooks registered earlier, such
// as the loader's final flush, therefore see every delivered message.
func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	closed := make(chan struct{})
	var once sync.Once
	h.nc.SetClosedHandler(func(*nats.Conn) {
		once.Do(func() { close(closed) })
	})

	sub, err := h.nc.QueueSubscribe(h.config.Subject, h.config.QueueGroup, h.handleCrawledPosting)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", h.config.Subject, err)
	}

	h.sub = sub
	h.logger.Info("registered NATS subscriptions",
		zap.String("subject", h.config.Subject),
		zap.String("queue", h.config.QueueGroup))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.drain(ctx, closed)
		},
	})

	return nil
}

// drain stops delivery, lets in-flight handlers finish and waits for the
// connection to close. The connection is closed outright when ctx ends
// first.
func (h *Handler) drain(ctx context.Context, closed <-chan struct{}) error {
	h.logger.Info("draining NATS connection", zap.String("subject", h.config.Subject))
	if err := h.nc.Drain(); err != nil {
		h.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}

	select {
	case <-closed:
		h.logger.Info("NATS connection drained")
		return nil
	case <-ctx.Done():
		h.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", ctx.Err())
	}
}

func (h *Handler) handleCrawledPosting(msg *nats.Msg) {
	ctx, span := h.tracer.Start(context.Background(), "handleCrawledPosting")
	defer span.End()

	if err := h.loader.Load(ctx, msg.Data); err != nil {
		span.RecordError(err)
		level := h.logger.Error
		if errors.Is(err, errors.ErrTypeInvalidInput) {
			level = h.logger.Warn
		}
		level("failed to load crawled posting",
			zap.Error(err),
			zap.String("subject", msg.Subject),
			zap.Int("size", len(msg.Data)),
		)
		return
	}

	h.logger.Debug("queued crawled posting", zap.String("subject", msg.Subject))
}
