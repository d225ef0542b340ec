package messaging

import (
	"context"
	"time"

	"jobgrid/common/errors"
	"jobgrid/common/telemetry"
	"jobgrid/services/ingestion/internal/config"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobgrid/ingestion/messaging")

type Publisher interface {
	Publish(ctx context.Context, data []byte) error
	Flush(ctx context.Context) error
	Close()
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

type natsPublisher struct {
	conn    conn
	subject string
	logger  *zap.Logger
}

func NewPublisher(logger *zap.Logger, config *config.Config) (Publisher, error) {
	opts := []nats.Option{
		nats.Name("ingestion-replay"),
		nats.Timeout(config.NATSConnTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	nc, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, errors.Unavailable("connecting to NATS", err)
	}

	return newPublisher(logger, nc, config.Subject), nil
}

func newPublisher(logger *zap.Logger, c conn, subject string) *natsPublisher {
	return &natsPublisher{
		conn:    c,
		subject: subject,
		logger:  logger,
	}
}

func (p *natsPublisher) Publish(ctx context.Context, data []byte) error {
	_, span := tracer.Start(ctx, "Publish")
	defer span.End()

	span.SetAttributes(
		telemetry.String("nats.subject", p.subject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.conn.Publish(p.subject, data); err != nil {
		span.RecordError(err)
		p.logger.Error("failed to publish crawled posting",
			zap.String("subject", p.subject),
			zap.Error(err))
		return errors.Unavailable("publishing to NATS", err)
	}
	return nil
}

// Flush waits until the server has acknowledged everything published so far.
// ctx must carry a deadline.
func (p *natsPublisher) Flush(ctx context.Context) error {
	if err := p.conn.FlushWithContext(ctx); err != nil {
		p.logger.Error("failed to flush NATS connection", zap.Error(err))
		return errors.Unavailable("flushing NATS connection", err)
	}
	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
