package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Bus publishes and receives page events on a core NATS connection. Every
// API instance receives every event; delivery is at most once.
type Bus struct {
	nc *nats.Conn
	// origin tags events from this process so they can be skipped on receipt.
	origin string
	logger *zap.Logger
}

// Connect dials NATS. origin identifies this process.
func Connect(url, origin string, logger *zap.Logger) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("plura-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{nc: nc, origin: origin, logger: logger}, nil
}

func (b *Bus) PublishPageChanged(ctx context.Context, event PageChanged) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Origin = b.origin
	data, err := Encode(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.nc.Publish(event.Subject(), data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", event.Subject(), err)
	}
	return nil
}

// Subscribe delivers page events published by other processes to handler.
func (b *Bus) Subscribe(handler Handler) (func() error, error) {
	sub, err := b.nc.Subscribe(SubjectPrefix+">", func(msg *nats.Msg) {
		b.dispatch(msg.Data, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s>: %w", SubjectPrefix, err)
	}
	b.logger.Info("subscribed to page events", zap.String("subject", SubjectPrefix+">"))
	return sub.Unsubscribe, nil
}

func (b *Bus) dispatch(data []byte, handler Handler) {
	event, err := Decode(data)
	if err != nil {
		b.logger.Warn("dropping page event", zap.Error(err))
		return
	}
	if event.Origin != "" && event.Origin == b.origin {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := handler(ctx, event); err != nil {
		b.logger.Error("page event handler failed",
			zap.String("type", string(event.Type)),
			zap.String("page_id", event.PageID),
			zap.Error(err),
		)
	}
}

// Close drains pending messages and closes the connection.
func (b *Bus) Close() {
	if b.nc == nil {
		return
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}
