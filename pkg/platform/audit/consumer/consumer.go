// Package consumer reads relayed audit events back off the per-category
// Kafka topics. beaconctl uses it to tail the audit stream; downstream
// retention sinks can register their own handlers on a Router.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one Kafka record, detached from the client.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Partition int32
	Offset    int64
}

type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Poller is satisfied by *kgo.Client.
type Poller interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

type Consumer struct {
	poller  Poller
	handler Handler
	logger  *slog.Logger
}

func New(poller Poller, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{poller: poller, handler: handler, logger: logger}
}

// ErrStop may be returned by a handler to end Run without an error.
var ErrStop = errors.New("stop consuming")

// Run polls until ctx is done, the client closes, or a handler fails.
// Partition fetch errors are logged and polling continues.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches := c.poller.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		for _, fe := range fetches.Errors() {
			if errors.Is(fe.Err, context.Canceled) || errors.Is(fe.Err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			if c.logger != nil {
				c.logger.WarnContext(ctx, "audit fetch error",
					"topic", fe.Topic,
					"partition", fe.Partition,
					"error", fe.Err,
				)
			}
		}

		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = c.handler.Handle(ctx, &Message{
				Topic:     r.Topic,
				Key:       r.Key,
				Value:     r.Value,
				Timestamp: r.Timestamp,
				Partition: r.Partition,
				Offset:    r.Offset,
			})
		})
		if errors.Is(handleErr, ErrStop) {
			return nil
		}
		if handleErr != nil {
			return handleErr
		}
	}
}
