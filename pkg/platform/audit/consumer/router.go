package consumer

import (
	"context"
	"log/slog"

	audit "beacon/pkg/platform/audit"
)

// Router dispatches messages by topic. Messages on unregistered topics go to
// the fallback, or are skipped when there is none.
type Router struct {
	handlers map[string]Handler
	fallback Handler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger, fallback Handler) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		fallback: fallback,
		logger:   logger,
	}
}

func (r *Router) Register(topic string, handler Handler) {
	r.handlers[topic] = handler
}

func (r *Router) Handle(ctx context.Context, msg *Message) error {
	handler, ok := r.handlers[msg.Topic]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, msg)
		}
		if r.logger != nil {
			r.logger.WarnContext(ctx, "no handler for audit topic", "topic", msg.Topic)
		}
		return nil
	}
	return handler.Handle(ctx, msg)
}

// Events decodes each message into an audit.Event before calling fn.
// Undecodable payloads are logged and skipped so one bad record cannot wedge
// a partition.
func Events(fn func(ctx context.Context, eventID string, e audit.Event) error, logger *slog.Logger) Handler {
	return HandlerFunc(func(ctx context.Context, msg *Message) error {
		eventID, e, err := audit.DecodeEnvelope(msg.Value)
		if err != nil {
			if logger != nil {
				logger.WarnContext(ctx, "skipping undecodable audit record",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
			return nil
		}
		return fn(ctx, eventID, e)
	})
}
