// Package worker relays audit outbox rows to Kafka.
//
// Rows are claimed with FOR UPDATE SKIP LOCKED so several relay instances can
// run against the same database; a row is marked published only after the
// broker acknowledged it, giving at-least-once delivery.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Producer publishes one record and waits for the broker acknowledgement.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// TopicFor maps an audit category to its Kafka topic.
func TopicFor(prefix, category string) string {
	return prefix + "." + category
}

type OutboxRelay struct {
	db        *sql.DB
	producer  Producer
	logger    *slog.Logger
	prefix    string
	batchSize int
	interval  time.Duration
}

type Option func(*OutboxRelay)

func WithBatchSize(n int) Option {
	return func(r *OutboxRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *OutboxRelay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *OutboxRelay) {
		r.logger = logger
	}
}

func NewOutboxRelay(db *sql.DB, producer Producer, topicPrefix string, opts ...Option) *OutboxRelay {
	r := &OutboxRelay{
		db:        db,
		producer:  producer,
		prefix:    topicPrefix,
		batchSize: 100,
		interval:  time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := r.RelayBatch(ctx)
			if err != nil && r.logger != nil {
				r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
			}
			if n > 0 && r.logger != nil {
				r.logger.DebugContext(ctx, "outbox relay published", "count", n)
			}
		}
	}
}

type outboxRow struct {
	id        string
	category  string
	aggregate string
	payload   []byte
}

// RelayBatch publishes up to batchSize pending rows and returns how many were marked published.
func (r *OutboxRelay) RelayBatch(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox rows: %w", err)
	}
	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.category, &row.aggregate, &row.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	published := make([]string, 0, len(batch))
	for _, row := range batch {
		topic := TopicFor(r.prefix, row.category)
		if err := r.producer.Produce(ctx, topic, []byte(row.aggregate), row.payload); err != nil {
			// Stop at the first failure so ordering per aggregate is preserved.
			if r.logger != nil {
				r.logger.WarnContext(ctx, "outbox produce failed", "topic", topic, "error", err)
			}
			break
		}
		published = append(published, row.id)
	}
	if len(published) == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)`, pq.Array(published)); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}
	return len(published), nil
}
