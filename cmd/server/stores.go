package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	blackoutservice "beacon/internal/blackout/service"
	blackoutstore "beacon/internal/blackout/store"
	escalationservice "beacon/internal/escalation/service"
	escalationstore "beacon/internal/escalation/store"
	isolationservice "beacon/internal/isolation/service"
	isolationstore "beacon/internal/isolation/store"
	legalservice "beacon/internal/legal/service"
	legalstore "beacon/internal/legal/store"
	partnerservice "beacon/internal/partner/service"
	partnerstore "beacon/internal/partner/store"
	"beacon/internal/platform/config"
	"beacon/internal/platform/kafka"
	"beacon/internal/platform/postgres"
	"beacon/internal/platform/redis"
	ratelimitservice "beacon/internal/ratelimit/service"
	ratelimitstore "beacon/internal/ratelimit/store"
	routingservice "beacon/internal/routing/service"
	routingstore "beacon/internal/routing/store"
	audit "beacon/pkg/platform/audit"
	auditmemory "beacon/pkg/platform/audit/store/memory"
	auditpostgres "beacon/pkg/platform/audit/store/postgres"
	"beacon/pkg/platform/audit/worker"
	txcontext "beacon/pkg/platform/tx"
)

// backends holds the infrastructure clients. Each is nil when not
// configured, and stores fall back to memory.
type backends struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

func openBackends(ctx context.Context, cfg config.Server) (*backends, error) {
	b := &backends{}
	var err error
	if b.db, err = postgres.Open(ctx, cfg.Postgres); err != nil {
		return nil, err
	}
	if b.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		b.close()
		return nil, err
	}
	if b.kafka, err = kafka.NewClient(cfg.Kafka); err != nil {
		b.close()
		return nil, err
	}
	return b, nil
}

func (b *backends) close() {
	if b.kafka != nil {
		b.kafka.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

type stores struct {
	partners    partnerservice.Store
	blackouts   blackoutservice.Store
	results     routingservice.ResultStore
	escalations escalationservice.Store
	legal       legalservice.Store
	isolated    isolationservice.Store
	rateLimits  ratelimitservice.Store
	audit       audit.Store
	tx          txRunner
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func (b *backends) stores(logger *slog.Logger) stores {
	if b.db == nil {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		s := stores{
			partners:    partnerstore.NewInMemoryStore(),
			blackouts:   blackoutstore.NewInMemoryStore(),
			results:     routingstore.NewInMemoryStore(),
			escalations: escalationstore.NewInMemoryStore(),
			legal:       legalstore.NewInMemoryStore(),
			isolated:    isolationstore.NewInMemoryStore(),
			rateLimits:  ratelimitstore.NewInMemoryStore(),
			audit:       auditmemory.NewInMemoryStore(),
			tx:          txcontext.NoopRunner{},
		}
		if b.redis != nil {
			s.blackouts = blackoutstore.NewRedis(b.redis.Client)
			s.rateLimits = ratelimitstore.NewRedis(b.redis.Client)
		}
		return s
	}

	s := stores{
		partners:    partnerstore.NewPostgres(b.db),
		blackouts:   blackoutstore.NewPostgres(b.db),
		results:     routingstore.NewPostgres(b.db),
		escalations: escalationstore.NewPostgres(b.db),
		legal:       legalstore.NewPostgres(b.db),
		isolated:    isolationstore.NewPostgres(b.db),
		rateLimits:  ratelimitstore.NewInMemoryStore(),
		audit:       auditpostgres.New(b.db),
		tx:          txcontext.NewRunner(b.db),
	}
	if b.redis != nil {
		s.blackouts = blackoutstore.NewRedis(b.redis.Client)
		s.rateLimits = ratelimitstore.NewRedis(b.redis.Client)
	}
	return s
}

var auditCategories = []audit.EventCategory{
	audit.CategoryCompliance,
	audit.CategorySecurity,
	audit.CategoryOperations,
}

// outboxRelay returns nil unless both Postgres and Kafka are configured.
func (b *backends) outboxRelay(ctx context.Context, cfg config.Server, logger *slog.Logger) (*worker.OutboxRelay, error) {
	if b.db == nil || b.kafka == nil {
		return nil, nil
	}
	topics := make([]string, 0, len(auditCategories))
	for _, c := range auditCategories {
		topics = append(topics, worker.TopicFor(cfg.Kafka.TopicPrefix, string(c)))
	}
	if err := kafka.EnsureTopics(ctx, b.kafka, cfg.Kafka, topics...); err != nil {
		return nil, fmt.Errorf("bootstrap audit topics: %w", err)
	}
	return worker.NewOutboxRelay(b.db, worker.NewKafkaProducer(b.kafka), cfg.Kafka.TopicPrefix,
		worker.WithBatchSize(cfg.Audit.RelayBatchSize),
		worker.WithInterval(cfg.Audit.RelayInterval),
		worker.WithLogger(logger),
	), nil
}
