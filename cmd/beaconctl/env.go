package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	blackoutservice "beacon/internal/blackout/service"
	blackoutstore "beacon/internal/blackout/store"
	isomodels "beacon/internal/isolation/models"
	isolationservice "beacon/internal/isolation/service"
	isolationstore "beacon/internal/isolation/store"
	legalservice "beacon/internal/legal/service"
	legalstore "beacon/internal/legal/store"
	"beacon/internal/partner/credentials"
	partnerservice "beacon/internal/partner/service"
	partnerstore "beacon/internal/partner/store"
	"beacon/internal/platform/config"
	"beacon/internal/platform/logger"
	"beacon/internal/platform/postgres"
	"beacon/internal/platform/redis"
	audit "beacon/pkg/platform/audit"
	auditmemory "beacon/pkg/platform/audit/store/memory"
	auditpostgres "beacon/pkg/platform/audit/store/postgres"
	"beacon/pkg/platform/audit/publisher"
	txcontext "beacon/pkg/platform/tx"
)

// env is the per-invocation wiring. Audit events from CLI actions go to the
// same store the server uses, so the outbox relay picks them up.
type env struct {
	cfg   config.Server
	log   *slog.Logger
	db    *sql.DB
	redis *redis.Client
	audit *publisher.Publisher
}

func (c *cli) openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	e := &env{cfg: cfg, log: logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log)}
	if e.db, err = postgres.Open(ctx, cfg.Postgres); err != nil {
		return nil, err
	}
	if e.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		e.close()
		return nil, err
	}
	if e.db == nil {
		e.log.Warn("DATABASE_URL not set; running against empty in-memory stores")
	}

	var store audit.Store = auditmemory.NewInMemoryStore()
	if e.db != nil {
		store = auditpostgres.New(e.db)
	}
	e.audit = publisher.NewPublisher(store, publisher.WithLogger(e.log))
	return e, nil
}

func (e *env) close() {
	if e.audit != nil {
		e.audit.Close()
	}
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
}

func (e *env) partners() (*partnerservice.Service, error) {
	var st partnerservice.Store = partnerstore.NewInMemoryStore()
	if e.db != nil {
		st = partnerstore.NewPostgres(e.db)
	}
	return partnerservice.New(st,
		partnerservice.WithLogger(e.log),
		partnerservice.WithAuditPublisher(e.audit),
		partnerservice.WithHasher(credentials.NewHasher(0)),
	)
}

func (e *env) blackouts() (*blackoutservice.Service, error) {
	var st blackoutservice.Store = blackoutstore.NewInMemoryStore()
	switch {
	case e.redis != nil:
		st = blackoutstore.NewRedis(e.redis.Client)
	case e.db != nil:
		st = blackoutstore.NewPostgres(e.db)
	}
	return blackoutservice.New(st,
		blackoutservice.WithLogger(e.log),
		blackoutservice.WithAuditPublisher(e.audit),
		blackoutservice.WithDefaultDuration(e.cfg.Blackout.DefaultDuration),
	)
}

func (e *env) legalStore() legalservice.Store {
	if e.db != nil {
		return legalstore.NewPostgres(e.db)
	}
	return legalstore.NewInMemoryStore()
}

func (e *env) isolation(legal legalservice.Store) (*isolationservice.Service, error) {
	anonymizer, err := isomodels.NewAnonymizer([]byte(e.cfg.Isolation.AnonymizationSecret))
	if err != nil {
		return nil, err
	}
	var st isolationservice.Store = isolationstore.NewInMemoryStore()
	if e.db != nil {
		st = isolationstore.NewPostgres(e.db)
	}
	opts := []isolationservice.Option{
		isolationservice.WithLogger(e.log),
		isolationservice.WithAuditPublisher(e.audit),
		isolationservice.WithAuthorizer(legalservice.NewAuthorizer(legal)),
	}
	if e.db != nil {
		opts = append(opts, isolationservice.WithTxRunner(txcontext.NewRunner(e.db)))
	}
	return isolationservice.New(st, anonymizer, opts...)
}

func (e *env) legal() (*legalservice.Service, error) {
	st := e.legalStore()
	isolation, err := e.isolation(st)
	if err != nil {
		return nil, err
	}
	opts := []legalservice.Option{
		legalservice.WithLogger(e.log),
		legalservice.WithAuditPublisher(e.audit),
		legalservice.WithIsolatedSignals(isolation),
	}
	if e.db != nil {
		opts = append(opts, legalservice.WithTxRunner(txcontext.NewRunner(e.db)))
	}
	return legalservice.New(st, opts...)
}

// withEnv opens the environment for the duration of fn.
func (c *cli) withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	e, err := c.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, e)
}
