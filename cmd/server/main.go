package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	blackoutservice "beacon/internal/blackout/service"
	escalationhandler "beacon/internal/escalation/handler"
	escalationservice "beacon/internal/escalation/service"
	isolationhandler "beacon/internal/isolation/handler"
	isolationmetrics "beacon/internal/isolation/metrics"
	isomodels "beacon/internal/isolation/models"
	isolationservice "beacon/internal/isolation/service"
	jwttoken "beacon/internal/jwt_token"
	legalhandler "beacon/internal/legal/handler"
	legalmetrics "beacon/internal/legal/metrics"
	legalservice "beacon/internal/legal/service"
	"beacon/internal/partner/credentials"
	"beacon/internal/partner/seed"
	partnerservice "beacon/internal/partner/service"
	"beacon/internal/platform/config"
	"beacon/internal/platform/httpserver"
	"beacon/internal/platform/logger"
	"beacon/internal/platform/metrics"
	ratelimitmetrics "beacon/internal/ratelimit/metrics"
	ratelimitmw "beacon/internal/ratelimit/middleware"
	ratelimitmodels "beacon/internal/ratelimit/models"
	ratelimitservice "beacon/internal/ratelimit/service"
	routinghandler "beacon/internal/routing/handler"
	routingmetrics "beacon/internal/routing/metrics"
	routingservice "beacon/internal/routing/service"
	"beacon/internal/routing/webhook"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/audit/publisher"
	"beacon/pkg/platform/circuit"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/metadata"
	request "beacon/pkg/platform/middleware/request"
)

// main wires configuration, stores and services, exposes the router, and
// owns the server lifecycle. Business logic lives in internal services.
func main() {
	cfg, err := config.FromEnv()
	log := logger.New(cfg.Log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()
	st := b.stores(log)

	auditPublisher := publisher.NewPublisher(st.audit,
		publisher.WithAsyncBuffer(cfg.Audit.AsyncBuffer),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
		publisher.WithOperationsSampler(publisher.NewSampler(cfg.Audit.OperationsSampleRate)),
	)
	defer auditPublisher.Close()

	hasher := credentials.NewHasher(0)
	partners, err := partnerservice.New(st.partners,
		partnerservice.WithLogger(log),
		partnerservice.WithAuditPublisher(auditPublisher),
		partnerservice.WithHasher(hasher),
	)
	if err != nil {
		return err
	}
	keys, err := seedPartners(ctx, cfg, partners, log)
	if err != nil {
		return err
	}

	blackouts, err := blackoutservice.New(st.blackouts,
		blackoutservice.WithLogger(log),
		blackoutservice.WithAuditPublisher(auditPublisher),
		blackoutservice.WithDefaultDuration(cfg.Blackout.DefaultDuration),
	)
	if err != nil {
		return err
	}

	routing, err := routingservice.New(st.results, partners, blackouts,
		webhook.New(webhook.WithTimeout(cfg.Routing.WebhookTimeout)), keys,
		routingservice.WithLogger(log),
		routingservice.WithAuditPublisher(auditPublisher),
		routingservice.WithMetrics(routingmetrics.New()),
		routingservice.WithPolicy(routingservice.PolicyFromConfig(cfg.Routing, cfg.Blackout)),
		routingservice.WithKeyVerifier(hasher),
		routingservice.WithBreakers(circuit.NewRegistry(
			circuit.WithFailureThreshold(cfg.Routing.BreakerFailures),
			circuit.WithOpenTimeout(cfg.Routing.BreakerOpenTimeout),
		)),
	)
	if err != nil {
		return err
	}

	escalations, err := escalationservice.New(st.escalations,
		escalationservice.WithLogger(log),
		escalationservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return err
	}

	anonymizer, err := isomodels.NewAnonymizer([]byte(cfg.Isolation.AnonymizationSecret))
	if err != nil {
		return err
	}
	isolation, err := isolationservice.New(st.isolated, anonymizer,
		isolationservice.WithLogger(log),
		isolationservice.WithAuditPublisher(auditPublisher),
		isolationservice.WithAuthorizer(legalservice.NewAuthorizer(st.legal)),
		isolationservice.WithTxRunner(st.tx),
		isolationservice.WithMetrics(isolationmetrics.New()),
	)
	if err != nil {
		return err
	}

	legal, err := legalservice.New(st.legal,
		legalservice.WithLogger(log),
		legalservice.WithAuditPublisher(auditPublisher),
		legalservice.WithTxRunner(st.tx),
		legalservice.WithIsolatedSignals(isolation),
		legalservice.WithMetrics(legalmetrics.New()),
	)
	if err != nil {
		return err
	}

	limiter, err := ratelimitservice.New(st.rateLimits,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(ratelimitmetrics.New()),
		ratelimitservice.WithLimit(ratelimitmodels.ClassClient,
			ratelimitmodels.Limit{Requests: cfg.RateLimit.ClientRequests, Window: cfg.RateLimit.Window}),
		ratelimitservice.WithLimit(ratelimitmodels.ClassPartner,
			ratelimitmodels.Limit{Requests: cfg.RateLimit.PartnerRequests, Window: cfg.RateLimit.Window}),
	)
	if err != nil {
		return err
	}

	jwtValidator := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(log))
	r.Use(request.Recovery(log))
	r.Use(metrics.NewHTTP().Middleware)
	r.Use(ratelimitmw.New(limiter, log, ratelimitmw.WithDisabled(cfg.RateLimit.Disabled)).Limit)

	r.Get("/health", healthHandler(b))
	r.Handle("/metrics", metrics.Handler())
	routinghandler.New(routing, log, jwtValidator, partners).Register(r)
	escalationhandler.New(escalations, log, jwtValidator, partners).Register(r)
	legalhandler.New(legal, log, jwtValidator).Register(r)
	isolationhandler.New(isolation, log, jwtValidator).Register(r)

	relay, err := b.outboxRelay(ctx, cfg, log)
	if err != nil {
		return err
	}
	if relay != nil {
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit outbox relay stopped", "error", err)
			}
		}()
	}

	srv := httpserver.New(cfg.Addr, r)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting beacon", "addr", cfg.Addr, "regulated_mode", cfg.RegulatedMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("beacon stopped")
	return nil
}

// seedPartners applies PARTNER_SEED_FILE and returns the outbound key ring.
// Keys are held in memory only; partners whose key is neither in the
// environment nor freshly generated cannot receive webhooks until re-seeded.
func seedPartners(ctx context.Context, cfg config.Server, partners *partnerservice.Service, log *slog.Logger) (*credentials.KeyRing, error) {
	ring := credentials.NewKeyRing()
	if cfg.PartnerSeedFile == "" {
		return ring, nil
	}
	f, err := seed.Load(cfg.PartnerSeedFile)
	if err != nil {
		return nil, err
	}
	reqs := f.Requests(os.Getenv)
	results, err := seed.Apply(ctx, partners, reqs)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		if req.APIKey != "" {
			ring.Put(id.PartnerID(req.ID), req.APIKey)
		}
	}
	for _, res := range results {
		if res.GeneratedKey != "" {
			ring.Put(id.PartnerID(res.PartnerID), res.GeneratedKey)
			log.Warn("partner registered with a generated key; distribute it out of band",
				"partner_id", res.PartnerID)
		}
	}
	log.Info("partner seed applied", "partners", len(results))
	return ring, nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

func healthHandler(b *backends) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if b.db != nil {
			resp.Postgres = "ok"
			if err := b.db.PingContext(ctx); err != nil {
				resp.Postgres, resp.Status, status = "unavailable", "degraded", http.StatusServiceUnavailable
			}
		}
		if b.redis != nil {
			resp.Redis = "ok"
			if err := b.redis.Health(ctx); err != nil {
				resp.Redis, resp.Status, status = "unavailable", "degraded", http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}
