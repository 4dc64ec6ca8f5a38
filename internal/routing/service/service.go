package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	bmodels "beacon/internal/blackout/models"
	"beacon/internal/jurisdiction"
	"beacon/internal/partner/credentials"
	pmodels "beacon/internal/partner/models"
	"beacon/internal/payload"
	"beacon/internal/platform/tracing"
	"beacon/internal/routing/metrics"
	"beacon/internal/routing/models"
	"beacon/internal/routing/webhook"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/circuit"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

type ResultStore interface {
	Create(ctx context.Context, r *models.Result) error
	Update(ctx context.Context, r *models.Result) error
	FindByID(ctx context.Context, resultID id.ResultID) (*models.Result, error)
	ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.Result, error)
	ListFailed(ctx context.Context) ([]*models.Result, error)
}

type PartnerDirectory interface {
	SelectPartners(ctx context.Context, p *payload.SignalRoutingPayload, required []pmodels.Capability) ([]*pmodels.Partner, error)
	Get(ctx context.Context, partnerID id.PartnerID) (*pmodels.Partner, error)
	ReportingCapability(ctx context.Context, partnerID id.PartnerID) (*pmodels.MandatoryReportingCapability, error)
}

// Blackouts is the admission gate. Start must be a create-if-absent write.
// Release ends a window opened by a Route that recorded no results.
type Blackouts interface {
	Start(ctx context.Context, signalID id.SignalID, d time.Duration) (*bmodels.Record, bool, error)
	Extend(ctx context.Context, signalID id.SignalID, by id.PartnerID, d time.Duration) (*bmodels.Record, error)
	Release(ctx context.Context, signalID id.SignalID, reason string) error
}

type Webhook interface {
	Deliver(ctx context.Context, d webhook.Delivery) (*webhook.Ack, error)
}

// CredentialSource resolves the raw outbound key for a partner.
type CredentialSource interface {
	PartnerCredential(ctx context.Context, partnerID id.PartnerID) (string, error)
}

type KeyVerifier interface {
	Verify(key, hash string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

var errCircuitOpen = errors.New("circuit open")

// Service is the routing engine.
type Service struct {
	results   ResultStore
	partners  PartnerDirectory
	blackouts Blackouts
	webhook   Webhook
	creds     CredentialSource

	verifier       KeyVerifier
	breakers       *circuit.Registry
	policy         Policy
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	sleep          func(ctx context.Context, d time.Duration)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithBreakers(r *circuit.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.breakers = r
		}
	}
}

func WithKeyVerifier(v KeyVerifier) Option {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

func withSleep(fn func(ctx context.Context, d time.Duration)) Option {
	return func(s *Service) {
		s.sleep = fn
	}
}

func New(results ResultStore, partners PartnerDirectory, blackouts Blackouts, hook Webhook, creds CredentialSource, opts ...Option) (*Service, error) {
	if results == nil {
		return nil, errors.New("routing result store is required")
	}
	if partners == nil {
		return nil, errors.New("partner directory is required")
	}
	if blackouts == nil {
		return nil, errors.New("blackout controller is required")
	}
	if hook == nil {
		return nil, errors.New("webhook client is required")
	}
	if creds == nil {
		return nil, errors.New("credential source is required")
	}
	s := &Service{
		results:   results,
		partners:  partners,
		blackouts: blackouts,
		webhook:   hook,
		creds:     creds,
		verifier:  credentials.NewHasher(0),
		breakers:  circuit.NewRegistry(),
		policy:    DefaultPolicy(),
		tracer:    tracing.Tracer("routing"),
		sleep:     sleepTimer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.MaxAttempts < 1 {
		s.policy.MaxAttempts = 1
	}
	if s.policy.MaxConcurrency < 1 {
		s.policy.MaxConcurrency = 1
	}
	return s, nil
}

// Route delivers the signal to every eligible partner. While a blackout is
// active the call is a no-op returning the results already recorded for the
// signal. Transport failures are recorded on the results, never returned.
// The window is held only once results exist: a selection or store failure,
// or no eligible partner, releases it so the signal can be routed again.
func (s *Service) Route(ctx context.Context, p *payload.SignalRoutingPayload, required ...pmodels.Capability) ([]*models.Result, error) {
	if p == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "payload is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "routing.Route", trace.WithAttributes(
		attribute.String("signal.id", p.SignalID.String()),
		attribute.String("signal.jurisdiction", p.Jurisdiction),
	))
	defer span.End()

	_, started, err := s.blackouts.Start(ctx, p.SignalID, 0)
	if err != nil {
		span.SetStatus(codes.Error, "blackout gate failed")
		return nil, err
	}
	if !started {
		span.SetAttributes(attribute.Bool("routing.suppressed", true))
		s.metrics.IncSuppressed()
		s.emit(ctx, audit.Event{
			Subject:      p.SignalID.String(),
			Action:       string(audit.EventRoutingSuppressed),
			Jurisdiction: p.Jurisdiction,
			Reason:       "blackout_active",
		})
		s.logInfo(ctx, "routing suppressed by active blackout", "signal_id", p.SignalID)
		return s.ListBySignal(ctx, p.SignalID)
	}

	partners, err := s.partners.SelectPartners(ctx, p, required)
	if err != nil {
		span.SetStatus(codes.Error, "partner selection failed")
		s.releaseBlackout(ctx, p.SignalID, "partner_selection_failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("routing.partners", len(partners)))
	if len(partners) == 0 {
		s.metrics.IncUnrouted()
		s.emit(ctx, audit.Event{
			Subject:      p.SignalID.String(),
			Action:       string(audit.EventNoPartnerAvailable),
			Jurisdiction: p.Jurisdiction,
		})
		if s.logger != nil {
			s.logger.WarnContext(ctx, "no partner available for signal",
				"signal_id", p.SignalID,
				"jurisdiction", p.Jurisdiction,
			)
		}
		s.releaseBlackout(ctx, p.SignalID, "no_partner_available")
		return []*models.Result{}, nil
	}

	now := requestcontext.Now(ctx)
	results := make([]*models.Result, len(partners))
	for i, partner := range partners {
		r := models.NewResult(p.SignalID, partner.ID, now)
		if err := s.results.Create(ctx, r); err != nil {
			span.SetStatus(codes.Error, "result store failed")
			// Results created before the failure stay pending; the retried
			// Route records a fresh set.
			s.releaseBlackout(ctx, p.SignalID, "result_store_failed")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record routing result")
		}
		results[i] = r
	}

	// Dispatch outlives the caller: crisis routing is never abandoned midway.
	dispatchCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.policy.MaxConcurrency)
	for i, partner := range partners {
		g.Go(func() error {
			s.dispatch(dispatchCtx, partner, results[i], p, required, true)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// releaseBlackout ends the window Route just opened. A failed release is
// logged; the window then expires on its own.
func (s *Service) releaseBlackout(ctx context.Context, signalID id.SignalID, reason string) {
	err := s.blackouts.Release(context.WithoutCancel(ctx), signalID, reason)
	if err == nil {
		return
	}
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to release blackout",
			"signal_id", signalID,
			"reason", reason,
			"error", err,
		)
	}
}

// Acknowledge records the partner's confirmation of a sent result. Results
// owned by another partner are reported as not found.
func (s *Service) Acknowledge(ctx context.Context, resultID id.ResultID, partnerID id.PartnerID, ref *string) (*models.Result, error) {
	r, err := s.results.FindByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "routing result not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load routing result")
	}
	if r.PartnerID != partnerID {
		return nil, dErrors.New(dErrors.CodeNotFound, "routing result not found")
	}
	if ref != nil && *ref == "" {
		ref = nil
	}

	changed, err := r.Acknowledge(ref, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if !changed {
		return r, nil
	}
	if err := s.results.Update(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record acknowledgement")
	}
	s.metrics.IncResult(string(models.StatusAcknowledged))
	s.emit(ctx, audit.Event{
		Subject:   r.SignalID.String(),
		Action:    string(audit.EventRoutingAcknowledged),
		PartnerID: partnerID.String(),
		ActorID:   partnerID.String(),
	})
	s.logInfo(ctx, "routing acknowledged",
		"signal_id", r.SignalID,
		"partner_id", partnerID,
		"result_id", r.ID,
	)
	return r, nil
}

func (s *Service) ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.Result, error) {
	results, err := s.results.ListBySignal(ctx, signalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list routing results")
	}
	return results, nil
}

// ListFailed returns terminally failed results awaiting human follow-up.
func (s *Service) ListFailed(ctx context.Context) ([]*models.Result, error) {
	results, err := s.results.ListFailed(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list failed routing results")
	}
	return results, nil
}

// RetryResult runs the delivery policy again for a failed result. Routing
// results never store payloads, so the caller supplies the signal payload.
func (s *Service) RetryResult(ctx context.Context, resultID id.ResultID, p *payload.SignalRoutingPayload, required ...pmodels.Capability) (*models.Result, error) {
	if p == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "payload is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r, err := s.results.FindByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "routing result not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load routing result")
	}
	if r.SignalID != p.SignalID {
		return nil, dErrors.New(dErrors.CodeValidation, "payload signal does not match routing result")
	}
	partner, err := s.partners.Get(ctx, r.PartnerID)
	if err != nil {
		return nil, err
	}
	if !partner.Active {
		return nil, dErrors.New(dErrors.CodeInvalidState, "partner is inactive")
	}
	if err := r.BeginRetry(); err != nil {
		return nil, err
	}
	if err := s.results.Update(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reopen routing result")
	}
	s.emit(ctx, audit.Event{
		Subject:   r.SignalID.String(),
		Action:    string(audit.EventRoutingRetried),
		PartnerID: partner.ID.String(),
	})

	s.dispatch(context.WithoutCancel(ctx), partner, r, p, required, false)
	return r, nil
}

// dispatch runs one bounded delivery run and persists the outcome on r.
func (s *Service) dispatch(ctx context.Context, partner *pmodels.Partner, r *models.Result, p *payload.SignalRoutingPayload, required []pmodels.Capability, firstRun bool) {
	start := time.Now()
	defer func() { s.metrics.ObserveDispatch(time.Since(start)) }()

	ctx, span := s.tracer.Start(ctx, "routing.deliver", trace.WithAttributes(
		attribute.String("partner.id", partner.ID.String()),
		attribute.String("result.id", r.ID.String()),
	))
	defer span.End()

	retries := func(attempts int) int {
		if firstRun {
			return attempts - 1
		}
		return r.RetryCount + attempts
	}

	reporting, err := s.partners.ReportingCapability(ctx, partner.ID)
	if err != nil {
		s.fail(ctx, span, partner, r, p, r.RetryCount, "reporting capability unavailable")
		return
	}
	body, err := s.buildBody(ctx, r, p, reporting, required)
	if err != nil {
		s.fail(ctx, span, partner, r, p, r.RetryCount, "build payload: "+err.Error())
		return
	}
	credential, err := s.credential(ctx, partner)
	if err != nil {
		s.fail(ctx, span, partner, r, p, r.RetryCount, err.Error())
		return
	}

	ack, attempts, err := s.deliverWithRetry(ctx, partner, r, credential, body)
	if err != nil {
		s.fail(ctx, span, partner, r, p, retries(attempts), err.Error())
		return
	}

	r.MarkSent(retries(attempts))
	if ack.Acknowledged {
		_, _ = r.Acknowledge(ack.PartnerReferenceID, requestcontext.Now(ctx))
	}
	if err := s.results.Update(ctx, r); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to persist routing result",
			"result_id", r.ID,
			"status", r.Status,
			"error", err,
		)
	}
	s.metrics.IncResult(string(r.Status))
	s.emit(ctx, audit.Event{
		Subject:      r.SignalID.String(),
		Action:       string(audit.EventSignalRouted),
		PartnerID:    partner.ID.String(),
		Jurisdiction: p.Jurisdiction,
		Decision:     string(r.Status),
	})
	s.logInfo(ctx, "signal routed",
		"signal_id", r.SignalID,
		"partner_id", partner.ID,
		"status", r.Status,
		"retry_count", r.RetryCount,
	)

	if reporting != nil && reporting.RequiresExtendedBlackout {
		if _, err := s.blackouts.Extend(ctx, r.SignalID, partner.ID, s.policy.BlackoutExtension); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to extend blackout after mandatory reporting delivery",
				"signal_id", r.SignalID,
				"partner_id", partner.ID,
				"error", err,
			)
		}
	}
}

// deliverWithRetry returns the number of attempts made. Open circuits and
// transport failures both consume attempts; non-retryable partner
// responses stop the run early.
func (s *Service) deliverWithRetry(ctx context.Context, partner *pmodels.Partner, r *models.Result, credential string, body any) (*webhook.Ack, int, error) {
	breaker := s.breakers.Get(partner.ID.String())
	var lastErr error

	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			s.sleep(ctx, s.policy.Backoff(attempt-1))
		}
		if !breaker.Allow() {
			lastErr = errCircuitOpen
			s.metrics.IncAttempt("circuit_open")
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.policy.AttemptTimeout)
		ack, err := s.webhook.Deliver(attemptCtx, webhook.Delivery{
			URL:        partner.WebhookURL,
			Credential: credential,
			SignalID:   r.SignalID.String(),
			DeliveryID: r.ID.String(),
			Body:       body,
		})
		cancel()

		if err == nil {
			breaker.RecordSuccess()
			s.metrics.IncAttempt("success")
			if ack == nil {
				ack = &webhook.Ack{}
			}
			return ack, attempt, nil
		}

		lastErr = err
		s.metrics.IncAttempt("transport_error")
		if _, change := breaker.RecordFailure(); change.Opened {
			s.emit(ctx, audit.Event{
				Subject:   partner.ID.String(),
				Action:    string(audit.EventPartnerCircuitOpen),
				PartnerID: partner.ID.String(),
				Reason:    err.Error(),
			})
			if s.logger != nil {
				s.logger.WarnContext(ctx, "partner circuit opened", "partner_id", partner.ID)
			}
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook delivery attempt failed",
				"signal_id", r.SignalID,
				"partner_id", partner.ID,
				"attempt", attempt,
				"error", err,
			)
		}
		if !retryable(err) {
			return nil, attempt, err
		}
	}
	return nil, s.policy.MaxAttempts, lastErr
}

func (s *Service) fail(ctx context.Context, span trace.Span, partner *pmodels.Partner, r *models.Result, p *payload.SignalRoutingPayload, retries int, reason string) {
	if retries < 0 {
		retries = 0
	}
	r.MarkFailed(retries, reason)
	span.SetStatus(codes.Error, reason)
	if err := s.results.Update(ctx, r); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to persist routing result",
			"result_id", r.ID,
			"status", r.Status,
			"error", err,
		)
	}
	s.metrics.IncResult(string(models.StatusFailed))
	s.emit(ctx, audit.Event{
		Subject:      r.SignalID.String(),
		Action:       string(audit.EventRoutingFailed),
		PartnerID:    partner.ID.String(),
		Jurisdiction: p.Jurisdiction,
		Reason:       reason,
	})
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "routing failed, follow-up required",
			"signal_id", r.SignalID,
			"partner_id", partner.ID,
			"retry_count", r.RetryCount,
			"error", reason,
		)
	}
}

// envelope carries routing metadata alongside the partner payload.
type envelope struct {
	SignalID id.SignalID `json:"signalId"`
	ResultID id.ResultID `json:"resultId"`
	RoutedAt time.Time   `json:"routedAt"`
	Payload  any         `json:"payload"`
}

func (s *Service) buildBody(ctx context.Context, r *models.Result, p *payload.SignalRoutingPayload, reporting *pmodels.MandatoryReportingCapability, required []pmodels.Capability) (any, error) {
	env := envelope{
		SignalID: r.SignalID,
		ResultID: r.ID,
		RoutedAt: requestcontext.Now(ctx),
		Payload:  p,
	}
	if len(required) == 0 {
		return env, nil
	}
	var coverage []jurisdiction.Coverage
	if reporting != nil {
		coverage = reporting.SupportedJurisdictions
	}
	enhanced, err := payload.BuildEnhanced(p, coverage, required)
	if err != nil {
		return nil, err
	}
	env.Payload = enhanced
	return env, nil
}

// credential resolves the outbound key and checks it against the stored
// hash so a stale key ring never authenticates as the wrong partner.
func (s *Service) credential(ctx context.Context, partner *pmodels.Partner) (string, error) {
	key, err := s.creds.PartnerCredential(ctx, partner.ID)
	if err != nil {
		return "", errors.New("partner credential unavailable")
	}
	if err := s.verifier.Verify(key, partner.APIKeyHash); err != nil {
		return "", errors.New("partner credential does not match registration")
	}
	return key, nil
}

func retryable(err error) bool {
	var se *webhook.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == 408 || se.StatusCode == 429
	}
	return true
}

func sleepTimer(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit routing audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg, args...)
}
