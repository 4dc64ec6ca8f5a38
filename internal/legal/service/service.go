package service

import (
	"context"
	"errors"
	"log/slog"

	isomodels "beacon/internal/isolation/models"
	"beacon/internal/legal/metrics"
	"beacon/internal/legal/models"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
	"beacon/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, r *models.LegalRequest) error
	FindByID(ctx context.Context, requestID id.LegalRequestID) (*models.LegalRequest, error)
	ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.LegalRequest, error)
	CompareAndSwapStatus(ctx context.Context, r *models.LegalRequest, from models.Status) error
}

// IsolatedSignals reads metadata from isolated storage. A nil result means
// the signal is not held.
type IsolatedSignals interface {
	Describe(ctx context.Context, signalID id.SignalID, authorizationID string) (*isomodels.Metadata, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuthorizationPrefix scopes isolated-store reads made on behalf of a legal
// request.
const AuthorizationPrefix = "legal:"

// Service runs the legal request workflow.
type Service struct {
	store          Store
	isolated       IsolatedSignals
	tx             TxRunner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithIsolatedSignals(isolated IsolatedSignals) Option {
	return func(s *Service) {
		s.isolated = isolated
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("legal request store is required")
	}
	s := &Service{store: store, tx: txcontext.NoopRunner{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit records a new request in pending_legal_review.
func (s *Service) Submit(ctx context.Context, sub models.Submission) (*models.LegalRequest, error) {
	r, err := models.NewLegalRequest(sub, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "legal request already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save legal request")
	}
	s.metrics.IncTransition(string(r.Status))
	s.emitBestEffort(ctx, audit.EventLegalRequestSubmitted, r, "")
	s.logInfo(ctx, "legal request submitted",
		"legal_request_id", r.ID,
		"request_type", r.RequestType,
		"signal_count", len(r.SignalIDs),
	)
	return r, nil
}

// Resolve records the review decision. Only a pending request can be
// resolved; a concurrent resolution wins and this call fails.
func (s *Service) Resolve(ctx context.Context, requestID id.LegalRequestID, decision models.Decision) (*models.LegalRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	from := r.Status
	if err := r.Resolve(decision, requestcontext.Now(ctx)); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			s.metrics.IncRejected()
		}
		return nil, err
	}
	if err := s.store.CompareAndSwapStatus(ctx, r, from); err != nil {
		err = s.translateSwap(err, r.ID, from, r.Status)
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			s.metrics.IncRejected()
		}
		return nil, err
	}

	event := audit.EventLegalRequestApproved
	if r.Status == models.StatusDenied {
		event = audit.EventLegalRequestDenied
	}
	s.metrics.IncTransition(string(r.Status))
	s.emitBestEffort(ctx, event, r, "")
	s.logInfo(ctx, "legal request resolved",
		"legal_request_id", r.ID,
		"status", r.Status,
	)
	return r, nil
}

// Fulfill moves an approved request to fulfilled. The status is re-read
// inside the transaction so a concurrent denial is never overwritten, and
// the fulfillment commits only together with its audit record.
func (s *Service) Fulfill(ctx context.Context, requestID id.LegalRequestID, fulfilledBy string) (*models.LegalRequest, error) {
	var fulfilled *models.LegalRequest
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.load(ctx, requestID)
		if err != nil {
			return err
		}
		if err := r.Fulfill(fulfilledBy, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.CompareAndSwapStatus(ctx, r, models.StatusApproved); err != nil {
			return s.translateSwap(err, r.ID, models.StatusApproved, models.StatusFulfilled)
		}
		if err := s.emit(ctx, audit.EventLegalRequestFulfilled, r, *r.FulfilledBy); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit legal fulfillment")
		}
		fulfilled = r
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			s.metrics.IncRejected()
		}
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fulfill legal request")
	}
	s.metrics.IncTransition(string(models.StatusFulfilled))
	s.logInfo(ctx, "legal request fulfilled",
		"legal_request_id", fulfilled.ID,
		"fulfilled_by", *fulfilled.FulfilledBy,
	)
	return fulfilled, nil
}

func (s *Service) Get(ctx context.Context, requestID id.LegalRequestID) (*models.LegalRequest, error) {
	return s.load(ctx, requestID)
}

func (s *Service) ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.LegalRequest, error) {
	if signalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "signal_id is required")
	}
	out, err := s.store.ListBySignal(ctx, signalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list legal requests")
	}
	return out, nil
}

// Manifest describes what isolated storage holds for each referenced
// signal. It is available once a request is approved.
func (s *Service) Manifest(ctx context.Context, requestID id.LegalRequestID) (*models.Manifest, error) {
	if s.isolated == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "isolated storage is not configured")
	}
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.AllowsManifest() {
		return nil, dErrors.New(dErrors.CodeInvalidState,
			"manifest is not available for a legal request in status "+string(r.Status))
	}

	authorizationID := AuthorizationPrefix + r.ID.String()
	m := &models.Manifest{
		RequestID:         r.ID,
		RequestType:       r.RequestType,
		RequestingAgency:  r.RequestingAgency,
		DocumentReference: r.DocumentReference,
		Status:            r.Status,
		GeneratedAt:       requestcontext.Now(ctx),
		Entries:           make([]models.ManifestEntry, 0, len(r.SignalIDs)),
	}
	for _, signalID := range r.SignalIDs {
		md, err := s.isolated.Describe(ctx, signalID, authorizationID)
		if err != nil {
			return nil, err
		}
		entry := models.ManifestEntry{SignalID: signalID}
		if md != nil {
			createdAt := md.CreatedAt
			entry.Present = true
			entry.Jurisdiction = md.Jurisdiction
			entry.EncryptionKeyID = md.EncryptionKeyID
			entry.CreatedAt = &createdAt
		}
		m.Entries = append(m.Entries, entry)
	}
	return m, nil
}

func (s *Service) load(ctx context.Context, requestID id.LegalRequestID) (*models.LegalRequest, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "legal_request_id is required")
	}
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "legal request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load legal request")
	}
	return r, nil
}

func (s *Service) translateSwap(err error, requestID id.LegalRequestID, from, to models.Status) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "legal request not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState,
			"legal request "+requestID.String()+" is no longer "+string(from)+"; cannot move to "+string(to))
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update legal request")
	}
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, r *models.LegalRequest, actor string) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Subject:      r.ID.String(),
		Action:       string(event),
		Jurisdiction: r.Jurisdiction,
		Decision:     string(r.Status),
		Reason:       string(r.RequestType),
		ActorID:      actor,
	})
}

func (s *Service) emitBestEffort(ctx context.Context, event audit.AuditEvent, r *models.LegalRequest, actor string) {
	if err := s.emit(ctx, event, r, actor); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit legal audit event",
			"legal_request_id", r.ID,
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
