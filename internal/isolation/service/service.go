package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"beacon/internal/isolation/metrics"
	"beacon/internal/isolation/models"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
	"beacon/pkg/requestcontext"
)

type Store interface {
	CreateIfAbsent(ctx context.Context, sig *models.IsolatedSignal) error
	Get(ctx context.Context, signalID id.SignalID) (*models.IsolatedSignal, error)
	Delete(ctx context.Context, signalID id.SignalID) error
	Exists(ctx context.Context, signalID id.SignalID) (bool, error)
}

// Authorizer is the external authorization collaborator. The service only
// checks that an authorization id is present; validity is delegated here.
type Authorizer interface {
	Authorize(ctx context.Context, authorizationID string, signalID id.SignalID, action string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	actionRead   = "read"
	actionDelete = "delete"
)

// Service is the isolated signal store.
type Service struct {
	store          Store
	anonymizer     *models.Anonymizer
	authorizer     Authorizer
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

func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) {
		s.authorizer = a
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, anonymizer *models.Anonymizer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("isolated signal store is required")
	}
	if anonymizer == nil {
		return nil, errors.New("anonymizer is required")
	}
	s := &Service{store: store, anonymizer: anonymizer, tx: txcontext.NoopRunner{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type StoreRequest struct {
	SignalID         id.SignalID
	ChildID          string
	EncryptedPayload string
	EncryptionKeyID  string
	Jurisdiction     string
}

// Store persists the ciphertext under the anonymized child id. The raw
// child id is dropped here and never reaches the store.
func (s *Service) Store(ctx context.Context, req StoreRequest) (*models.IsolatedSignal, error) {
	anon, err := s.anonymizer.Anonymize(req.ChildID)
	if err != nil {
		return nil, err
	}
	sig, err := models.NewIsolatedSignal(req.SignalID, anon, req.EncryptedPayload, req.EncryptionKeyID,
		req.Jurisdiction, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateIfAbsent(ctx, sig); err != nil {
		s.metrics.Inc("store", "error")
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "signal is already in isolated storage")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store isolated signal")
	}
	s.metrics.Inc("store", "ok")
	if err := s.emit(ctx, audit.EventIsolatedSignalStored, sig.ID, "", sig.Jurisdiction); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit isolation audit event", "error", err)
	}
	s.logInfo(ctx, "isolated signal stored",
		"signal_id", sig.ID,
		"encryption_key_id", sig.EncryptionKeyID,
	)
	return sig, nil
}

// Get returns nil without error when no record exists. The authorization
// check happens before the store is touched, and the access is audited
// fail-closed.
func (s *Service) Get(ctx context.Context, signalID id.SignalID, authorizationID string) (*models.IsolatedSignal, error) {
	if err := s.authorize(ctx, signalID, authorizationID, actionRead); err != nil {
		s.metrics.Inc("get", "denied")
		return nil, err
	}
	sig, err := s.store.Get(ctx, signalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.Inc("get", "absent")
			return nil, nil
		}
		s.metrics.Inc("get", "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read isolated signal")
	}
	if err := s.emit(ctx, audit.EventIsolatedSignalAccessed, signalID, authorizationID, sig.Jurisdiction); err != nil {
		s.metrics.Inc("get", "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit isolated signal access")
	}
	s.metrics.Inc("get", "ok")
	return sig, nil
}

// Describe is Get without the ciphertext, for compliance manifests.
func (s *Service) Describe(ctx context.Context, signalID id.SignalID, authorizationID string) (*models.Metadata, error) {
	sig, err := s.Get(ctx, signalID, authorizationID)
	if err != nil || sig == nil {
		return nil, err
	}
	md := sig.Metadata()
	return &md, nil
}

// Delete requires the record to exist. The delete and its audit event
// commit together.
func (s *Service) Delete(ctx context.Context, signalID id.SignalID, authorizationID string) error {
	if err := s.authorize(ctx, signalID, authorizationID, actionDelete); err != nil {
		s.metrics.Inc("delete", "denied")
		return err
	}
	// The audit write precedes the delete so a failed emit leaves the record
	// in place on stores without transactions.
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.store.Exists(ctx, signalID)
		if err != nil {
			return err
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		if err := s.emit(ctx, audit.EventIsolatedSignalDeleted, signalID, authorizationID, ""); err != nil {
			return err
		}
		return s.store.Delete(ctx, signalID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.Inc("delete", "absent")
			return dErrors.New(dErrors.CodeNotFound, "isolated signal not found")
		}
		s.metrics.Inc("delete", "error")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete isolated signal")
	}
	s.metrics.Inc("delete", "ok")
	s.logInfo(ctx, "isolated signal deleted", "signal_id", signalID)
	return nil
}

// Verify reports whether the signal lives in isolated storage.
func (s *Service) Verify(ctx context.Context, signalID id.SignalID) (bool, error) {
	if signalID.IsNil() {
		return false, dErrors.New(dErrors.CodeValidation, "signal_id is required")
	}
	ok, err := s.store.Exists(ctx, signalID)
	if err != nil {
		s.metrics.Inc("verify", "error")
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify isolated storage")
	}
	s.metrics.Inc("verify", "ok")
	return ok, nil
}

func (s *Service) authorize(ctx context.Context, signalID id.SignalID, authorizationID, action string) error {
	if strings.TrimSpace(authorizationID) == "" {
		if err := s.emit(ctx, audit.EventAuthorizationAbsent, signalID, "", ""); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to emit isolation audit event", "error", err)
		}
		return dErrors.New(dErrors.CodeUnauthorized, "authorization id is required")
	}
	if s.authorizer == nil {
		return nil
	}
	if err := s.authorizer.Authorize(ctx, authorizationID, signalID, action); err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return dErrors.Wrap(err, dErrors.CodeInternal, "authorization check failed")
		}
		return dErrors.New(dErrors.CodeForbidden, "authorization does not permit this access")
	}
	return nil
}

// emit returns the publisher error so callers decide whether the audit
// write gates the operation.
func (s *Service) emit(ctx context.Context, event audit.AuditEvent, signalID id.SignalID, authorizationID, code string) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Subject:      signalID.String(),
		Action:       string(event),
		Jurisdiction: code,
		Reason:       authorizationID,
	})
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg, args...)
}
