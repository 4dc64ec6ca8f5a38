package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"beacon/internal/blackout/models"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

// Store must make CreateIfAbsent atomic per signal.
type Store interface {
	CreateIfAbsent(ctx context.Context, rec *models.Record, now time.Time) (*models.Record, bool, error)
	FindActive(ctx context.Context, signalID id.SignalID, now time.Time) (*models.Record, error)
	Extend(ctx context.Context, signalID id.SignalID, by id.PartnerID, d time.Duration, now time.Time) (*models.Record, error)
	End(ctx context.Context, signalID id.SignalID, now time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the blackout controller.
type Service struct {
	store           Store
	defaultDuration time.Duration
	logger          *slog.Logger
	auditPublisher  AuditPublisher
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

func WithDefaultDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("blackout store is required")
	}
	s := &Service{store: store, defaultDuration: models.DefaultDuration}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start opens a blackout window for the signal. A zero duration uses the
// configured default. When a window is already active the existing record
// is returned unchanged with started=false.
func (s *Service) Start(ctx context.Context, signalID id.SignalID, d time.Duration) (rec *models.Record, started bool, err error) {
	if signalID.IsNil() {
		return nil, false, dErrors.New(dErrors.CodeValidation, "signal_id is required")
	}
	if d < 0 {
		return nil, false, dErrors.New(dErrors.CodeValidation, "blackout duration must be positive")
	}
	if d == 0 {
		d = s.defaultDuration
	}

	now := requestcontext.Now(ctx)
	rec, started, err = s.store.CreateIfAbsent(ctx, models.NewRecord(signalID, now, d), now)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start blackout")
	}
	if started {
		s.emit(ctx, audit.EventBlackoutStarted, rec, "")
		s.logInfo(ctx, "blackout started",
			"signal_id", signalID,
			"expires_at", rec.ExpiresAt,
		)
	}
	return rec, started, nil
}

func (s *Service) IsBlacked(ctx context.Context, signalID id.SignalID) (bool, error) {
	rec, err := s.Active(ctx, signalID)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Active returns nil without error when the signal has no active window.
func (s *Service) Active(ctx context.Context, signalID id.SignalID) (*models.Record, error) {
	rec, err := s.store.FindActive(ctx, signalID, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check blackout")
	}
	return rec, nil
}

// Extend pushes the active window's expiry forward by d and records which
// partner asked for it.
func (s *Service) Extend(ctx context.Context, signalID id.SignalID, by id.PartnerID, d time.Duration) (*models.Record, error) {
	if by.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "partner_id is required")
	}
	if d <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "extension must be positive")
	}
	rec, err := s.store.Extend(ctx, signalID, by, d, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active blackout for signal")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to extend blackout")
	}
	s.emit(ctx, audit.EventBlackoutExtended, rec, "")
	s.logInfo(ctx, "blackout extended",
		"signal_id", signalID,
		"partner_id", by,
		"expires_at", rec.ExpiresAt,
	)
	return rec, nil
}

// End deactivates the window ahead of its expiry.
func (s *Service) End(ctx context.Context, signalID id.SignalID) error {
	return s.Release(ctx, signalID, "operator_override")
}

// Release is End with the reason recorded on the audit event.
func (s *Service) Release(ctx context.Context, signalID id.SignalID, reason string) error {
	if err := s.store.End(ctx, signalID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no active blackout for signal")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to end blackout")
	}
	s.emit(ctx, audit.EventBlackoutEnded, &models.Record{SignalID: signalID}, reason)
	s.logInfo(ctx, "blackout ended", "signal_id", signalID, "reason", reason)
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, rec *models.Record, reason string) {
	if s.auditPublisher == nil {
		return
	}
	e := audit.Event{
		Subject: rec.SignalID.String(),
		Action:  string(event),
		Reason:  reason,
	}
	if rec.ExtendedBy != nil {
		e.PartnerID = rec.ExtendedBy.String()
	}
	if err := s.auditPublisher.Emit(ctx, e); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit blackout audit event",
			"action", event,
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
