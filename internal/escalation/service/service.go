package service

import (
	"context"
	"errors"
	"log/slog"

	"beacon/internal/escalation/models"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, e *models.Escalation) error
	FindByID(ctx context.Context, escalationID id.EscalationID) (*models.Escalation, error)
	ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.Escalation, error)
	UpdateUnsealed(ctx context.Context, e *models.Escalation) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the escalation tracker.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("escalation store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type EscalateRequest struct {
	SignalID     id.SignalID
	PartnerID    id.PartnerID
	Type         models.Type
	Jurisdiction string
}

// Escalate appends a tier transition. Tier order is not enforced.
func (s *Service) Escalate(ctx context.Context, req EscalateRequest) (*models.Escalation, error) {
	e, err := models.NewEscalation(req.SignalID, req.PartnerID, req.Type, req.Jurisdiction, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record escalation")
	}
	s.emit(ctx, audit.EventEscalated, e)
	s.logInfo(ctx, "signal escalated",
		"signal_id", e.SignalID,
		"partner_id", e.PartnerID,
		"escalation_type", e.Type,
		"jurisdiction", e.Jurisdiction,
	)
	return e, nil
}

// History lists a signal's escalations in escalatedAt order.
func (s *Service) History(ctx context.Context, signalID id.SignalID) ([]*models.Escalation, error) {
	if signalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "signal_id is required")
	}
	out, err := s.store.ListBySignal(ctx, signalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list escalations")
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, escalationID id.EscalationID) (*models.Escalation, error) {
	e, err := s.store.FindByID(ctx, escalationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "escalation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load escalation")
	}
	return e, nil
}

// Seal makes the escalation immutable. Sealing an already sealed record
// fails with CodeSealed.
func (s *Service) Seal(ctx context.Context, escalationID id.EscalationID) (*models.Escalation, error) {
	e, err := s.mutate(ctx, escalationID, func(e *models.Escalation) error {
		return e.Seal(requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventEscalationSealed, e)
	s.logInfo(ctx, "escalation sealed",
		"escalation_id", e.ID,
		"signal_id", e.SignalID,
	)
	return e, nil
}

func (s *Service) Reclassify(ctx context.Context, escalationID id.EscalationID, t models.Type) (*models.Escalation, error) {
	var previous models.Type
	e, err := s.mutate(ctx, escalationID, func(e *models.Escalation) error {
		previous = e.Type
		return e.Reclassify(t)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventEscalationReclassified, e)
	s.logInfo(ctx, "escalation reclassified",
		"escalation_id", e.ID,
		"from", previous,
		"to", e.Type,
	)
	return e, nil
}

// mutate applies fn to the current record and writes it back only if no
// one sealed it in between.
func (s *Service) mutate(ctx context.Context, escalationID id.EscalationID, fn func(*models.Escalation) error) (*models.Escalation, error) {
	e, err := s.Get(ctx, escalationID)
	if err != nil {
		return nil, err
	}
	if err := fn(e); err != nil {
		return nil, err
	}
	if err := s.store.UpdateUnsealed(ctx, e); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeSealed, "escalation is sealed and cannot be modified")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "escalation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update escalation")
	}
	return e, nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, e *models.Escalation) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:      e.SignalID.String(),
		Action:       string(event),
		PartnerID:    e.PartnerID.String(),
		Jurisdiction: e.Jurisdiction,
		Decision:     string(e.Type),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit escalation audit event",
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
