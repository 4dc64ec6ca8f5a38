package service

import (
	"context"
	"errors"
	"log/slog"

	"beacon/internal/partner/credentials"
	"beacon/internal/partner/models"
	"beacon/internal/payload"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/sentinel"
	strs "beacon/pkg/platform/strings"
	"beacon/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, p *models.Partner) error
	Update(ctx context.Context, p *models.Partner) error
	FindByID(ctx context.Context, partnerID id.PartnerID) (*models.Partner, error)
	ListActive(ctx context.Context) ([]*models.Partner, error)
	List(ctx context.Context) ([]*models.Partner, error)
	SaveReportingCapability(ctx context.Context, m *models.MandatoryReportingCapability) error
	FindReportingCapability(ctx context.Context, partnerID id.PartnerID) (*models.MandatoryReportingCapability, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the partner registry.
type Service struct {
	store          Store
	hasher         *credentials.Hasher
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

// WithHasher overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHasher(h *credentials.Hasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("partner store is required")
	}
	s := &Service{store: store, hasher: credentials.NewHasher(0)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterRequest is the input to Register. APIKey may be empty, in which
// case a key is generated and returned once.
type RegisterRequest struct {
	ID                 string
	Name               string
	WebhookURL         string
	APIKey             string
	Jurisdictions      []string
	Priority           int
	Capabilities       []string
	MandatoryReporting *models.MandatoryReportingCapability
}

// Register validates and stores a partner. Only the bcrypt hash of the key
// is persisted; the raw key is returned to the caller.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Partner, string, error) {
	partnerID, err := id.ParsePartnerID(req.ID)
	if err != nil {
		return nil, "", err
	}
	caps, err := models.ParseCapabilities(strs.DedupeAndTrimLower(req.Capabilities))
	if err != nil {
		return nil, "", err
	}

	rawKey := req.APIKey
	if rawKey == "" {
		if rawKey, err = credentials.Generate(); err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate api key")
		}
	}
	hash, err := s.hasher.Hash(rawKey)
	if err != nil {
		return nil, "", err
	}

	p, err := models.NewPartner(partnerID, req.Name, req.WebhookURL, hash,
		strs.DedupeAndTrim(req.Jurisdictions), req.Priority, caps, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}

	var reporting *models.MandatoryReportingCapability
	if req.MandatoryReporting != nil {
		reporting = req.MandatoryReporting
		reporting.PartnerID = partnerID
		if err := validateReporting(p, reporting); err != nil {
			return nil, "", err
		}
	}

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "partner already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to register partner")
	}
	if reporting != nil {
		if err := s.store.SaveReportingCapability(ctx, reporting); err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save reporting capability")
		}
	}

	s.emit(ctx, audit.EventPartnerRegistered, p.ID, "")
	s.logInfo(ctx, "partner registered",
		"partner_id", p.ID,
		"priority", p.Priority,
		"jurisdictions", len(p.Jurisdictions),
	)
	return p, rawKey, nil
}

// RegisterReportingCapability attaches or replaces a partner's mandatory
// reporting capability.
func (s *Service) RegisterReportingCapability(ctx context.Context, m *models.MandatoryReportingCapability) error {
	p, err := s.Get(ctx, m.PartnerID)
	if err != nil {
		return err
	}
	if err := validateReporting(p, m); err != nil {
		return err
	}
	if err := s.store.SaveReportingCapability(ctx, m); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save reporting capability")
	}
	return nil
}

func validateReporting(p *models.Partner, m *models.MandatoryReportingCapability) error {
	if !p.HasCapabilities([]models.Capability{models.CapabilityMandatoryReporting}) {
		return dErrors.New(dErrors.CodeValidation, "partner does not offer mandatory_reporting")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	for _, c := range m.SupportedJurisdictions {
		if !p.SupportsJurisdiction(c.JurisdictionCode) {
			return dErrors.New(dErrors.CodeValidation,
				"reporting coverage "+c.JurisdictionCode+" is outside the partner's jurisdictions")
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, partnerID id.PartnerID) (*models.Partner, error) {
	p, err := s.store.FindByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "partner not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load partner")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Partner, error) {
	ps, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list partners")
	}
	return ps, nil
}

// ReportingCapability returns nil without error when the partner has none.
func (s *Service) ReportingCapability(ctx context.Context, partnerID id.PartnerID) (*models.MandatoryReportingCapability, error) {
	m, err := s.store.FindReportingCapability(ctx, partnerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reporting capability")
	}
	return m, nil
}

func (s *Service) Deactivate(ctx context.Context, partnerID id.PartnerID) error {
	p, err := s.Get(ctx, partnerID)
	if err != nil {
		return err
	}
	if !p.Active {
		return nil
	}
	p.Deactivate(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate partner")
	}
	s.emit(ctx, audit.EventPartnerDeactivated, p.ID, "")
	s.logInfo(ctx, "partner deactivated", "partner_id", p.ID)
	return nil
}

// VerifyPartnerKey authenticates a partner callback. Unknown partners,
// inactive partners and bad keys all return the same unauthorized error.
func (s *Service) VerifyPartnerKey(ctx context.Context, partnerID, rawKey string) error {
	denied := dErrors.New(dErrors.CodeUnauthorized, "invalid partner credentials")
	pid, err := id.ParsePartnerID(partnerID)
	if err != nil {
		return denied
	}
	p, err := s.store.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.emit(ctx, audit.EventPartnerAuthFailed, pid, "unknown_partner")
			return denied
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load partner")
	}
	if !p.Active {
		s.emit(ctx, audit.EventPartnerAuthFailed, pid, "inactive_partner")
		return denied
	}
	if err := s.hasher.Verify(rawKey, p.APIKeyHash); err != nil {
		s.emit(ctx, audit.EventPartnerAuthFailed, pid, "bad_key")
		return denied
	}
	return nil
}

// SelectPartners returns active partners covering the payload jurisdiction
// with every required capability, best priority first.
func (s *Service) SelectPartners(ctx context.Context, p *payload.SignalRoutingPayload, required []models.Capability) ([]*models.Partner, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load partners")
	}
	return models.SelectPartners(active, p.Jurisdiction, required), nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, partnerID id.PartnerID, reason string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   partnerID.String(),
		Action:    string(event),
		PartnerID: partnerID.String(),
		Reason:    reason,
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit partner audit event",
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
