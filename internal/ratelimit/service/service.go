package service

import (
	"context"
	"log/slog"
	"time"

	"beacon/internal/ratelimit/metrics"
	"beacon/internal/ratelimit/models"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
)

type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit, now time.Time) (*models.Result, error)
}

// Service applies a sliding-window limit per class. Classes without a
// configured limit are unlimited.
type Service struct {
	store   Store
	limits  map[models.Class]models.Limit
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimit sets the budget for a class. A zero limit disables the class.
func WithLimit(class models.Class, limit models.Limit) Option {
	return func(s *Service) {
		s.limits[class] = limit
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "rate limit store is required")
	}
	s := &Service{store: store, limits: make(map[models.Class]models.Limit)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check counts one request for subject. It returns nil without error when
// the class is unlimited. Store failures are returned so the caller can
// decide to fail open.
func (s *Service) Check(ctx context.Context, class models.Class, subject string) (*models.Result, error) {
	limit, ok := s.limits[class]
	if !ok || !limit.Enabled() {
		return nil, nil
	}
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rate limit subject is required")
	}
	res, err := s.store.Allow(ctx, models.Key(class, subject), limit, requestcontext.Now(ctx))
	if err != nil {
		s.metrics.IncCheckFailure()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
	}
	if !res.Allowed {
		s.metrics.IncDenied(string(class))
		if s.logger != nil {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				"class", class,
				"retry_after", res.RetryAfter,
			)
		}
	}
	return res, nil
}
