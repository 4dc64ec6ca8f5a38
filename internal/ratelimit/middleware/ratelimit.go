package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"beacon/internal/ratelimit/models"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/metadata"
	"beacon/pkg/platform/middleware/partner"
)

type RateLimiter interface {
	Check(ctx context.Context, class models.Class, subject string) (*models.Result, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns the middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{limiter: limiter, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled && logger != nil {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit counts every request against its client IP and, when the caller
// names a partner, against that partner as well. It runs before partner
// authentication, so a partner bucket also absorbs forged callbacks made
// under that partner's id. Store failures fail open.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		ip := metadata.GetClientIP(ctx)
		if ip == "" {
			ip = metadata.ClientIPFromRequest(r)
		}

		if !m.allow(w, r, models.ClassClient, ip) {
			return
		}
		if partnerID := r.Header.Get(partner.HeaderPartnerID); partnerID != "" {
			if !m.allow(w, r, models.ClassPartner, partnerID) {
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) allow(w http.ResponseWriter, r *http.Request, class models.Class, subject string) bool {
	res, err := m.limiter.Check(r.Context(), class, subject)
	if err != nil {
		if m.logger != nil {
			m.logger.ErrorContext(r.Context(), "rate limit check failed", "class", class, "error", err)
		}
		return true
	}
	if res == nil {
		return true
	}
	addRateLimitHeaders(w, res)
	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
		httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests; retry later"))
		return false
	}
	return true
}

func addRateLimitHeaders(w http.ResponseWriter, res *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}
