// Package partner authenticates crisis-partner callbacks by partner id and
// raw API key, checked against the stored hash.
package partner

import (
	"context"
	"log/slog"
	"net/http"

	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	request "beacon/pkg/platform/middleware/request"
)

const (
	HeaderPartnerID  = "X-Partner-Id"
	HeaderPartnerKey = "X-Partner-Key"
)

// KeyVerifier checks a raw partner key. Implementations must not log the key.
type KeyVerifier interface {
	VerifyPartnerKey(ctx context.Context, partnerID, rawKey string) error
}

type contextKeyPartnerID struct{}

// GetPartnerID returns the partner authenticated by RequirePartnerKey.
func GetPartnerID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyPartnerID{}).(string); ok {
		return v
	}
	return ""
}

// WithPartnerID is for handler tests that skip the middleware.
func WithPartnerID(ctx context.Context, partnerID string) context.Context {
	return context.WithValue(ctx, contextKeyPartnerID{}, partnerID)
}

func RequirePartnerKey(verifier KeyVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			partnerID := r.Header.Get(HeaderPartnerID)
			key := r.Header.Get(HeaderPartnerKey)
			if partnerID == "" || key == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "partner credentials required"))
				return
			}
			if err := verifier.VerifyPartnerKey(ctx, partnerID, key); err != nil {
				logger.WarnContext(ctx, "partner key rejected",
					"partner_id", partnerID,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid partner credentials"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPartnerID(ctx, partnerID)))
		})
	}
}
