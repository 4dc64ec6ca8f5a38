package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	request "beacon/pkg/platform/middleware/request"
	"beacon/pkg/requestcontext"
)

// JWTValidator defines the interface for validating operator bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*OperatorClaims, error)
}

// OperatorClaims represents the claims we expect from the JWT validator.
type OperatorClaims struct {
	OperatorID string
	Role       string
	JTI        string
}

// RequireOperator authenticates case workers and compliance officers. The
// operator id lands in requestcontext so audit events carry the actor.
func RequireOperator(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}
			if claims.OperatorID == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token has no subject"))
				return
			}

			ctx = requestcontext.WithOperatorID(ctx, claims.OperatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
