package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/ratelimit/models"
	"beacon/internal/ratelimit/service"
	"beacon/internal/ratelimit/store"
	"beacon/pkg/platform/middleware/partner"
)

func newLimited(t *testing.T, perClient, perPartner int) http.Handler {
	t.Helper()
	svc, err := service.New(store.NewInMemoryStore(),
		service.WithLimit(models.ClassClient, models.Limit{Requests: perClient, Window: time.Minute}),
		service.WithLimit(models.ClassPartner, models.Limit{Requests: perPartner, Window: time.Minute}),
	)
	require.NoError(t, err)
	return New(svc, nil).Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func send(h http.Handler, ip, partnerID string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/routing-results/res_1/ack", nil)
	r.RemoteAddr = ip + ":40000"
	if partnerID != "" {
		r.Header.Set(partner.HeaderPartnerID, partnerID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func TestLimit_ClientBucket(t *testing.T) {
	h := newLimited(t, 2, 100)

	assert.Equal(t, http.StatusNoContent, send(h, "192.0.2.1", "").Code)
	rr := send(h, "192.0.2.1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = send(h, "192.0.2.1", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), `"error":"rate_limited"`)

	assert.Equal(t, http.StatusNoContent, send(h, "192.0.2.2", "").Code, "other clients are unaffected")
}

func TestLimit_PartnerBucketSpansClients(t *testing.T) {
	h := newLimited(t, 100, 1)

	assert.Equal(t, http.StatusNoContent, send(h, "192.0.2.1", "partner_a").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "192.0.2.2", "partner_a").Code)
	assert.Equal(t, http.StatusNoContent, send(h, "192.0.2.2", "partner_b").Code)
}

func TestLimit_FailsOpen(t *testing.T) {
	h := New(brokenLimiter{}, nil).Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	assert.Equal(t, http.StatusNoContent, send(h, "192.0.2.1", "partner_a").Code)
}

func TestLimit_Disabled(t *testing.T) {
	h := New(brokenLimiter{}, nil, WithDisabled(true)).Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := send(h, "192.0.2.1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

type brokenLimiter struct{}

func (brokenLimiter) Check(context.Context, models.Class, string) (*models.Result, error) {
	return nil, errors.New("store unavailable")
}
