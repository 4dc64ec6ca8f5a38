package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pmodels "beacon/internal/partner/models"
	"beacon/internal/payload"
	"beacon/internal/routing/models"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/auth"
	"beacon/pkg/platform/middleware/partner"
	request "beacon/pkg/platform/middleware/request"
)

const maxSignalBytes = 64 << 10

// Service defines the routing operations exposed over HTTP.
type Service interface {
	Route(ctx context.Context, p *payload.SignalRoutingPayload, required ...pmodels.Capability) ([]*models.Result, error)
	Acknowledge(ctx context.Context, resultID id.ResultID, partnerID id.PartnerID, ref *string) (*models.Result, error)
	ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.Result, error)
	ListFailed(ctx context.Context) ([]*models.Result, error)
	RetryResult(ctx context.Context, resultID id.ResultID, p *payload.SignalRoutingPayload, required ...pmodels.Capability) (*models.Result, error)
}

// Handler serves signal routing and partner acknowledgement endpoints.
type Handler struct {
	logger       *slog.Logger
	routing      Service
	jwtValidator auth.JWTValidator
	partnerKeys  partner.KeyVerifier
}

// New creates a new routing Handler.
func New(routing Service, logger *slog.Logger, jwtValidator auth.JWTValidator, partnerKeys partner.KeyVerifier) *Handler {
	return &Handler{
		logger:       logger,
		routing:      routing,
		jwtValidator: jwtValidator,
		partnerKeys:  partnerKeys,
	}
}

// Register registers the routing routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOperator(h.jwtValidator, h.logger))
		r.Post("/signals/route", h.handleRoute)
		r.Get("/signals/{signalID}/routing-results", h.handleListBySignal)
		r.Get("/routing-results/failed", h.handleListFailed)
		r.Post("/routing-results/{resultID}/retry", h.handleRetry)
	})
	r.Group(func(r chi.Router) {
		r.Use(partner.RequirePartnerKey(h.partnerKeys, h.logger))
		r.Post("/routing-results/{resultID}/ack", h.handleAcknowledge)
	})
}

type resultsResponse struct {
	Results []*models.Result `json:"results"`
}

type acknowledgeRequest struct {
	PartnerReferenceID *string `json:"partnerReferenceId"`
}

func (h *Handler) handleRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, required, err := h.readSignal(r, rawSignalParser)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected routing payload",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	results, err := h.routing.Route(ctx, p, required...)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to route signal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, resultsResponse{Results: nonNil(results)})
}

func (h *Handler) handleListBySignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	signalID := id.SignalID(chi.URLParam(r, "signalID"))
	results, err := h.routing.ListBySignal(ctx, signalID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list routing results", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resultsResponse{Results: nonNil(results)})
}

func (h *Handler) handleListFailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results, err := h.routing.ListFailed(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list failed results", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resultsResponse{Results: nonNil(results)})
}

// handleRetry re-dispatches a failed result. Payloads are never stored, so
// the caller re-submits either the original producer signal or the routing
// payload it was converted to (with childAge).
func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, required, err := h.readSignal(r, retryParser)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.routing.RetryResult(ctx, id.ResultID(chi.URLParam(r, "resultID")), p, required...)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to retry result", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partnerID := partner.GetPartnerID(ctx)
	if partnerID == "" {
		h.logger.ErrorContext(ctx, "partner id missing from context despite partner middleware",
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req acknowledgeRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	result, err := h.routing.Acknowledge(ctx, id.ResultID(chi.URLParam(r, "resultID")), id.PartnerID(partnerID), req.PartnerReferenceID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to acknowledge result", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// readSignal parses the producer submission strictly and the optional
// comma-separated ?capabilities= filter.
type signalParser func(body []byte) (*payload.SignalRoutingPayload, error)

func rawSignalParser(body []byte) (*payload.SignalRoutingPayload, error) {
	return payload.ParseRawSignal(body)
}

// retryParser takes bodies carrying a derived childAge through payload.Parse
// and producer signals through ParseRawSignal. Both guards reject keys the
// other form uses.
func retryParser(body []byte) (*payload.SignalRoutingPayload, error) {
	var keys map[string]json.RawMessage
	if json.Unmarshal(body, &keys) == nil {
		if _, ok := keys["childAge"]; ok {
			return payload.Parse(body)
		}
	}
	return payload.ParseRawSignal(body)
}

func (h *Handler) readSignal(r *http.Request, parse signalParser) (*payload.SignalRoutingPayload, []pmodels.Capability, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSignalBytes))
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	p, err := parse(body)
	if err != nil {
		return nil, nil, err
	}
	raw := r.URL.Query().Get("capabilities")
	if raw == "" {
		return p, nil, nil
	}
	required, err := pmodels.ParseCapabilities(strings.Split(raw, ","))
	if err != nil {
		return nil, nil, err
	}
	return p, required, nil
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func nonNil(results []*models.Result) []*models.Result {
	if results == nil {
		return []*models.Result{}
	}
	return results
}
