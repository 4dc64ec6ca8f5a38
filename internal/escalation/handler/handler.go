package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"beacon/internal/escalation/models"
	"beacon/internal/escalation/service"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/auth"
	"beacon/pkg/platform/middleware/partner"
	request "beacon/pkg/platform/middleware/request"
)

// Service defines the escalation operations exposed over HTTP.
type Service interface {
	Escalate(ctx context.Context, req service.EscalateRequest) (*models.Escalation, error)
	History(ctx context.Context, signalID id.SignalID) ([]*models.Escalation, error)
	Get(ctx context.Context, escalationID id.EscalationID) (*models.Escalation, error)
	Seal(ctx context.Context, escalationID id.EscalationID) (*models.Escalation, error)
	Reclassify(ctx context.Context, escalationID id.EscalationID, t models.Type) (*models.Escalation, error)
}

type Handler struct {
	logger       *slog.Logger
	escalations  Service
	jwtValidator auth.JWTValidator
	partnerKeys  partner.KeyVerifier
}

func New(escalations Service, logger *slog.Logger, jwtValidator auth.JWTValidator, partnerKeys partner.KeyVerifier) *Handler {
	return &Handler{
		logger:       logger,
		escalations:  escalations,
		jwtValidator: jwtValidator,
		partnerKeys:  partnerKeys,
	}
}

// Register mounts partner-reported escalation intake and the operator
// review endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(partner.RequirePartnerKey(h.partnerKeys, h.logger))
		r.Post("/escalations", h.handleEscalate)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOperator(h.jwtValidator, h.logger))
		r.Get("/escalations/{escalationID}", h.handleGet)
		r.Post("/escalations/{escalationID}/seal", h.handleSeal)
		r.Post("/escalations/{escalationID}/reclassify", h.handleReclassify)
		r.Get("/signals/{signalID}/escalations", h.handleHistory)
	})
}

type escalateRequest struct {
	SignalID       string `json:"signalId"`
	EscalationType string `json:"escalationType"`
	Jurisdiction   string `json:"jurisdiction"`
}

type reclassifyRequest struct {
	EscalationType string `json:"escalationType"`
}

type historyResponse struct {
	Escalations []*models.Escalation `json:"escalations"`
}

func (h *Handler) handleEscalate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req escalateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	signalID, err := id.ParseSignalID(req.SignalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	e, err := h.escalations.Escalate(ctx, service.EscalateRequest{
		SignalID:     signalID,
		PartnerID:    id.PartnerID(partner.GetPartnerID(ctx)),
		Type:         models.Type(req.EscalationType),
		Jurisdiction: req.Jurisdiction,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to record escalation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e, err := h.escalations.Get(ctx, id.EscalationID(chi.URLParam(r, "escalationID")))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load escalation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleSeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e, err := h.escalations.Seal(ctx, id.EscalationID(chi.URLParam(r, "escalationID")))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to seal escalation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleReclassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req reclassifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.escalations.Reclassify(ctx, id.EscalationID(chi.URLParam(r, "escalationID")), models.Type(req.EscalationType))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to reclassify escalation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := h.escalations.History(ctx, id.SignalID(chi.URLParam(r, "signalID")))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list escalations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{Escalations: history})
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
