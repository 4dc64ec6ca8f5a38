package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"beacon/internal/isolation/models"
	"beacon/internal/isolation/service"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/auth"
	request "beacon/pkg/platform/middleware/request"
)

// HeaderAuthorizationID carries the external authorization reference
// (court order, retention job) that permits reading or deleting a record.
const HeaderAuthorizationID = "X-Authorization-Id"

type Service interface {
	Store(ctx context.Context, req service.StoreRequest) (*models.IsolatedSignal, error)
	Get(ctx context.Context, signalID id.SignalID, authorizationID string) (*models.IsolatedSignal, error)
	Delete(ctx context.Context, signalID id.SignalID, authorizationID string) error
	Verify(ctx context.Context, signalID id.SignalID) (bool, error)
}

type Handler struct {
	logger       *slog.Logger
	isolation    Service
	jwtValidator auth.JWTValidator
}

func New(isolation Service, logger *slog.Logger, jwtValidator auth.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		isolation:    isolation,
		jwtValidator: jwtValidator,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOperator(h.jwtValidator, h.logger))
		r.Post("/isolated-signals", h.handleStore)
		r.Get("/isolated-signals/{signalID}", h.handleGet)
		r.Delete("/isolated-signals/{signalID}", h.handleDelete)
		r.Get("/isolated-signals/{signalID}/verify", h.handleVerify)
	})
}

type storeRequest struct {
	SignalID         string `json:"signalId"`
	ChildID          string `json:"childId"`
	EncryptedPayload string `json:"encryptedPayload"`
	EncryptionKeyID  string `json:"encryptionKeyId"`
	Jurisdiction     string `json:"jurisdiction"`
}

type verifyResponse struct {
	SignalID id.SignalID `json:"signalId"`
	Isolated bool        `json:"isolated"`
}

func (h *Handler) handleStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req storeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	signalID, err := id.ParseSignalID(req.SignalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sig, err := h.isolation.Store(ctx, service.StoreRequest{
		SignalID:         signalID,
		ChildID:          req.ChildID,
		EncryptedPayload: req.EncryptedPayload,
		EncryptionKeyID:  req.EncryptionKeyID,
		Jurisdiction:     req.Jurisdiction,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to store isolated signal", err)
		return
	}
	// The ciphertext is not echoed back.
	httputil.WriteJSON(w, http.StatusCreated, sig.Metadata())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sig, err := h.isolation.Get(ctx, id.SignalID(chi.URLParam(r, "signalID")), r.Header.Get(HeaderAuthorizationID))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to read isolated signal", err)
		return
	}
	if sig == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "isolated signal not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sig)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.isolation.Delete(ctx, id.SignalID(chi.URLParam(r, "signalID")), r.Header.Get(HeaderAuthorizationID))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to delete isolated signal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	signalID := id.SignalID(chi.URLParam(r, "signalID"))
	ok, err := h.isolation.Verify(ctx, signalID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to verify isolated signal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{SignalID: signalID, Isolated: ok})
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
