package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"beacon/internal/legal/manifest"
	"beacon/internal/legal/models"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/auth"
	request "beacon/pkg/platform/middleware/request"
	"beacon/pkg/requestcontext"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service defines the legal workflow operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, sub models.Submission) (*models.LegalRequest, error)
	Resolve(ctx context.Context, requestID id.LegalRequestID, decision models.Decision) (*models.LegalRequest, error)
	Fulfill(ctx context.Context, requestID id.LegalRequestID, fulfilledBy string) (*models.LegalRequest, error)
	Get(ctx context.Context, requestID id.LegalRequestID) (*models.LegalRequest, error)
	ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.LegalRequest, error)
	Manifest(ctx context.Context, requestID id.LegalRequestID) (*models.Manifest, error)
}

type Handler struct {
	logger       *slog.Logger
	legal        Service
	jwtValidator auth.JWTValidator
}

func New(legal Service, logger *slog.Logger, jwtValidator auth.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		legal:        legal,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the compliance endpoints. All of them require an
// operator token; the fulfilling operator is taken from the token.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOperator(h.jwtValidator, h.logger))
		r.Post("/legal-requests", h.handleSubmit)
		r.Get("/legal-requests/{requestID}", h.handleGet)
		r.Post("/legal-requests/{requestID}/resolve", h.handleResolve)
		r.Post("/legal-requests/{requestID}/fulfill", h.handleFulfill)
		r.Get("/legal-requests/{requestID}/manifest", h.handleManifest)
		r.Get("/signals/{signalID}/legal-requests", h.handleListBySignal)
	})
}

type submitRequest struct {
	RequestType       string   `json:"requestType"`
	RequestingAgency  string   `json:"requestingAgency"`
	Jurisdiction      string   `json:"jurisdiction"`
	DocumentReference string   `json:"documentReference"`
	SignalIDs         []string `json:"signalIds"`
}

type resolveRequest struct {
	Decision string `json:"decision"`
}

type listResponse struct {
	LegalRequests []*models.LegalRequest `json:"legalRequests"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	signals := make([]id.SignalID, 0, len(req.SignalIDs))
	for _, raw := range req.SignalIDs {
		signalID, err := id.ParseSignalID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		signals = append(signals, signalID)
	}

	lr, err := h.legal.Submit(ctx, models.Submission{
		RequestType:       models.RequestType(req.RequestType),
		RequestingAgency:  req.RequestingAgency,
		Jurisdiction:      req.Jurisdiction,
		DocumentReference: req.DocumentReference,
		SignalIDs:         signals,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to submit legal request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, lr)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lr, err := h.legal.Get(ctx, requestID(r))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load legal request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lr)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req resolveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	lr, err := h.legal.Resolve(ctx, requestID(r), models.Decision(req.Decision))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to resolve legal request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lr)
}

func (h *Handler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lr, err := h.legal.Fulfill(ctx, requestID(r), requestcontext.OperatorID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to fulfill legal request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lr)
}

func (h *Handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.legal.Manifest(ctx, requestID(r))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to build legal manifest", err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		httputil.WriteJSON(w, http.StatusOK, m)
	case "xlsx":
		var buf bytes.Buffer
		if err := manifest.WriteXLSX(&buf, m); err != nil {
			h.writeServiceError(ctx, w, "failed to render legal manifest",
				dErrors.Wrap(err, dErrors.CodeInternal, "failed to render manifest"))
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="manifest-`+m.RequestID.String()+`.xlsx"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "format must be json or xlsx"))
	}
}

func (h *Handler) handleListBySignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.legal.ListBySignal(ctx, id.SignalID(chi.URLParam(r, "signalID")))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list legal requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{LegalRequests: out})
}

func requestID(r *http.Request) id.LegalRequestID {
	return id.LegalRequestID(chi.URLParam(r, "requestID"))
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
