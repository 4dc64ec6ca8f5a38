package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"beacon/internal/legal/handler/mocks"
	"beacon/internal/legal/models"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type LegalHandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
}

func TestLegalHandlerSuite(t *testing.T) {
	suite.Run(t, new(LegalHandlerSuite))
}

func (s *LegalHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.svc, logger, testutil.StaticOperator("counsel-4")).Register(s.router)
}

func (s *LegalHandlerSuite) request(method, path, body string) *http.Request {
	req := testutil.NewRequestWithBody(s.T(), method, path, body)
	req.Header.Set("Authorization", "Bearer "+testutil.OperatorToken)
	return req
}

var received = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func legalRequest(status models.Status) *models.LegalRequest {
	return &models.LegalRequest{
		ID:                "lr_1",
		RequestType:       models.TypeSubpoena,
		RequestingAgency:  "Los Angeles County DA",
		Jurisdiction:      "US-CA",
		DocumentReference: "BA-2026-0141",
		ReceivedAt:        received,
		SignalIDs:         []id.SignalID{"sig_1"},
		Status:            status,
	}
}

func (s *LegalHandlerSuite) TestSubmit() {
	s.Run("creates a pending request", func() {
		s.svc.EXPECT().Submit(gomock.Any(), models.Submission{
			RequestType:       models.TypeSubpoena,
			RequestingAgency:  "Los Angeles County DA",
			Jurisdiction:      "US-CA",
			DocumentReference: "BA-2026-0141",
			SignalIDs:         []id.SignalID{"sig_1"},
		}).Return(legalRequest(models.StatusPendingReview), nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/legal-requests",
			`{"requestType":"subpoena","requestingAgency":"Los Angeles County DA","jurisdiction":"US-CA","documentReference":"BA-2026-0141","signalIds":["sig_1"]}`))

		s.Equal(http.StatusCreated, rr.Code)
		body := testutil.DecodeBody[map[string]any](s.T(), rr)
		s.Equal("pending_legal_review", body["status"])
		s.Nil(body["fulfilledAt"])
		s.Nil(body["fulfilledBy"])
	})

	s.Run("blank signal id is rejected before the service", func() {
		rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/legal-requests",
			`{"requestType":"warrant","requestingAgency":"NYPD","jurisdiction":"US-NY","documentReference":"W-1","signalIds":[" "]}`))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("requires an operator token", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/legal-requests", `{}`))
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *LegalHandlerSuite) TestResolveAndFulfill() {
	s.Run("resolve passes the decision", func() {
		s.svc.EXPECT().Resolve(gomock.Any(), id.LegalRequestID("lr_1"), models.DecisionApproved).
			Return(legalRequest(models.StatusApproved), nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/legal-requests/lr_1/resolve",
			map[string]string{"decision": "approved"})
		req.Header.Set("Authorization", "Bearer "+testutil.OperatorToken)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("fulfilled by the authenticated operator", func() {
		done := legalRequest(models.StatusFulfilled)
		by := "counsel-4"
		at := received.Add(48 * time.Hour)
		done.FulfilledBy, done.FulfilledAt = &by, &at
		s.svc.EXPECT().Fulfill(gomock.Any(), id.LegalRequestID("lr_1"), "counsel-4").Return(done, nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/legal-requests/lr_1/fulfill", ""))
		s.Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeBody[map[string]any](s.T(), rr)
		s.Equal("counsel-4", body["fulfilledBy"])
	})

	s.Run("fulfilling a pending request is a 409", func() {
		s.svc.EXPECT().Fulfill(gomock.Any(), id.LegalRequestID("lr_1"), "counsel-4").
			Return(nil, dErrors.New(dErrors.CodeInvalidState,
				"cannot transition legal request from pending_legal_review to fulfilled"))

		rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/legal-requests/lr_1/fulfill", ""))
		s.Equal(http.StatusConflict, rr.Code)
		s.Equal(string(dErrors.CodeInvalidState), testutil.ErrorCode(s.T(), rr))
	})
}

func (s *LegalHandlerSuite) TestQueries() {
	s.Run("get missing request is a 404", func() {
		s.svc.EXPECT().Get(gomock.Any(), id.LegalRequestID("lr_x")).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "legal request not found"))

		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/legal-requests/lr_x", ""))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("lists requests referencing a signal", func() {
		s.svc.EXPECT().ListBySignal(gomock.Any(), id.SignalID("sig_1")).
			Return([]*models.LegalRequest{legalRequest(models.StatusApproved)}, nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/signals/sig_1/legal-requests", ""))
		s.Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeBody[map[string][]map[string]any](s.T(), rr)
		s.Len(body["legalRequests"], 1)
	})
}

func (s *LegalHandlerSuite) TestManifest() {
	m := &models.Manifest{
		RequestID:   "lr_1",
		RequestType: models.TypeSubpoena,
		Status:      models.StatusApproved,
		GeneratedAt: received,
		Entries:     []models.ManifestEntry{{SignalID: "sig_1"}},
	}

	s.Run("json by default", func() {
		s.svc.EXPECT().Manifest(gomock.Any(), id.LegalRequestID("lr_1")).Return(m, nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/legal-requests/lr_1/manifest", ""))
		s.Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeBody[map[string]any](s.T(), rr)
		s.Equal("lr_1", body["requestId"])
	})

	s.Run("xlsx attachment", func() {
		s.svc.EXPECT().Manifest(gomock.Any(), id.LegalRequestID("lr_1")).Return(m, nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/legal-requests/lr_1/manifest?format=xlsx", ""))
		s.Equal(http.StatusOK, rr.Code)
		s.Equal(xlsxContentType, rr.Header().Get("Content-Type"))
		s.Contains(rr.Header().Get("Content-Disposition"), "manifest-lr_1.xlsx")
		s.Equal("PK", rr.Body.String()[:2], "xlsx is a zip container")
	})

	s.Run("unknown format is a 400", func() {
		s.svc.EXPECT().Manifest(gomock.Any(), id.LegalRequestID("lr_1")).Return(m, nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/legal-requests/lr_1/manifest?format=pdf", ""))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}
