package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"beacon/internal/isolation/handler/mocks"
	"beacon/internal/isolation/models"
	"beacon/internal/isolation/service"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type IsolationHandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
}

func TestIsolationHandlerSuite(t *testing.T) {
	suite.Run(t, new(IsolationHandlerSuite))
}

func (s *IsolationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.svc, logger, testutil.StaticOperator("officer-1")).Register(s.router)
}

func (s *IsolationHandlerSuite) request(method, path, body string) *http.Request {
	req := testutil.NewRequestWithBody(s.T(), method, path, body)
	req.Header.Set("Authorization", "Bearer "+testutil.OperatorToken)
	return req
}

func isolated() *models.IsolatedSignal {
	return &models.IsolatedSignal{
		ID:                "sig_2",
		AnonymizedChildID: "anon_0123456789abcdef0123456789abcdef",
		EncryptedPayload:  "c2VhbGVk",
		EncryptionKeyID:   "kms_key_7",
		CreatedAt:         time.Date(2026, 3, 14, 23, 5, 0, 0, time.UTC),
		Jurisdiction:      "US-CA",
	}
}

func (s *IsolationHandlerSuite) TestStore() {
	s.Run("returns metadata without the ciphertext", func() {
		s.svc.EXPECT().Store(gomock.Any(), service.StoreRequest{
			SignalID:         "sig_2",
			ChildID:          "child_9",
			EncryptedPayload: "c2VhbGVk",
			EncryptionKeyID:  "kms_key_7",
			Jurisdiction:     "US-CA",
		}).Return(isolated(), nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/isolated-signals",
			`{"signalId":"sig_2","childId":"child_9","encryptedPayload":"c2VhbGVk","encryptionKeyId":"kms_key_7","jurisdiction":"US-CA"}`))

		s.Equal(http.StatusCreated, rr.Code)
		s.NotContains(rr.Body.String(), "c2VhbGVk")
		s.NotContains(rr.Body.String(), "child_9")
		body := testutil.DecodeBody[map[string]any](s.T(), rr)
		s.Equal("sig_2", body["signalId"])
	})

	s.Run("requires an operator token", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/isolated-signals", `{}`)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *IsolationHandlerSuite) TestGet() {
	s.Run("passes the authorization header through", func() {
		s.svc.EXPECT().Get(gomock.Any(), id.SignalID("sig_2"), "court_order_55").Return(isolated(), nil)

		req := s.request(http.MethodGet, "/isolated-signals/sig_2", "")
		req.Header.Set(HeaderAuthorizationID, "court_order_55")
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeBody[map[string]any](s.T(), rr)
		s.Equal("kms_key_7", body["encryptionKeyId"])
	})

	s.Run("missing authorization is a 401", func() {
		s.svc.EXPECT().Get(gomock.Any(), id.SignalID("sig_2"), "").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "authorization id is required"))

		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/isolated-signals/sig_2", ""))
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("absent record is a 404", func() {
		s.svc.EXPECT().Get(gomock.Any(), id.SignalID("sig_x"), "court_order_55").Return(nil, nil)

		req := s.request(http.MethodGet, "/isolated-signals/sig_x", "")
		req.Header.Set(HeaderAuthorizationID, "court_order_55")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("internal errors are not leaked", func() {
		s.svc.EXPECT().Get(gomock.Any(), id.SignalID("sig_2"), "court_order_55").
			Return(nil, dErrors.Wrap(errors.New("dial tcp: refused"), dErrors.CodeInternal, "failed to read isolated signal"))

		req := s.request(http.MethodGet, "/isolated-signals/sig_2", "")
		req.Header.Set(HeaderAuthorizationID, "court_order_55")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusInternalServerError, rr.Code)
		s.NotContains(rr.Body.String(), "dial tcp")
	})
}

func (s *IsolationHandlerSuite) TestDeleteAndVerify() {
	s.Run("delete returns no content", func() {
		s.svc.EXPECT().Delete(gomock.Any(), id.SignalID("sig_2"), "retention_job").Return(nil)

		req := s.request(http.MethodDelete, "/isolated-signals/sig_2", "")
		req.Header.Set(HeaderAuthorizationID, "retention_job")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusNoContent, rr.Code)
	})

	s.Run("verify reports presence", func() {
		s.svc.EXPECT().Verify(gomock.Any(), id.SignalID("sig_2")).Return(true, nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/isolated-signals/sig_2/verify", ""))
		s.Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeBody[map[string]any](s.T(), rr)
		s.Equal(true, body["isolated"])
		s.Equal("sig_2", body["signalId"])
	})
}
