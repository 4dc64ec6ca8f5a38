package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"beacon/internal/jurisdiction"
	"beacon/internal/partner/credentials"
	"beacon/internal/partner/models"
	"beacon/internal/partner/store"
	"beacon/internal/payload"
	dErrors "beacon/pkg/domain-errors"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/audit/publisher"
	auditmemory "beacon/pkg/platform/audit/store/memory"
)

// =============================================================================
// Partner Service Test Suite
// =============================================================================

type PartnerServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	audit   *auditmemory.InMemoryStore
	service *Service
}

func TestPartnerServiceSuite(t *testing.T) {
	suite.Run(t, new(PartnerServiceSuite))
}

func (s *PartnerServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()

	var err error
	s.service, err = New(s.store,
		WithHasher(credentials.NewHasher(bcrypt.MinCost)),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
	)
	s.Require().NoError(err)
}

func partnerA() RegisterRequest {
	return RegisterRequest{
		ID:            "partner_a",
		Name:          "National Crisis Line",
		WebhookURL:    "https://a.example/webhook",
		APIKey:        "secret-a",
		Jurisdictions: []string{"US"},
		Priority:      0,
		Capabilities:  []string{"crisis_counseling", "mandatory_reporting"},
	}
}

func partnerB() RegisterRequest {
	return RegisterRequest{
		ID:            "partner_b",
		Name:          "California Youth Support",
		WebhookURL:    "https://b.example/webhook",
		APIKey:        "secret-b",
		Jurisdictions: []string{"US-CA"},
		Priority:      1,
		Capabilities:  []string{"crisis_counseling"},
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *PartnerServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "partner store is required")
	})
}

// =============================================================================
// Register Tests
// =============================================================================

func (s *PartnerServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("stores only the key hash", func() {
		p, raw, err := s.service.Register(ctx, partnerA())
		s.Require().NoError(err)
		s.Equal("secret-a", raw)
		s.NotEqual("secret-a", p.APIKeyHash)
		s.NoError(bcrypt.CompareHashAndPassword([]byte(p.APIKeyHash), []byte("secret-a")))
		s.True(p.Active)
	})

	s.Run("duplicate id is a conflict", func() {
		_, _, err := s.service.Register(ctx, partnerA())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("generates a key when none supplied", func() {
		req := partnerB()
		req.APIKey = ""
		_, raw, err := s.service.Register(ctx, req)
		s.Require().NoError(err)
		s.NotEmpty(raw)
		s.NoError(s.service.VerifyPartnerKey(ctx, "partner_b", raw))
	})

	s.Run("rejects http webhook", func() {
		req := partnerA()
		req.ID = "partner_http"
		req.WebhookURL = "http://insecure.example"
		_, _, err := s.service.Register(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects reporting capability without mandatory_reporting", func() {
		req := partnerB()
		req.ID = "partner_c"
		req.MandatoryReporting = &models.MandatoryReportingCapability{
			SupportedJurisdictions: []jurisdiction.Coverage{{
				JurisdictionCode: "US-CA", MandatoryReporterCategories: []string{"teachers"}, ReportingAgency: "DCFS",
			}},
			ReportingProtocol: models.ProtocolPartnerDirect,
		}
		_, _, err := s.service.Register(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("normalizes jurisdictions and capabilities", func() {
		req := partnerB()
		req.ID = "partner_d"
		req.Jurisdictions = []string{" US-CA", "US-CA", "US-NY "}
		req.Capabilities = []string{"Crisis_Counseling", "crisis_counseling "}
		p, _, err := s.service.Register(ctx, req)
		s.Require().NoError(err)
		s.Equal([]string{"US-CA", "US-NY"}, p.Jurisdictions)
		s.Len(p.Capabilities, 1)
	})

	s.Run("emits partner_registered", func() {
		events, err := s.audit.ListBySubject(ctx, "partner_a")
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(string(audit.EventPartnerRegistered), events[0].Action)
	})
}

func (s *PartnerServiceSuite) TestRegisterReportingCapability() {
	ctx := context.Background()
	_, _, err := s.service.Register(ctx, partnerA())
	s.Require().NoError(err)

	s.Run("coverage outside partner jurisdictions rejected", func() {
		err := s.service.RegisterReportingCapability(ctx, &models.MandatoryReportingCapability{
			PartnerID: "partner_a",
			SupportedJurisdictions: []jurisdiction.Coverage{{
				JurisdictionCode: "UK", MandatoryReporterCategories: []string{"teachers"}, ReportingAgency: "NSPCC",
			}},
			ReportingProtocol: models.ProtocolPartnerCoordinated,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("valid coverage saved", func() {
		err := s.service.RegisterReportingCapability(ctx, &models.MandatoryReportingCapability{
			PartnerID: "partner_a",
			SupportedJurisdictions: []jurisdiction.Coverage{{
				JurisdictionCode: "US-CA", MandatoryReporterCategories: []string{"teachers"}, ReportingAgency: "DCFS",
			}},
			ReportingProtocol:        models.ProtocolPartnerCoordinated,
			RequiresExtendedBlackout: true,
		})
		s.Require().NoError(err)

		m, err := s.service.ReportingCapability(ctx, "partner_a")
		s.Require().NoError(err)
		s.True(m.RequiresExtendedBlackout)
	})

	s.Run("unknown partner is not found", func() {
		err := s.service.RegisterReportingCapability(ctx, &models.MandatoryReportingCapability{PartnerID: "ghost"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("partner without capability returns nil", func() {
		m, err := s.service.ReportingCapability(ctx, "nobody")
		s.NoError(err)
		s.Nil(m)
	})
}

// =============================================================================
// Key Verification Tests
// =============================================================================

func (s *PartnerServiceSuite) TestVerifyPartnerKey() {
	ctx := context.Background()
	_, _, err := s.service.Register(ctx, partnerA())
	s.Require().NoError(err)

	s.Run("valid key", func() {
		s.NoError(s.service.VerifyPartnerKey(ctx, "partner_a", "secret-a"))
	})

	s.Run("wrong key, unknown partner and bad id look identical", func() {
		for _, tc := range [][2]string{{"partner_a", "nope"}, {"ghost", "secret-a"}, {"", "secret-a"}} {
			err := s.service.VerifyPartnerKey(ctx, tc[0], tc[1])
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
			s.Equal("invalid partner credentials", err.(*dErrors.Error).Message)
		}
	})

	s.Run("failures are audited as security events", func() {
		events, err := s.audit.ListBySubject(ctx, "partner_a")
		s.Require().NoError(err)
		var failed int
		for _, e := range events {
			if e.Action == string(audit.EventPartnerAuthFailed) {
				failed++
				s.Equal(audit.CategorySecurity, e.Category)
			}
		}
		s.Equal(1, failed)
	})

	s.Run("deactivated partner rejected", func() {
		s.Require().NoError(s.service.Deactivate(ctx, "partner_a"))
		err := s.service.VerifyPartnerKey(ctx, "partner_a", "secret-a")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// =============================================================================
// Selection Tests
// =============================================================================

func (s *PartnerServiceSuite) TestSelectPartners() {
	ctx := context.Background()
	_, _, err := s.service.Register(ctx, partnerA())
	s.Require().NoError(err)
	_, _, err = s.service.Register(ctx, partnerB())
	s.Require().NoError(err)

	p := &payload.SignalRoutingPayload{
		SignalID:        "sig_1",
		ChildAge:        12,
		SignalTimestamp: time.Now(),
		Jurisdiction:    "US-CA",
	}

	s.Run("mandatory reporting selects only partner A", func() {
		got, err := s.service.SelectPartners(ctx, p, []models.Capability{models.CapabilityMandatoryReporting})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("partner_a", got[0].ID.String())
	})

	s.Run("counseling selects both in priority order", func() {
		got, err := s.service.SelectPartners(ctx, p, []models.Capability{models.CapabilityCrisisCounseling})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal("partner_a", got[0].ID.String())
		s.Equal("partner_b", got[1].ID.String())
	})

	s.Run("deactivated partners drop out", func() {
		s.Require().NoError(s.service.Deactivate(ctx, "partner_a"))
		got, err := s.service.SelectPartners(ctx, p, []models.Capability{models.CapabilityCrisisCounseling})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("partner_b", got[0].ID.String())
	})
}
