package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"beacon/internal/blackout/store"
	dErrors "beacon/pkg/domain-errors"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/audit/publisher"
	auditmemory "beacon/pkg/platform/audit/store/memory"
	"beacon/pkg/requestcontext"
)

// =============================================================================
// Blackout Service Test Suite
// =============================================================================

type BlackoutServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	audit   *auditmemory.InMemoryStore
	service *Service
	now     time.Time
}

func TestBlackoutServiceSuite(t *testing.T) {
	suite.Run(t, new(BlackoutServiceSuite))
}

func (s *BlackoutServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()
	s.now = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	var err error
	s.service, err = New(s.store, WithAuditPublisher(publisher.NewPublisher(s.audit)))
	s.Require().NoError(err)
}

func (s *BlackoutServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *BlackoutServiceSuite) TestNew() {
	_, err := New(nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "blackout store is required")
}

// =============================================================================
// Start Tests
// =============================================================================

func (s *BlackoutServiceSuite) TestStart() {
	s.Run("default window is 48 hours", func() {
		rec, started, err := s.service.Start(s.at(0), "sig_default", 0)
		s.Require().NoError(err)
		s.True(started)
		s.WithinDuration(s.now.Add(48*time.Hour), rec.ExpiresAt, time.Second)
		s.Equal(s.now, rec.StartedAt)
	})

	s.Run("configured default applies", func() {
		svc, err := New(store.NewInMemoryStore(), WithDefaultDuration(6*time.Hour))
		s.Require().NoError(err)
		rec, _, err := svc.Start(s.at(0), "sig_cfg", 0)
		s.Require().NoError(err)
		s.Equal(s.now.Add(6*time.Hour), rec.ExpiresAt)
	})

	s.Run("restart while active is idempotent", func() {
		first, _, err := s.service.Start(s.at(0), "sig_idem", 0)
		s.Require().NoError(err)

		again, started, err := s.service.Start(s.at(5*time.Hour), "sig_idem", 0)
		s.Require().NoError(err)
		s.False(started)
		s.Equal(first.ID, again.ID)
		s.Equal(first.ExpiresAt, again.ExpiresAt, "clock must not reset")

		events, err := s.audit.ListBySubject(context.Background(), "sig_idem")
		s.Require().NoError(err)
		s.Len(events, 1)
		s.Equal(string(audit.EventBlackoutStarted), events[0].Action)
	})

	s.Run("rejects missing signal and negative duration", func() {
		_, _, err := s.service.Start(s.at(0), "", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, _, err = s.service.Start(s.at(0), "sig_neg", -time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// IsBlacked Tests
// =============================================================================

func (s *BlackoutServiceSuite) TestIsBlacked() {
	_, _, err := s.service.Start(s.at(0), "sig_window", 0)
	s.Require().NoError(err)

	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"at start", 0, true},
		{"inside window", 47 * time.Hour, true},
		{"at expiry", 48 * time.Hour, false},
		{"after expiry", 49 * time.Hour, false},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			got, err := s.service.IsBlacked(s.at(tc.offset), "sig_window")
			s.Require().NoError(err)
			s.Equal(tc.want, got)
		})
	}

	s.Run("unknown signal is not blacked", func() {
		got, err := s.service.IsBlacked(s.at(0), "sig_unknown")
		s.Require().NoError(err)
		s.False(got)
	})
}

// =============================================================================
// Extend / End Tests
// =============================================================================

func (s *BlackoutServiceSuite) TestExtend() {
	s.Run("extends active window", func() {
		_, _, err := s.service.Start(s.at(0), "sig_ext", 0)
		s.Require().NoError(err)

		rec, err := s.service.Extend(s.at(time.Hour), "sig_ext", "partner_a", 72*time.Hour)
		s.Require().NoError(err)
		s.Equal(s.now.Add(120*time.Hour), rec.ExpiresAt)
		s.Require().NotNil(rec.ExtendedBy)
		s.Equal("partner_a", rec.ExtendedBy.String())

		blacked, err := s.service.IsBlacked(s.at(100*time.Hour), "sig_ext")
		s.Require().NoError(err)
		s.True(blacked)
	})

	s.Run("no active window is not found", func() {
		_, err := s.service.Extend(s.at(0), "sig_none", "partner_a", time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("requires partner and positive duration", func() {
		_, err := s.service.Extend(s.at(0), "sig_ext", "", time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.Extend(s.at(0), "sig_ext", "partner_a", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *BlackoutServiceSuite) TestEnd() {
	_, _, err := s.service.Start(s.at(0), "sig_end", 0)
	s.Require().NoError(err)

	s.Require().NoError(s.service.End(s.at(time.Hour), "sig_end"))

	blacked, err := s.service.IsBlacked(s.at(2*time.Hour), "sig_end")
	s.Require().NoError(err)
	s.False(blacked)

	err = s.service.End(s.at(2*time.Hour), "sig_end")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, started, err := s.service.Start(s.at(3*time.Hour), "sig_end", 0)
	s.Require().NoError(err)
	s.True(started, "a new window may open after an operator override")

	ended := s.audit.ListByAction(audit.EventBlackoutEnded)
	s.Require().Len(ended, 1)
	s.Equal("operator_override", ended[0].Reason)
}

func (s *BlackoutServiceSuite) TestRelease_RecordsReason() {
	_, _, err := s.service.Start(s.at(0), "sig_rel", 0)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Release(s.at(time.Minute), "sig_rel", "no_partner_available"))

	blacked, err := s.service.IsBlacked(s.at(2*time.Minute), "sig_rel")
	s.Require().NoError(err)
	s.False(blacked)
	ended := s.audit.ListByAction(audit.EventBlackoutEnded)
	s.Require().Len(ended, 1)
	s.Equal("no_partner_available", ended[0].Reason)
	s.Equal("sig_rel", ended[0].Subject)
}
