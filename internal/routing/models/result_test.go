package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "beacon/pkg/domain-errors"
)

func ptr(s string) *string { return &s }

func TestResultLifecycle(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	t.Run("new result is pending", func(t *testing.T) {
		r := NewResult("sig_1", "partner_a", now)
		assert.Equal(t, StatusPending, r.Status)
		assert.Zero(t, r.RetryCount)
		assert.False(t, r.Acknowledged)
		assert.NotEmpty(t, r.ID)
	})

	t.Run("sent then acknowledged", func(t *testing.T) {
		r := NewResult("sig_1", "partner_a", now)
		r.MarkSent(2)
		assert.Equal(t, 2, r.RetryCount)

		changed, err := r.Acknowledge(ptr("case-77"), now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusAcknowledged, r.Status)
		assert.True(t, r.Acknowledged)
		require.NotNil(t, r.AcknowledgedAt)
		assert.Equal(t, now.Add(time.Minute), *r.AcknowledgedAt)
		assert.Equal(t, "case-77", *r.PartnerReferenceID)
	})

	t.Run("repeat acknowledgement", func(t *testing.T) {
		r := NewResult("sig_1", "partner_a", now)
		r.MarkSent(0)
		_, err := r.Acknowledge(ptr("case-1"), now)
		require.NoError(t, err)

		changed, err := r.Acknowledge(ptr("case-1"), now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, now, *r.AcknowledgedAt)

		_, err = r.Acknowledge(ptr("case-2"), now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("failed and pending cannot be acknowledged", func(t *testing.T) {
		pending := NewResult("sig_1", "partner_a", now)
		_, err := pending.Acknowledge(nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

		failed := NewResult("sig_1", "partner_a", now)
		failed.MarkFailed(3, "webhook returned 503")
		_, err = failed.Acknowledge(nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		assert.Equal(t, "webhook returned 503", *failed.LastError)
	})

	t.Run("only failed results reopen", func(t *testing.T) {
		r := NewResult("sig_1", "partner_a", now)
		assert.Error(t, r.BeginRetry())

		r.MarkFailed(3, "timeout")
		require.NoError(t, r.BeginRetry())
		assert.Equal(t, StatusPending, r.Status)
		assert.Equal(t, 3, r.RetryCount)
	})
}
