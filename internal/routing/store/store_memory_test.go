package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/routing/models"
	"beacon/pkg/platform/sentinel"
)

var t0 = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func TestInMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	r := models.NewResult("sig_1", "partner_a", t0)

	require.NoError(t, s.Create(ctx, r))
	assert.ErrorIs(t, s.Create(ctx, r), sentinel.ErrConflict)

	got, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	got.MarkFailed(1, "mutated copy")
	again, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status, "store must hand out copies")

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_UpdateAndQueries(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	a := models.NewResult("sig_1", "partner_a", t0)
	b := models.NewResult("sig_1", "partner_b", t0.Add(time.Second))
	c := models.NewResult("sig_2", "partner_a", t0)
	for _, r := range []*models.Result{a, b, c} {
		require.NoError(t, s.Create(ctx, r))
	}

	b.MarkFailed(3, "timeout")
	require.NoError(t, s.Update(ctx, b))
	assert.ErrorIs(t, s.Update(ctx, models.NewResult("sig_9", "p", t0)), sentinel.ErrNotFound)

	bySignal, err := s.ListBySignal(ctx, "sig_1")
	require.NoError(t, err)
	require.Len(t, bySignal, 2)
	assert.Equal(t, a.ID, bySignal[0].ID)
	assert.Equal(t, b.ID, bySignal[1].ID)

	failed, err := s.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)
	assert.Equal(t, 3, failed[0].RetryCount)

	none, err := s.ListBySignal(ctx, "sig_none")
	require.NoError(t, err)
	assert.Empty(t, none)
}
