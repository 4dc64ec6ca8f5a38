package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/legal/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

var t0 = time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)

func newRequest(t *testing.T, at time.Time, signals ...id.SignalID) *models.LegalRequest {
	t.Helper()
	r, err := models.NewLegalRequest(models.Submission{
		RequestType:       models.TypeWarrant,
		RequestingAgency:  "NYPD Special Victims",
		Jurisdiction:      "US-NY",
		DocumentReference: "W-7781",
		SignalIDs:         signals,
	}, at)
	require.NoError(t, err)
	return r
}

func TestInMemoryStore_ListBySignal(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	later := newRequest(t, t0.Add(time.Hour), "sig_1")
	earlier := newRequest(t, t0, "sig_2", "sig_1")
	unrelated := newRequest(t, t0, "sig_3")
	for _, r := range []*models.LegalRequest{later, earlier, unrelated} {
		require.NoError(t, s.Create(ctx, r))
	}

	out, err := s.ListBySignal(ctx, "sig_1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, earlier.ID, out[0].ID)
	assert.Equal(t, later.ID, out[1].ID)
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	r := newRequest(t, t0, "sig_1")
	require.NoError(t, s.Create(ctx, r))

	got, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	got.SignalIDs[0] = "tampered"
	got.Status = models.StatusFulfilled

	again, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, id.SignalID("sig_1"), again.SignalIDs[0])
	assert.Equal(t, models.StatusPendingReview, again.Status)
}

func TestInMemoryStore_CompareAndSwapStatus(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	r := newRequest(t, t0, "sig_1")
	require.NoError(t, s.Create(ctx, r))

	approved := *r
	require.NoError(t, approved.Resolve(models.DecisionApproved, t0))
	denied := *r
	require.NoError(t, denied.Resolve(models.DecisionDenied, t0))

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, candidate := range []*models.LegalRequest{&approved, &denied} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.CompareAndSwapStatus(ctx, candidate, models.StatusPendingReview)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, sentinel.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one resolution may win")

	missing := newRequest(t, t0, "sig_9")
	assert.ErrorIs(t, s.CompareAndSwapStatus(ctx, missing, models.StatusPendingReview), sentinel.ErrNotFound)
}

var requestColumns = []string{"id", "request_type", "requesting_agency", "jurisdiction", "document_reference",
	"received_at", "signal_ids", "status", "resolved_at", "fulfilled_at", "fulfilled_by"}

func TestPostgresStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := newRequest(t, t0, "sig_1", "sig_2")
	mock.ExpectExec(`INSERT INTO legal_requests`).
		WithArgs(r.ID.String(), "warrant", "NYPD Special Victims", "US-NY", "W-7781", t0,
			sqlmock.AnyArg(), "pending_legal_review", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgres(db).Create(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fulfilledAt := t0.Add(48 * time.Hour)
	mock.ExpectQuery(`FROM legal_requests\s+WHERE id = \$1`).WithArgs("lr_1").
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow("lr_1", "subpoena", "LA DA", "US-CA", "BA-1", t0, "{sig_1,sig_2}", "fulfilled",
				t0.Add(time.Hour), fulfilledAt, "officer-1"))

	r, err := NewPostgres(db).FindByID(context.Background(), "lr_1")
	require.NoError(t, err)
	assert.Equal(t, []id.SignalID{"sig_1", "sig_2"}, r.SignalIDs)
	assert.Equal(t, models.StatusFulfilled, r.Status)
	require.NotNil(t, r.FulfilledBy)
	assert.Equal(t, "officer-1", *r.FulfilledBy)
	assert.Equal(t, fulfilledAt, *r.FulfilledAt)
}

func TestPostgresStore_ListBySignal_UsesArrayContainment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`signal_ids @> ARRAY\[\$1\]::TEXT\[\] ORDER BY received_at, id`).WithArgs("sig_1").
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow("lr_1", "warrant", "NYPD", "US-NY", "W-1", t0, "{sig_1}", "pending_legal_review", nil, nil, nil))

	out, err := NewPostgres(db).ListBySignal(context.Background(), "sig_1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].ResolvedAt)
	assert.Nil(t, out[0].FulfilledBy)
}

func TestPostgresStore_CompareAndSwapStatus(t *testing.T) {
	t.Run("matches on the expected prior status", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		r := newRequest(t, t0, "sig_1")
		require.NoError(t, r.Resolve(models.DecisionApproved, t0))
		mock.ExpectExec(`UPDATE legal_requests`).
			WithArgs(r.ID.String(), "approved", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "pending_legal_review").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewPostgres(db).CompareAndSwapStatus(context.Background(), r, models.StatusPendingReview))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race reports invalid state", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		r := newRequest(t, t0, "sig_1")
		mock.ExpectExec(`UPDATE legal_requests`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err = NewPostgres(db).CompareAndSwapStatus(context.Background(), r, models.StatusApproved)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})
}
