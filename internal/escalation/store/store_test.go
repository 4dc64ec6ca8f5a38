package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/escalation/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

var t0 = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func newEscalation(t *testing.T, signal string, typ models.Type, at time.Time) *models.Escalation {
	t.Helper()
	e, err := models.NewEscalation(id.SignalID(signal), "partner_a", typ, "US-CA", at)
	require.NoError(t, err)
	return e
}

func TestInMemoryStore_HistoryIsOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	late := newEscalation(t, "sig_1", models.TypeLawEnforcementReferral, t0.Add(2*time.Hour))
	early := newEscalation(t, "sig_1", models.TypeAssessment, t0)
	mid := newEscalation(t, "sig_1", models.TypeMandatoryReport, t0.Add(time.Hour))
	other := newEscalation(t, "sig_2", models.TypeAssessment, t0)
	for _, e := range []*models.Escalation{late, early, mid, other} {
		require.NoError(t, s.Create(ctx, e))
	}

	history, err := s.ListBySignal(ctx, "sig_1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, early.ID, history[0].ID)
	assert.Equal(t, mid.ID, history[1].ID)
	assert.Equal(t, late.ID, history[2].ID)

	empty, err := s.ListBySignal(ctx, "sig_none")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	assert.ErrorIs(t, s.Create(ctx, early), sentinel.ErrConflict)
}

func TestInMemoryStore_UpdateUnsealed(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	e := newEscalation(t, "sig_1", models.TypeAssessment, t0)
	require.NoError(t, s.Create(ctx, e))

	require.NoError(t, e.Seal(t0.Add(time.Minute)))
	require.NoError(t, s.UpdateUnsealed(ctx, e))

	stored, err := s.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.Sealed)

	stale := *stored
	stale.Sealed = false
	stale.Type = models.TypeMandatoryReport
	assert.ErrorIs(t, s.UpdateUnsealed(ctx, &stale), sentinel.ErrInvalidState)

	missing := newEscalation(t, "sig_9", models.TypeAssessment, t0)
	assert.ErrorIs(t, s.UpdateUnsealed(ctx, missing), sentinel.ErrNotFound)

	_, err = s.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

var escalationColumns = []string{"id", "signal_id", "partner_id", "escalation_type", "escalated_at",
	"jurisdiction", "sealed", "sealed_at"}

func TestPostgresStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := newEscalation(t, "sig_1", models.TypeMandatoryReport, t0)
	mock.ExpectExec(`INSERT INTO escalations`).
		WithArgs(e.ID.String(), "sig_1", "partner_a", "mandatory_report", t0, "US-CA", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgres(db).Create(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO escalations`).WillReturnError(&pq.Error{Code: uniqueViolation})

	err = NewPostgres(db).Create(context.Background(), newEscalation(t, "sig_1", models.TypeAssessment, t0))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestPostgresStore_ListBySignal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sealedAt := t0.Add(3 * time.Hour)
	mock.ExpectQuery(`FROM escalations\s+WHERE signal_id = \$1 ORDER BY escalated_at, id`).
		WithArgs("sig_1").
		WillReturnRows(sqlmock.NewRows(escalationColumns).
			AddRow("e1", "sig_1", "partner_a", "assessment", t0, "US-CA", false, nil).
			AddRow("e2", "sig_1", "partner_a", "mandatory_report", t0.Add(time.Hour), "US-CA", true, sealedAt))

	out, err := NewPostgres(db).ListBySignal(context.Background(), "sig_1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, out[0].SealedAt)
	assert.Equal(t, models.TypeMandatoryReport, out[1].Type)
	require.NotNil(t, out[1].SealedAt)
	assert.Equal(t, sealedAt, *out[1].SealedAt)
}

func TestPostgresStore_FindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM escalations`).WithArgs("e404").WillReturnRows(sqlmock.NewRows(escalationColumns))

	_, err = NewPostgres(db).FindByID(context.Background(), "e404")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_UpdateUnsealed(t *testing.T) {
	t.Run("writes while unsealed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		e := newEscalation(t, "sig_1", models.TypeAssessment, t0)
		require.NoError(t, e.Seal(t0.Add(time.Hour)))
		mock.ExpectExec(`UPDATE escalations`).
			WithArgs(e.ID.String(), "assessment", true, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewPostgres(db).UpdateUnsealed(context.Background(), e))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sealed row reports invalid state", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		e := newEscalation(t, "sig_1", models.TypeAssessment, t0)
		mock.ExpectExec(`UPDATE escalations`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(e.ID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		assert.ErrorIs(t, NewPostgres(db).UpdateUnsealed(context.Background(), e), sentinel.ErrInvalidState)
	})

	t.Run("missing row reports not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		e := newEscalation(t, "sig_1", models.TypeAssessment, t0)
		mock.ExpectExec(`UPDATE escalations`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		assert.ErrorIs(t, NewPostgres(db).UpdateUnsealed(context.Background(), e), sentinel.ErrNotFound)
	})
}
