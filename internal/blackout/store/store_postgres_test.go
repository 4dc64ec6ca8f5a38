package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/blackout/models"
	"beacon/pkg/platform/sentinel"
)

var blackoutColumns = []string{"id", "signal_id", "started_at", "expires_at", "extended_by", "active"}

func TestPostgresStore_CreateIfAbsent_Inserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := models.NewRecord("sig_1", t0, 48*time.Hour)
	mock.ExpectExec(`UPDATE blackouts SET active = FALSE`).
		WithArgs("sig_1", t0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO blackouts`).
		WithArgs(rec.ID.String(), "sig_1", t0, t0.Add(48*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, created, err := NewPostgres(db).CreateIfAbsent(context.Background(), rec, t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, rec, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateIfAbsent_ReturnsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := models.NewRecord("sig_1", t0, 48*time.Hour)
	mock.ExpectExec(`UPDATE blackouts SET active = FALSE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO blackouts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM blackouts`).
		WithArgs("sig_1", t0).
		WillReturnRows(sqlmock.NewRows(blackoutColumns).
			AddRow("bo-existing", "sig_1", t0.Add(-time.Hour), t0.Add(47*time.Hour), "partner_a", true))

	got, created, err := NewPostgres(db).CreateIfAbsent(context.Background(), rec, t0)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "bo-existing", got.ID.String())
	require.NotNil(t, got.ExtendedBy)
	assert.Equal(t, "partner_a", got.ExtendedBy.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Extend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE blackouts`).
		WithArgs("sig_1", "partner_a", float64(72*3600), t0).
		WillReturnRows(sqlmock.NewRows(blackoutColumns).
			AddRow("bo-1", "sig_1", t0, t0.Add(120*time.Hour), "partner_a", true))

	rec, err := NewPostgres(db).Extend(context.Background(), "sig_1", "partner_a", 72*time.Hour, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(120*time.Hour), rec.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Extend_NoActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE blackouts`).WillReturnRows(sqlmock.NewRows(blackoutColumns))

	_, err = NewPostgres(db).Extend(context.Background(), "sig_1", "partner_a", time.Hour, t0)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_End(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE blackouts SET active = FALSE`).
		WithArgs("sig_1", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE blackouts SET active = FALSE`).
		WithArgs("sig_1", t0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewPostgres(db)
	require.NoError(t, s.End(context.Background(), "sig_1", t0))
	assert.ErrorIs(t, s.End(context.Background(), "sig_1", t0), sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
