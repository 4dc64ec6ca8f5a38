package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/partner/models"
	"beacon/pkg/platform/sentinel"
)

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

var partnerColumns = []string{"id", "name", "webhook_url", "api_key_hash", "active", "jurisdictions",
	"priority", "capabilities", "created_at", "updated_at"}

func TestPostgresStore_Create(t *testing.T) {
	s, mock := newMock(t)
	p := newPartner("partner_a", 0)

	mock.ExpectExec(`INSERT INTO partners`).
		WithArgs("partner_a", p.Name, p.WebhookURL, p.APIKeyHash, true, pq.Array(p.Jurisdictions),
			0, pq.Array([]string{"crisis_counseling"}), p.CreatedAt, p.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Create(context.Background(), p))

	mock.ExpectExec(`INSERT INTO partners`).WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, s.Create(context.Background(), p), sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByID(t *testing.T) {
	s, mock := newMock(t)
	p := newPartner("partner_a", 3)

	mock.ExpectQuery(`FROM partners\s+WHERE id = \$1`).WithArgs("partner_a").
		WillReturnRows(sqlmock.NewRows(partnerColumns).AddRow(
			"partner_a", p.Name, p.WebhookURL, p.APIKeyHash, true, "{US,US-CA}",
			3, "{crisis_counseling,mandatory_reporting}", p.CreatedAt, p.UpdatedAt))

	got, err := s.FindByID(context.Background(), "partner_a")
	require.NoError(t, err)
	assert.Equal(t, []string{"US", "US-CA"}, got.Jurisdictions)
	assert.Equal(t, []models.Capability{models.CapabilityCrisisCounseling, models.CapabilityMandatoryReporting}, got.Capabilities)
	assert.Equal(t, 3, got.Priority)

	mock.ExpectQuery(`FROM partners`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err = s.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_ListActive(t *testing.T) {
	s, mock := newMock(t)
	p := newPartner("partner_a", 0)

	mock.ExpectQuery(`WHERE active ORDER BY priority ASC`).
		WillReturnRows(sqlmock.NewRows(partnerColumns).
			AddRow("partner_a", p.Name, p.WebhookURL, "h", true, "{US}", 0, "{crisis_counseling}", p.CreatedAt, p.UpdatedAt).
			AddRow("partner_b", "B", "https://b.example", "h", true, "{US-CA}", 1, "{crisis_counseling}", p.CreatedAt, p.UpdatedAt))

	got, err := s.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "partner_b", got[1].ID.String())
}

func TestPostgresStore_UpdateMissing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`UPDATE partners`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Update(context.Background(), newPartner("ghost", 0)), sentinel.ErrNotFound)
}

func TestPostgresStore_ReportingCapabilityRoundTrip(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO partner_reporting_capabilities`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	hours := 2.5
	require.NoError(t, s.SaveReportingCapability(context.Background(), &models.MandatoryReportingCapability{
		PartnerID:                "partner_a",
		ReportingProtocol:        models.ProtocolPartnerDirect,
		RequiresExtendedBlackout: true,
		AverageResponseTimeHours: &hours,
	}))

	mock.ExpectQuery(`FROM partner_reporting_capabilities`).WithArgs("partner_a").
		WillReturnRows(sqlmock.NewRows([]string{"partner_id", "supported_jurisdictions", "reporting_protocol",
			"requires_extended_blackout", "average_response_time_hours"}).
			AddRow("partner_a",
				[]byte(`[{"jurisdictionCode":"US-CA","mandatoryReporterCategories":["teachers"],"reportingAgency":"DCFS","reportingHotline":null}]`),
				"partner_direct", true, 2.5))

	got, err := s.FindReportingCapability(context.Background(), "partner_a")
	require.NoError(t, err)
	require.Len(t, got.SupportedJurisdictions, 1)
	assert.Equal(t, "DCFS", got.SupportedJurisdictions[0].ReportingAgency)
	require.NotNil(t, got.AverageResponseTimeHours)
	assert.InDelta(t, 2.5, *got.AverageResponseTimeHours, 0.0001)

	mock.ExpectQuery(`FROM partner_reporting_capabilities`).WillReturnError(sql.ErrNoRows)
	_, err = s.FindReportingCapability(context.Background(), "partner_b")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
