package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"beacon/internal/jurisdiction"
	"beacon/internal/partner/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists partners and their mandatory reporting capability.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectPartner = `
	SELECT id, name, webhook_url, api_key_hash, active, jurisdictions,
	       priority, capabilities, created_at, updated_at
	FROM partners
`

func (s *PostgresStore) Create(ctx context.Context, p *models.Partner) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partners (id, name, webhook_url, api_key_hash, active, jurisdictions,
		                      priority, capabilities, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID.String(), p.Name, p.WebhookURL, p.APIKeyHash, p.Active, pq.Array(p.Jurisdictions),
		p.Priority, pq.Array(capabilityStrings(p.Capabilities)), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert partner: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Partner) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE partners
		SET name = $2, webhook_url = $3, api_key_hash = $4, active = $5, jurisdictions = $6,
		    priority = $7, capabilities = $8, updated_at = $9
		WHERE id = $1
	`, p.ID.String(), p.Name, p.WebhookURL, p.APIKeyHash, p.Active, pq.Array(p.Jurisdictions),
		p.Priority, pq.Array(capabilityStrings(p.Capabilities)), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update partner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update partner: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, partnerID id.PartnerID) (*models.Partner, error) {
	row := s.db.QueryRowContext(ctx, selectPartner+` WHERE id = $1`, partnerID.String())
	p, err := scanPartner(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find partner: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Partner, error) {
	return s.list(ctx, selectPartner+` WHERE active ORDER BY priority ASC, id ASC`)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Partner, error) {
	return s.list(ctx, selectPartner+` ORDER BY priority ASC, id ASC`)
}

func (s *PostgresStore) list(ctx context.Context, query string) ([]*models.Partner, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	var out []*models.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partners: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveReportingCapability(ctx context.Context, m *models.MandatoryReportingCapability) error {
	coverage, err := json.Marshal(m.SupportedJurisdictions)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}
	var avg sql.NullFloat64
	if m.AverageResponseTimeHours != nil {
		avg = sql.NullFloat64{Float64: *m.AverageResponseTimeHours, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO partner_reporting_capabilities (partner_id, supported_jurisdictions,
		       reporting_protocol, requires_extended_blackout, average_response_time_hours)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (partner_id) DO UPDATE SET
		       supported_jurisdictions = EXCLUDED.supported_jurisdictions,
		       reporting_protocol = EXCLUDED.reporting_protocol,
		       requires_extended_blackout = EXCLUDED.requires_extended_blackout,
		       average_response_time_hours = EXCLUDED.average_response_time_hours
	`, m.PartnerID.String(), coverage, string(m.ReportingProtocol), m.RequiresExtendedBlackout, avg)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("save reporting capability: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindReportingCapability(ctx context.Context, partnerID id.PartnerID) (*models.MandatoryReportingCapability, error) {
	var (
		m        models.MandatoryReportingCapability
		coverage []byte
		protocol string
		avg      sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT partner_id, supported_jurisdictions, reporting_protocol,
		       requires_extended_blackout, average_response_time_hours
		FROM partner_reporting_capabilities WHERE partner_id = $1
	`, partnerID.String()).Scan(&m.PartnerID, &coverage, &protocol, &m.RequiresExtendedBlackout, &avg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find reporting capability: %w", err)
	}
	var supported []jurisdiction.Coverage
	if err := json.Unmarshal(coverage, &supported); err != nil {
		return nil, fmt.Errorf("unmarshal coverage: %w", err)
	}
	m.SupportedJurisdictions = supported
	m.ReportingProtocol = models.ReportingProtocol(protocol)
	if avg.Valid {
		v := avg.Float64
		m.AverageResponseTimeHours = &v
	}
	return &m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPartner(row scanner) (*models.Partner, error) {
	var (
		p    models.Partner
		caps []string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.WebhookURL, &p.APIKeyHash, &p.Active,
		pq.Array(&p.Jurisdictions), &p.Priority, pq.Array(&caps), &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Capabilities = make([]models.Capability, 0, len(caps))
	for _, c := range caps {
		p.Capabilities = append(p.Capabilities, models.Capability(c))
	}
	return &p, nil
}

func capabilityStrings(caps []models.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
