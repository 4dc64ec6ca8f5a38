package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"beacon/internal/routing/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectResult = `
	SELECT id, signal_id, partner_id, routed_at, status, acknowledged, acknowledged_at,
	       partner_reference_id, retry_count, last_error
	FROM routing_results
`

func (s *PostgresStore) Create(ctx context.Context, r *models.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO routing_results (id, signal_id, partner_id, routed_at, status, acknowledged,
		                             acknowledged_at, partner_reference_id, retry_count, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID.String(), r.SignalID.String(), r.PartnerID.String(), r.RoutedAt, string(r.Status),
		r.Acknowledged, r.AcknowledgedAt, r.PartnerReferenceID, r.RetryCount, r.LastError)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert routing result: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Result) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE routing_results
		SET status = $2, acknowledged = $3, acknowledged_at = $4, partner_reference_id = $5,
		    retry_count = $6, last_error = $7
		WHERE id = $1
	`, r.ID.String(), string(r.Status), r.Acknowledged, r.AcknowledgedAt, r.PartnerReferenceID,
		r.RetryCount, r.LastError)
	if err != nil {
		return fmt.Errorf("update routing result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update routing result: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, resultID id.ResultID) (*models.Result, error) {
	rows, err := s.db.QueryContext(ctx, selectResult+` WHERE id = $1`, resultID.String())
	if err != nil {
		return nil, fmt.Errorf("find routing result: %w", err)
	}
	defer rows.Close()
	results, err := scanResults(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return results[0], nil
}

func (s *PostgresStore) ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.Result, error) {
	rows, err := s.db.QueryContext(ctx, selectResult+` WHERE signal_id = $1 ORDER BY routed_at, id`, signalID.String())
	if err != nil {
		return nil, fmt.Errorf("list routing results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func (s *PostgresStore) ListFailed(ctx context.Context) ([]*models.Result, error) {
	rows, err := s.db.QueryContext(ctx, selectResult+` WHERE status = 'failed' ORDER BY routed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list failed routing results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]*models.Result, error) {
	out := make([]*models.Result, 0)
	for rows.Next() {
		var (
			r                         models.Result
			resultID, signal, partner string
			status                    string
			ackAt                     sql.NullTime
			ref, lastErr              sql.NullString
		)
		if err := rows.Scan(&resultID, &signal, &partner, &r.RoutedAt, &status, &r.Acknowledged,
			&ackAt, &ref, &r.RetryCount, &lastErr); err != nil {
			return nil, fmt.Errorf("scan routing result: %w", err)
		}
		r.ID = id.ResultID(resultID)
		r.SignalID = id.SignalID(signal)
		r.PartnerID = id.PartnerID(partner)
		r.Status = models.Status(status)
		if ackAt.Valid {
			t := ackAt.Time
			r.AcknowledgedAt = &t
		}
		if ref.Valid {
			v := ref.String
			r.PartnerReferenceID = &v
		}
		if lastErr.Valid {
			v := lastErr.String
			r.LastError = &v
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routing results: %w", err)
	}
	return out, nil
}
