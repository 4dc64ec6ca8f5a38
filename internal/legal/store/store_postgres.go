package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"beacon/internal/legal/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectRequest = `
	SELECT id, request_type, requesting_agency, jurisdiction, document_reference, received_at,
	       signal_ids, status, resolved_at, fulfilled_at, fulfilled_by
	FROM legal_requests
`

func (s *PostgresStore) Create(ctx context.Context, r *models.LegalRequest) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO legal_requests (id, request_type, requesting_agency, jurisdiction, document_reference,
		                            received_at, signal_ids, status, resolved_at, fulfilled_at, fulfilled_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.ID.String(), string(r.RequestType), r.RequestingAgency, r.Jurisdiction, r.DocumentReference,
		r.ReceivedAt, pq.Array(signalStrings(r.SignalIDs)), string(r.Status), r.ResolvedAt, r.FulfilledAt, r.FulfilledBy)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert legal request: %w", err)
	}
	return nil
}

// FindByID reads through the ambient transaction, so a fulfilment re-read
// inside RunInTx sees the row it is about to update.
func (s *PostgresStore) FindByID(ctx context.Context, requestID id.LegalRequestID) (*models.LegalRequest, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, selectRequest+` WHERE id = $1`, requestID.String())
	if err != nil {
		return nil, fmt.Errorf("find legal request: %w", err)
	}
	defer rows.Close()
	out, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out[0], nil
}

func (s *PostgresStore) ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.LegalRequest, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		selectRequest+` WHERE signal_ids @> ARRAY[$1]::TEXT[] ORDER BY received_at, id`, signalID.String())
	if err != nil {
		return nil, fmt.Errorf("list legal requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PostgresStore) CompareAndSwapStatus(ctx context.Context, r *models.LegalRequest, from models.Status) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE legal_requests
		SET status = $2, resolved_at = $3, fulfilled_at = $4, fulfilled_by = $5
		WHERE id = $1 AND status = $6
	`, r.ID.String(), string(r.Status), r.ResolvedAt, r.FulfilledAt, r.FulfilledBy, string(from))
	if err != nil {
		return fmt.Errorf("update legal request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update legal request: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM legal_requests WHERE id = $1)`, r.ID.String()).Scan(&exists); err != nil {
		return fmt.Errorf("check legal request: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func scanRequests(rows *sql.Rows) ([]*models.LegalRequest, error) {
	out := make([]*models.LegalRequest, 0)
	for rows.Next() {
		var (
			r                       models.LegalRequest
			reqID, reqType, status  string
			signals                 []string
			resolvedAt, fulfilledAt sql.NullTime
			fulfilledBy             sql.NullString
		)
		if err := rows.Scan(&reqID, &reqType, &r.RequestingAgency, &r.Jurisdiction, &r.DocumentReference,
			&r.ReceivedAt, pq.Array(&signals), &status, &resolvedAt, &fulfilledAt, &fulfilledBy); err != nil {
			return nil, fmt.Errorf("scan legal request: %w", err)
		}
		r.ID = id.LegalRequestID(reqID)
		r.RequestType = models.RequestType(reqType)
		r.Status = models.Status(status)
		r.SignalIDs = make([]id.SignalID, len(signals))
		for i, sig := range signals {
			r.SignalIDs[i] = id.SignalID(sig)
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			r.ResolvedAt = &t
		}
		if fulfilledAt.Valid {
			t := fulfilledAt.Time
			r.FulfilledAt = &t
		}
		if fulfilledBy.Valid {
			v := fulfilledBy.String
			r.FulfilledBy = &v
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legal requests: %w", err)
	}
	return out, nil
}

func signalStrings(ids []id.SignalID) []string {
	out := make([]string, len(ids))
	for i, s := range ids {
		out[i] = s.String()
	}
	return out
}
