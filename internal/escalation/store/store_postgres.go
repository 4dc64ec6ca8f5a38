package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"beacon/internal/escalation/models"
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

const selectEscalation = `
	SELECT id, signal_id, partner_id, escalation_type, escalated_at, jurisdiction, sealed, sealed_at
	FROM escalations
`

func (s *PostgresStore) Create(ctx context.Context, e *models.Escalation) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO escalations (id, signal_id, partner_id, escalation_type, escalated_at, jurisdiction, sealed, sealed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID.String(), e.SignalID.String(), e.PartnerID.String(), string(e.Type), e.EscalatedAt,
		e.Jurisdiction, e.Sealed, e.SealedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, escalationID id.EscalationID) (*models.Escalation, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, selectEscalation+` WHERE id = $1`, escalationID.String())
	if err != nil {
		return nil, fmt.Errorf("find escalation: %w", err)
	}
	defer rows.Close()
	out, err := scanEscalations(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out[0], nil
}

func (s *PostgresStore) ListBySignal(ctx context.Context, signalID id.SignalID) ([]*models.Escalation, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		selectEscalation+` WHERE signal_id = $1 ORDER BY escalated_at, id`, signalID.String())
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()
	return scanEscalations(rows)
}

// UpdateUnsealed writes e only if the stored row is not yet sealed. A
// concurrent seal makes the update a no-op reported as ErrInvalidState.
func (s *PostgresStore) UpdateUnsealed(ctx context.Context, e *models.Escalation) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE escalations
		SET escalation_type = $2, sealed = $3, sealed_at = $4
		WHERE id = $1 AND NOT sealed
	`, e.ID.String(), string(e.Type), e.Sealed, e.SealedAt)
	if err != nil {
		return fmt.Errorf("update escalation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update escalation: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM escalations WHERE id = $1)`, e.ID.String()).Scan(&exists); err != nil {
		return fmt.Errorf("check escalation: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func scanEscalations(rows *sql.Rows) ([]*models.Escalation, error) {
	out := make([]*models.Escalation, 0)
	for rows.Next() {
		var (
			e                          models.Escalation
			escID, signal, partner, tp string
			sealedAt                   sql.NullTime
		)
		if err := rows.Scan(&escID, &signal, &partner, &tp, &e.EscalatedAt, &e.Jurisdiction,
			&e.Sealed, &sealedAt); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		e.ID = id.EscalationID(escID)
		e.SignalID = id.SignalID(signal)
		e.PartnerID = id.PartnerID(partner)
		e.Type = models.Type(tp)
		if sealedAt.Valid {
			t := sealedAt.Time
			e.SealedAt = &t
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return out, nil
}
