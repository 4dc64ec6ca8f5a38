package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"beacon/internal/blackout/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
)

// PostgresStore relies on the partial unique index blackouts_one_active_idx
// to keep a single active row per signal.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectBlackout = `
	SELECT id, signal_id, started_at, expires_at, extended_by, active
	FROM blackouts
`

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, rec *models.Record, now time.Time) (*models.Record, bool, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	// Retire a lapsed window so the unique index admits the new row.
	if _, err := exec.ExecContext(ctx, `
		UPDATE blackouts SET active = FALSE
		WHERE signal_id = $1 AND active AND expires_at <= $2
	`, rec.SignalID.String(), now); err != nil {
		return nil, false, fmt.Errorf("retire expired blackout: %w", err)
	}

	res, err := exec.ExecContext(ctx, `
		INSERT INTO blackouts (id, signal_id, started_at, expires_at, extended_by, active)
		VALUES ($1, $2, $3, $4, NULL, TRUE)
		ON CONFLICT (signal_id) WHERE active DO NOTHING
	`, rec.ID.String(), rec.SignalID.String(), rec.StartedAt, rec.ExpiresAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert blackout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert blackout: %w", err)
	}
	if n == 1 {
		return rec, true, nil
	}

	existing, err := s.FindActive(ctx, rec.SignalID, now)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) FindActive(ctx context.Context, signalID id.SignalID, now time.Time) (*models.Record, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		selectBlackout+` WHERE signal_id = $1 AND active AND expires_at > $2`, signalID.String(), now)
	rec, err := scanBlackout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find blackout: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Extend(ctx context.Context, signalID id.SignalID, by id.PartnerID, d time.Duration, now time.Time) (*models.Record, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		UPDATE blackouts
		SET expires_at = expires_at + make_interval(secs => $3), extended_by = $2
		WHERE signal_id = $1 AND active AND expires_at > $4
		RETURNING id, signal_id, started_at, expires_at, extended_by, active
	`, signalID.String(), by.String(), d.Seconds(), now)
	rec, err := scanBlackout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("extend blackout: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) End(ctx context.Context, signalID id.SignalID, now time.Time) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE blackouts SET active = FALSE
		WHERE signal_id = $1 AND active AND expires_at > $2
	`, signalID.String(), now)
	if err != nil {
		return fmt.Errorf("end blackout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end blackout: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanBlackout(row *sql.Row) (*models.Record, error) {
	var (
		rec        models.Record
		blackoutID string
		signalID   string
		extendedBy sql.NullString
	)
	if err := row.Scan(&blackoutID, &signalID, &rec.StartedAt, &rec.ExpiresAt, &extendedBy, &rec.Active); err != nil {
		return nil, err
	}
	rec.ID = id.BlackoutID(blackoutID)
	rec.SignalID = id.SignalID(signalID)
	if extendedBy.Valid {
		by := id.PartnerID(extendedBy.String)
		rec.ExtendedBy = &by
	}
	return &rec, nil
}
