package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"beacon/internal/isolation/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
)

// PostgresStore writes to isolated_safety_signals, a root-level table with
// no foreign keys into any family or account table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, sig *models.IsolatedSignal) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO isolated_safety_signals (signal_id, anonymized_child_id, encrypted_payload,
		                                     encryption_key_id, created_at, jurisdiction)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (signal_id) DO NOTHING
	`, sig.ID.String(), sig.AnonymizedChildID, sig.EncryptedPayload, sig.EncryptionKeyID, sig.CreatedAt, sig.Jurisdiction)
	if err != nil {
		return fmt.Errorf("insert isolated signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert isolated signal: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, signalID id.SignalID) (*models.IsolatedSignal, error) {
	var (
		sig    models.IsolatedSignal
		signal string
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT signal_id, anonymized_child_id, encrypted_payload, encryption_key_id, created_at, jurisdiction
		FROM isolated_safety_signals
		WHERE signal_id = $1
	`, signalID.String()).Scan(&signal, &sig.AnonymizedChildID, &sig.EncryptedPayload, &sig.EncryptionKeyID,
		&sig.CreatedAt, &sig.Jurisdiction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get isolated signal: %w", err)
	}
	sig.ID = id.SignalID(signal)
	return &sig, nil
}

func (s *PostgresStore) Delete(ctx context.Context, signalID id.SignalID) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx,
		`DELETE FROM isolated_safety_signals WHERE signal_id = $1`, signalID.String())
	if err != nil {
		return fmt.Errorf("delete isolated signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete isolated signal: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, signalID id.SignalID) (bool, error) {
	var exists bool
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM isolated_safety_signals WHERE signal_id = $1)`, signalID.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check isolated signal: %w", err)
	}
	return exists, nil
}
