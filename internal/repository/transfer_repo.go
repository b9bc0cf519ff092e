package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/domain"
)

// TransferRepository handles all database operations for TransferIntents,
// TransferRecords, and OneTimeCodes.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// ── Intents ──────────────────────────────────────────────────────────────────

// CreateIntent inserts a new transfer intent.
func (r *TransferRepository) CreateIntent(ctx context.Context, t *domain.TransferIntent) error {
	query := `
		INSERT INTO transfer_intents
			(id, from_user_id, from_email, to_user_id, to_email, amount_usd, status, completed_at, created_at)
		VALUES
			(:id, :from_user_id, :from_email, :to_user_id, :to_email, :amount_usd, :status, :completed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("transfer_repo.CreateIntent: %w", err)
	}
	return nil
}

// GetIntent fetches a transfer intent by primary key.
func (r *TransferRepository) GetIntent(ctx context.Context, id uuid.UUID) (*domain.TransferIntent, error) {
	var t domain.TransferIntent
	err := r.db.GetContext(ctx, &t, `SELECT * FROM transfer_intents WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("transfer_repo.GetIntent: %w", err)
	}
	return &t, nil
}

// MarkCompleted transitions an intent from otp_pending to completed inside a
// transaction. The status guard means a concurrent double-confirm matches zero
// rows and the second caller aborts without moving money.
func (r *TransferRepository) MarkCompleted(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE transfer_intents
		SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status = 'otp_pending'`,
		id)
	if err != nil {
		return fmt.Errorf("transfer_repo.MarkCompleted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrInvalidOrderState
	}
	return nil
}

// InsertRecord appends the immutable transfer history row inside the
// confirmation transaction.
func (r *TransferRepository) InsertRecord(ctx context.Context, tx *sqlx.Tx, rec *domain.TransferRecord) error {
	query := `
		INSERT INTO transfer_records
			(id, transfer_id, from_user_id, to_user_id, amount_usd, created_at)
		VALUES
			(:id, :transfer_id, :from_user_id, :to_user_id, :amount_usd, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("transfer_repo.InsertRecord: %w", err)
	}
	return nil
}

// ListRecordsByUser returns paginated transfer history where the user is
// sender or recipient, newest first.
func (r *TransferRepository) ListRecordsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.TransferRecord, error) {
	var records []*domain.TransferRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM transfer_records
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transfer_repo.ListRecordsByUser: %w", err)
	}
	return records, nil
}

// ── One-time codes ───────────────────────────────────────────────────────────

// UpsertCode stores a confirmation code hash for a subject, replacing any
// existing code. Attempts reset to zero on re-issue.
func (r *TransferRepository) UpsertCode(ctx context.Context, c *domain.OneTimeCode) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO one_time_codes (subject_key, code_hash, attempts, expires_at, created_at)
		VALUES (:subject_key, :code_hash, :attempts, :expires_at, :created_at)
		ON CONFLICT (subject_key) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    attempts = 0,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at`,
		c)
	if err != nil {
		return fmt.Errorf("transfer_repo.UpsertCode: %w", err)
	}
	return nil
}

// GetCode fetches the active code for a subject. Missing code surfaces as
// ErrInvalidCode: the caller cannot distinguish "never issued" from "wrong".
func (r *TransferRepository) GetCode(ctx context.Context, subjectKey string) (*domain.OneTimeCode, error) {
	var c domain.OneTimeCode
	err := r.db.GetContext(ctx, &c, `SELECT * FROM one_time_codes WHERE subject_key = $1`, subjectKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidCode
		}
		return nil, fmt.Errorf("transfer_repo.GetCode: %w", err)
	}
	return &c, nil
}

// IncrementAttempts bumps the failed-attempt counter. Attempts are recorded
// for audit but never lock the code out.
func (r *TransferRepository) IncrementAttempts(ctx context.Context, subjectKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE one_time_codes SET attempts = attempts + 1 WHERE subject_key = $1`,
		subjectKey)
	if err != nil {
		return fmt.Errorf("transfer_repo.IncrementAttempts: %w", err)
	}
	return nil
}

// DeleteCode removes the code for a subject (on successful confirm or expiry).
func (r *TransferRepository) DeleteCode(ctx context.Context, subjectKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM one_time_codes WHERE subject_key = $1`, subjectKey)
	if err != nil {
		return fmt.Errorf("transfer_repo.DeleteCode: %w", err)
	}
	return nil
}

// DeleteCodeInTx removes the code inside the confirmation transaction so the
// consume and the money movement commit together.
func (r *TransferRepository) DeleteCodeInTx(ctx context.Context, tx *sqlx.Tx, subjectKey string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM one_time_codes WHERE subject_key = $1`, subjectKey)
	if err != nil {
		return fmt.Errorf("transfer_repo.DeleteCodeInTx: %w", err)
	}
	return nil
}
