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

// DepositRepository handles all database operations for DepositIntents and the
// manually-reviewed DepositRequests / WithdrawRequests.
type DepositRepository struct {
	db *sqlx.DB
}

// NewDepositRepository creates a new DepositRepository.
func NewDepositRepository(db *sqlx.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

// ── Provider intents ─────────────────────────────────────────────────────────

// CreateIntent inserts a new deposit intent keyed by the provider invoice id.
func (r *DepositRepository) CreateIntent(ctx context.Context, d *domain.DepositIntent) error {
	query := `
		INSERT INTO deposit_intents
			(id, invoice_id, user_id, email, amount_usd, pay_asset, pay_amount,
			 status, payment_url, created_at, updated_at)
		VALUES
			(:id, :invoice_id, :user_id, :email, :amount_usd, :pay_asset, :pay_amount,
			 :status, :payment_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("deposit_repo.CreateIntent: %w", err)
	}
	return nil
}

// GetIntentByInvoice fetches an intent by the provider invoice id.
func (r *DepositRepository) GetIntentByInvoice(ctx context.Context, invoiceID string) (*domain.DepositIntent, error) {
	var d domain.DepositIntent
	err := r.db.GetContext(ctx, &d, `SELECT * FROM deposit_intents WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, fmt.Errorf("deposit_repo.GetIntentByInvoice: %w", err)
	}
	return &d, nil
}

// GetIntentByInvoiceForUpdate fetches an intent with a row lock inside a
// transaction, serialising concurrent webhook deliveries for one invoice.
func (r *DepositRepository) GetIntentByInvoiceForUpdate(ctx context.Context, tx *sqlx.Tx, invoiceID string) (*domain.DepositIntent, error) {
	var d domain.DepositIntent
	err := tx.GetContext(ctx, &d,
		`SELECT * FROM deposit_intents WHERE invoice_id = $1 FOR UPDATE`, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, fmt.Errorf("deposit_repo.GetIntentByInvoiceForUpdate: %w", err)
	}
	return &d, nil
}

// UpdateIntentStatus records a non-final provider status transition.
func (r *DepositRepository) UpdateIntentStatus(ctx context.Context, invoiceID string, status domain.IntentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE deposit_intents SET status = $1, updated_at = now() WHERE invoice_id = $2`,
		string(status), invoiceID)
	if err != nil {
		return fmt.Errorf("deposit_repo.UpdateIntentStatus: %w", err)
	}
	return nil
}

// MarkCredited transitions an intent to credited inside the crediting
// transaction. The guard excludes already-credited intents so a webhook replay
// matches zero rows and the wallet is never funded twice.
func (r *DepositRepository) MarkCredited(ctx context.Context, tx *sqlx.Tx, invoiceID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE deposit_intents
		SET status = 'credited', updated_at = now()
		WHERE invoice_id = $1 AND status <> 'credited'`,
		invoiceID)
	if err != nil {
		return fmt.Errorf("deposit_repo.MarkCredited: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// ListIntentsByUser returns paginated deposit intents for a user, newest first.
func (r *DepositRepository) ListIntentsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.DepositIntent, error) {
	var intents []*domain.DepositIntent
	err := r.db.SelectContext(ctx, &intents, `
		SELECT * FROM deposit_intents
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("deposit_repo.ListIntentsByUser: %w", err)
	}
	return intents, nil
}

// ── Manual deposit requests ──────────────────────────────────────────────────

// CreateDepositRequest inserts a manually-submitted deposit claim.
func (r *DepositRepository) CreateDepositRequest(ctx context.Context, req *domain.DepositRequest) error {
	query := `
		INSERT INTO deposit_requests
			(id, user_id, amount_usd, asset, tx_id, screenshot_url, status, requested_at)
		VALUES
			(:id, :user_id, :amount_usd, :asset, :tx_id, :screenshot_url, :status, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("deposit_repo.CreateDepositRequest: %w", err)
	}
	return nil
}

// GetDepositRequest fetches a deposit request by primary key.
func (r *DepositRepository) GetDepositRequest(ctx context.Context, id uuid.UUID) (*domain.DepositRequest, error) {
	var req domain.DepositRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM deposit_requests WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("deposit_repo.GetDepositRequest: %w", err)
	}
	return &req, nil
}

// ListDepositRequests returns paginated deposit requests filtered by status.
// status="" means all statuses.
func (r *DepositRepository) ListDepositRequests(ctx context.Context, status string, limit, offset int) ([]*domain.DepositRequest, error) {
	var reqs []*domain.DepositRequest
	var err error
	if status != "" {
		err = r.db.SelectContext(ctx, &reqs, `
			SELECT * FROM deposit_requests
			WHERE status = $1
			ORDER BY requested_at DESC
			LIMIT $2 OFFSET $3`,
			status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &reqs, `
			SELECT * FROM deposit_requests
			ORDER BY requested_at DESC
			LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("deposit_repo.ListDepositRequests: %w", err)
	}
	return reqs, nil
}

// ReviewDepositRequest moves a pending deposit request to its reviewed status
// inside a transaction. The pending guard makes a repeated approval a no-op:
// zero rows affected returns ErrRequestNotPending and the caller credits
// nothing.
func (r *DepositRepository) ReviewDepositRequest(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status domain.ReviewStatus, reviewerID uuid.UUID, note string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE deposit_requests
		SET status      = $1,
		    reviewed_by = $2,
		    review_note = $3,
		    reviewed_at = now()
		WHERE id = $4 AND status = 'pending'`,
		string(status), reviewerID, note, id)
	if err != nil {
		return fmt.Errorf("deposit_repo.ReviewDepositRequest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRequestNotPending
	}
	return nil
}

// ── Withdrawal requests ──────────────────────────────────────────────────────

// CreateWithdrawRequest inserts a new withdrawal request.
func (r *DepositRepository) CreateWithdrawRequest(ctx context.Context, req *domain.WithdrawRequest) error {
	query := `
		INSERT INTO withdraw_requests
			(id, user_id, amount, fee, asset, address, status, requested_at)
		VALUES
			(:id, :user_id, :amount, :fee, :asset, :address, :status, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("deposit_repo.CreateWithdrawRequest: %w", err)
	}
	return nil
}

// GetWithdrawRequest fetches a withdrawal request by primary key.
func (r *DepositRepository) GetWithdrawRequest(ctx context.Context, id uuid.UUID) (*domain.WithdrawRequest, error) {
	var req domain.WithdrawRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM withdraw_requests WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("deposit_repo.GetWithdrawRequest: %w", err)
	}
	return &req, nil
}

// ListWithdrawRequests returns paginated withdrawal requests filtered by
// status. status="" means all statuses.
func (r *DepositRepository) ListWithdrawRequests(ctx context.Context, status string, limit, offset int) ([]*domain.WithdrawRequest, error) {
	var reqs []*domain.WithdrawRequest
	var err error
	if status != "" {
		err = r.db.SelectContext(ctx, &reqs, `
			SELECT * FROM withdraw_requests
			WHERE status = $1
			ORDER BY requested_at DESC
			LIMIT $2 OFFSET $3`,
			status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &reqs, `
			SELECT * FROM withdraw_requests
			ORDER BY requested_at DESC
			LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("deposit_repo.ListWithdrawRequests: %w", err)
	}
	return reqs, nil
}

// ReviewWithdrawRequest moves a pending withdrawal request to its reviewed
// status inside a transaction, with the same pending guard as deposits.
func (r *DepositRepository) ReviewWithdrawRequest(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status domain.ReviewStatus, reviewerID uuid.UUID, note string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE withdraw_requests
		SET status      = $1,
		    reviewed_by = $2,
		    review_note = $3,
		    reviewed_at = now()
		WHERE id = $4 AND status = 'pending'`,
		string(status), reviewerID, note, id)
	if err != nil {
		return fmt.Errorf("deposit_repo.ReviewWithdrawRequest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRequestNotPending
	}
	return nil
}
