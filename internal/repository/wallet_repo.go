package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/shopspring/decimal"
)

// WalletRepository handles all database operations for Wallets and LedgerEntries.
// Every balance change goes through Credit or Debit: a single locked
// read-modify-write that records the audit row in the same transaction. No
// caller ever does a separate read followed by a write.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// balanceColumn maps a validated account type to its wallet column. The
// account enum is checked before interpolation; arbitrary strings never reach
// the query text.
func balanceColumn(account domain.AccountType) (string, error) {
	switch account {
	case domain.AccountReal:
		return "real_balance", nil
	case domain.AccountDemo:
		return "demo_balance", nil
	default:
		return "", fmt.Errorf("wallet_repo: unknown account type %q", account)
	}
}

// GetByUserID fetches the wallet belonging to a specific user.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetByUserID: %w", err)
	}
	return &w, nil
}

// GetOrCreate returns the user's wallet, creating it on first touch with a
// zero real balance and the configured demo default. The upsert makes
// concurrent first touches safe.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, demoDefault decimal.Decimal) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w, `
		INSERT INTO wallets (id, user_id, real_balance, demo_balance, created_at, updated_at)
		VALUES ($1, $2, 0, $3, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING *`,
		uuid.New(), userID, demoDefault)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.GetOrCreate: %w", err)
	}
	return &w, nil
}

// CreateInTx inserts a wallet row inside an existing transaction (used during
// registration).
func (r *WalletRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, w *domain.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, real_balance, demo_balance, created_at, updated_at)
		VALUES (:id, :user_id, :real_balance, :demo_balance, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, w); err != nil {
		return fmt.Errorf("wallet_repo.CreateInTx: %w", err)
	}
	return nil
}

// Debit subtracts amount from one account of a user's wallet inside a
// transaction and appends the ledger entry. The row is locked with FOR UPDATE;
// when the balance cannot cover the amount the wallet is left untouched and
// ErrInsufficientBalance is returned.
func (r *WalletRepository) Debit(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, account domain.AccountType, amount decimal.Decimal, entryType domain.EntryType, refID *uuid.UUID, description string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}
	col, err := balanceColumn(account)
	if err != nil {
		return err
	}

	// Lock the row and read the balance atomically
	var row struct {
		ID      uuid.UUID       `db:"id"`
		Balance decimal.Decimal `db:"balance"`
	}
	err = tx.GetContext(ctx, &row,
		fmt.Sprintf(`SELECT id, %s AS balance FROM wallets WHERE user_id = $1 FOR UPDATE`, col),
		userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrWalletNotFound
		}
		return fmt.Errorf("wallet_repo.Debit lock: %w", err)
	}

	if row.Balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	after := row.Balance.Sub(amount)

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE wallets SET %s = %s - $1, updated_at = now() WHERE user_id = $2`, col, col),
		amount, userID)
	if err != nil {
		return fmt.Errorf("wallet_repo.Debit update: %w", err)
	}

	return r.appendEntry(ctx, tx, &domain.LedgerEntry{
		ID:            uuid.New(),
		WalletID:      row.ID,
		Account:       account,
		Type:          entryType,
		Amount:        amount.Neg(),
		BalanceBefore: row.Balance,
		BalanceAfter:  after,
		RefID:         refID,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	})
}

// Credit adds amount to one account of a user's wallet inside a transaction and
// appends the ledger entry. The row is locked so balance_before/after in the
// audit row are exact even under concurrent writers.
func (r *WalletRepository) Credit(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, account domain.AccountType, amount decimal.Decimal, entryType domain.EntryType, refID *uuid.UUID, description string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}
	col, err := balanceColumn(account)
	if err != nil {
		return err
	}

	var row struct {
		ID      uuid.UUID       `db:"id"`
		Balance decimal.Decimal `db:"balance"`
	}
	err = tx.GetContext(ctx, &row,
		fmt.Sprintf(`SELECT id, %s AS balance FROM wallets WHERE user_id = $1 FOR UPDATE`, col),
		userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrWalletNotFound
		}
		return fmt.Errorf("wallet_repo.Credit lock: %w", err)
	}
	after := row.Balance.Add(amount)

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE wallets SET %s = %s + $1, updated_at = now() WHERE user_id = $2`, col, col),
		amount, userID)
	if err != nil {
		return fmt.Errorf("wallet_repo.Credit update: %w", err)
	}

	return r.appendEntry(ctx, tx, &domain.LedgerEntry{
		ID:            uuid.New(),
		WalletID:      row.ID,
		Account:       account,
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: row.Balance,
		BalanceAfter:  after,
		RefID:         refID,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	})
}

// appendEntry inserts an audit record into ledger_entries inside a transaction.
func (r *WalletRepository) appendEntry(ctx context.Context, tx *sqlx.Tx, e *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries
			(id, wallet_id, account, type, amount, balance_before, balance_after, ref_id, description, created_at)
		VALUES
			(:id, :wallet_id, :account, :type, :amount, :balance_before, :balance_after, :ref_id, :description, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("wallet_repo.appendEntry: %w", err)
	}
	return nil
}

// GetLedger returns paginated ledger history for a user's wallet.
func (r *WalletRepository) GetLedger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT le.*
		FROM ledger_entries le
		JOIN wallets w ON w.id = le.wallet_id
		WHERE w.user_id = $1
		ORDER BY le.created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.GetLedger: %w", err)
	}
	return entries, nil
}

// ListEntries returns recent ledger entries across all wallets (back-office
// ledger view). entryType="" means all types.
func (r *WalletRepository) ListEntries(ctx context.Context, entryType string, limit, offset int) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	var err error
	if entryType != "" {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM ledger_entries
			WHERE type = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`,
			entryType, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM ledger_entries
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.ListEntries: %w", err)
	}
	return entries, nil
}

// GetDailyWithdrawTotal sums the gross amount of today's non-rejected
// withdrawal requests for a user.
func (r *WalletRepository) GetDailyWithdrawTotal(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0)
		FROM withdraw_requests
		WHERE user_id = $1
		  AND status <> 'rejected'
		  AND requested_at >= date_trunc('day', now())`,
		userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_repo.GetDailyWithdrawTotal: %w", err)
	}
	return total, nil
}
