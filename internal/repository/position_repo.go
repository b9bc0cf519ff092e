package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/shopspring/decimal"
)

// PositionRepository handles all database operations for Positions and
// TradeRecords.
type PositionRepository struct {
	db *sqlx.DB
}

// NewPositionRepository creates a new PositionRepository.
func NewPositionRepository(db *sqlx.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create inserts a new position row inside a transaction (the same transaction
// that debits the stake).
func (r *PositionRepository) Create(ctx context.Context, tx *sqlx.Tx, p *domain.Position) error {
	query := `
		INSERT INTO positions
			(id, user_id, symbol, side, account, stake, entry_price, payout_pct,
			 status, opened_at, expires_at, created_at, updated_at)
		VALUES
			(:id, :user_id, :symbol, :side, :account, :stake, :entry_price, :payout_pct,
			 :status, :opened_at, :expires_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("position_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a position by primary key.
func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	var p domain.Position
	err := r.db.GetContext(ctx, &p, `SELECT * FROM positions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, fmt.Errorf("position_repo.GetByID: %w", err)
	}
	return &p, nil
}

// ListByUser returns paginated positions for a user, newest first.
// status="" means all statuses.
func (r *PositionRepository) ListByUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*domain.Position, error) {
	var positions []*domain.Position
	var err error
	if status != "" {
		err = r.db.SelectContext(ctx, &positions, `
			SELECT * FROM positions
			WHERE user_id = $1 AND status = $2
			ORDER BY opened_at DESC
			LIMIT $3 OFFSET $4`,
			userID, status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &positions, `
			SELECT * FROM positions
			WHERE user_id = $1
			ORDER BY opened_at DESC
			LIMIT $2 OFFSET $3`,
			userID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("position_repo.ListByUser: %w", err)
	}
	return positions, nil
}

// GetExpiredOpen returns every position that is still open but whose expiry has
// passed. The settlement sweep is driven entirely by this durable query, so
// positions due while the process was down are still picked up after restart.
func (r *PositionRepository) GetExpiredOpen(ctx context.Context) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := r.db.SelectContext(ctx, &positions, `
		SELECT * FROM positions
		WHERE status = 'open' AND expires_at <= now()
		ORDER BY expires_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("position_repo.GetExpiredOpen: %w", err)
	}
	return positions, nil
}

// Settle marks an open position won or lost inside a transaction. The
// status='open' guard makes settlement exactly-once: a second attempt matches
// zero rows and returns ErrAlreadySettled so the caller credits nothing.
func (r *PositionRepository) Settle(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, result domain.PositionStatus) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE positions
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = 'open'`,
		string(result), id)
	if err != nil {
		return fmt.Errorf("position_repo.Settle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadySettled
	}
	return nil
}

// InsertTradeRecord appends the immutable settlement snapshot inside the
// settlement transaction.
func (r *PositionRepository) InsertTradeRecord(ctx context.Context, tx *sqlx.Tx, rec *domain.TradeRecord) error {
	query := `
		INSERT INTO trade_records
			(id, position_id, user_id, symbol, side, account, stake,
			 entry_price, exit_price, payout_pct, pnl, result, opened_at, closed_at)
		VALUES
			(:id, :position_id, :user_id, :symbol, :side, :account, :stake,
			 :entry_price, :exit_price, :payout_pct, :pnl, :result, :opened_at, :closed_at)`
	if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("position_repo.InsertTradeRecord: %w", err)
	}
	return nil
}

// ListTradeHistory returns paginated settled trades for a user, newest first.
func (r *PositionRepository) ListTradeHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.TradeRecord, error) {
	var records []*domain.TradeRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM trade_records
		WHERE user_id = $1
		ORDER BY closed_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("position_repo.ListTradeHistory: %w", err)
	}
	return records, nil
}

// CountOpenByUser returns the number of currently open positions for a user.
func (r *PositionRepository) CountOpenByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM positions WHERE user_id = $1 AND status = 'open'`, userID)
	if err != nil {
		return 0, fmt.Errorf("position_repo.CountOpenByUser: %w", err)
	}
	return n, nil
}

// OpenExposure returns the number of open positions and their total real-money
// stake, for the back-office dashboard.
func (r *PositionRepository) OpenExposure(ctx context.Context) (int, decimal.Decimal, error) {
	var row struct {
		Count int             `db:"count"`
		Stake decimal.Decimal `db:"stake"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS count,
		       COALESCE(SUM(stake) FILTER (WHERE account = 'real'), 0) AS stake
		FROM positions
		WHERE status = 'open'`)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("position_repo.OpenExposure: %w", err)
	}
	return row.Count, row.Stake, nil
}
