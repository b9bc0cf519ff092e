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

// EscrowRepository handles all database operations for Listings and
// EscrowOrders.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository creates a new EscrowRepository.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// ── Listings ─────────────────────────────────────────────────────────────────

// CreateListing inserts a new P2P listing.
func (r *EscrowRepository) CreateListing(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings
			(id, owner_user_id, side, asset, price, min_amount, max_amount, is_active, created_at, updated_at)
		VALUES
			(:id, :owner_user_id, :side, :asset, :price, :min_amount, :max_amount, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("escrow_repo.CreateListing: %w", err)
	}
	return nil
}

// GetListing fetches a listing by primary key.
func (r *EscrowRepository) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	err := r.db.GetContext(ctx, &l, `SELECT * FROM listings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("escrow_repo.GetListing: %w", err)
	}
	return &l, nil
}

// ListActiveListings returns paginated active listings, optionally filtered by
// side ("buy"/"sell"; "" = both).
func (r *EscrowRepository) ListActiveListings(ctx context.Context, side string, limit, offset int) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	var err error
	if side != "" {
		err = r.db.SelectContext(ctx, &listings, `
			SELECT * FROM listings
			WHERE is_active = true AND side = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`,
			side, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &listings, `
			SELECT * FROM listings
			WHERE is_active = true
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("escrow_repo.ListActiveListings: %w", err)
	}
	return listings, nil
}

// SetListingActive toggles a listing on or off. Only the owner may do this;
// the owner check lives in the service.
func (r *EscrowRepository) SetListingActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET is_active = $1, updated_at = now() WHERE id = $2`,
		active, id)
	if err != nil {
		return fmt.Errorf("escrow_repo.SetListingActive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

// CreateOrder inserts a new escrow order inside a transaction (the same
// transaction that holds the seller's funds when the listing side requires it).
func (r *EscrowRepository) CreateOrder(ctx context.Context, tx *sqlx.Tx, o *domain.EscrowOrder) error {
	query := `
		INSERT INTO escrow_orders
			(id, listing_id, seller_user_id, buyer_user_id, asset, amount_usd,
			 status, escrow_held, paid_at, closed_at, created_at, updated_at)
		VALUES
			(:id, :listing_id, :seller_user_id, :buyer_user_id, :asset, :amount_usd,
			 :status, :escrow_held, :paid_at, :closed_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("escrow_repo.CreateOrder: %w", err)
	}
	return nil
}

// GetOrder fetches an order by primary key.
func (r *EscrowRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.EscrowOrder, error) {
	var o domain.EscrowOrder
	err := r.db.GetContext(ctx, &o, `SELECT * FROM escrow_orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("escrow_repo.GetOrder: %w", err)
	}
	return &o, nil
}

// GetOrderForUpdate fetches an order with a row lock inside a transaction, so
// concurrent transitions on the same order serialise.
func (r *EscrowRepository) GetOrderForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.EscrowOrder, error) {
	var o domain.EscrowOrder
	err := tx.GetContext(ctx, &o, `SELECT * FROM escrow_orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("escrow_repo.GetOrderForUpdate: %w", err)
	}
	return &o, nil
}

// TransitionOrder moves an order from one status to another inside a
// transaction. The from-status guard rejects out-of-order transitions: zero
// rows affected means the order was not in the expected state.
func (r *EscrowRepository) TransitionOrder(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to domain.OrderStatus) error {
	var res sql.Result
	var err error
	switch to {
	case domain.OrderPaid:
		res, err = tx.ExecContext(ctx, `
			UPDATE escrow_orders
			SET status = $1, paid_at = now(), updated_at = now()
			WHERE id = $2 AND status = $3`,
			string(to), id, string(from))
	case domain.OrderReleased, domain.OrderCancelled:
		res, err = tx.ExecContext(ctx, `
			UPDATE escrow_orders
			SET status = $1, closed_at = now(), updated_at = now()
			WHERE id = $2 AND status = $3`,
			string(to), id, string(from))
	default:
		return fmt.Errorf("escrow_repo.TransitionOrder: unsupported target status %q", to)
	}
	if err != nil {
		return fmt.Errorf("escrow_repo.TransitionOrder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrInvalidOrderState
	}
	return nil
}

// ListOrdersByUser returns paginated orders where the user is buyer or seller,
// newest first.
func (r *EscrowRepository) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.EscrowOrder, error) {
	var orders []*domain.EscrowOrder
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM escrow_orders
		WHERE buyer_user_id = $1 OR seller_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("escrow_repo.ListOrdersByUser: %w", err)
	}
	return orders, nil
}
