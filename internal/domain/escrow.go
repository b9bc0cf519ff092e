package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Listing
// ──────────────────────────────────────────────────────────────────────────────

// ListingSide is the side advertised by the listing owner. A taker always takes
// the opposite side: opening an order on a "sell" listing makes the taker the
// buyer, and vice versa.
type ListingSide string

const (
	ListingBuy  ListingSide = "buy"
	ListingSell ListingSide = "sell"
)

// Listing is a P2P advertisement for buying or selling an asset at a fixed
// price within amount bounds.
type Listing struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	OwnerUserID uuid.UUID       `json:"owner_user_id" db:"owner_user_id"`
	Side        ListingSide     `json:"side"         db:"side"`
	Asset       string          `json:"asset"        db:"asset"`
	Price       decimal.Decimal `json:"price"        db:"price"`
	MinAmount   decimal.Decimal `json:"min_amount"   db:"min_amount"`
	MaxAmount   decimal.Decimal `json:"max_amount"   db:"max_amount"`
	IsActive    bool            `json:"is_active"    db:"is_active"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"   db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// EscrowOrder
// ──────────────────────────────────────────────────────────────────────────────

// OrderStatus is the escrow order state machine:
//
//	pending_payment → paid → released
//	pending_payment → cancelled
//
// Every other transition is rejected with ErrInvalidOrderState.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderReleased       OrderStatus = "released"
	OrderCancelled      OrderStatus = "cancelled"
)

// EscrowOrder tracks one P2P trade between a buyer and a seller. When
// EscrowHeld is true the seller's funds were debited into escrow at order
// creation; release then only credits the buyer, and cancellation refunds the
// seller.
type EscrowOrder struct {
	ID           uuid.UUID       `json:"id"             db:"id"`
	ListingID    uuid.UUID       `json:"listing_id"     db:"listing_id"`
	SellerUserID uuid.UUID       `json:"seller_user_id" db:"seller_user_id"`
	BuyerUserID  uuid.UUID       `json:"buyer_user_id"  db:"buyer_user_id"`
	Asset        string          `json:"asset"          db:"asset"`
	AmountUsd    decimal.Decimal `json:"amount_usd"     db:"amount_usd"`
	Status       OrderStatus     `json:"status"         db:"status"`
	EscrowHeld   bool            `json:"escrow_held"    db:"escrow_held"`
	PaidAt       *time.Time      `json:"paid_at"        db:"paid_at"`
	ClosedAt     *time.Time      `json:"closed_at"      db:"closed_at"`
	CreatedAt    time.Time       `json:"created_at"     db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"     db:"updated_at"`
}

// IsParticipant returns true when userID is the order's buyer or seller.
func (o *EscrowOrder) IsParticipant(userID uuid.UUID) bool {
	return o.BuyerUserID == userID || o.SellerUserID == userID
}
