package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// EscrowService
// ──────────────────────────────────────────────────────────────────────────────

// EscrowService orchestrates the P2P order lifecycle:
//
//	pending_payment → paid → released
//	pending_payment → cancelled
//
// When the listing advertises a sell, the seller's funds are debited into
// escrow at order creation and the order carries EscrowHeld=true; release then
// only credits the buyer, and cancellation refunds the seller. Without a hold
// the release debits the seller and credits the buyer in one transaction.
type EscrowService struct {
	db         *sqlx.DB
	escrowRepo *repository.EscrowRepository
	walletRepo *repository.WalletRepository
	cfg        *config.Config
}

// NewEscrowService creates an EscrowService.
func NewEscrowService(
	db *sqlx.DB,
	escrowRepo *repository.EscrowRepository,
	walletRepo *repository.WalletRepository,
	cfg *config.Config,
) *EscrowService {
	return &EscrowService{
		db:         db,
		escrowRepo: escrowRepo,
		walletRepo: walletRepo,
		cfg:        cfg,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Listings
// ──────────────────────────────────────────────────────────────────────────────

// CreateListingRequest carries the inputs for a new P2P listing.
type CreateListingRequest struct {
	OwnerUserID uuid.UUID
	Side        domain.ListingSide
	Asset       string
	Price       decimal.Decimal
	MinAmount   decimal.Decimal
	MaxAmount   decimal.Decimal
}

// CreateListing validates bounds and inserts an active listing.
func (s *EscrowService) CreateListing(ctx context.Context, req CreateListingRequest) (*domain.Listing, error) {
	if req.Side != domain.ListingBuy && req.Side != domain.ListingSell {
		return nil, domain.ErrInvalidOrderState
	}
	if req.Price.LessThanOrEqual(decimal.Zero) || req.MinAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	if req.MaxAmount.LessThan(req.MinAmount) {
		return nil, domain.ErrAmountOutOfRange
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:          uuid.New(),
		OwnerUserID: req.OwnerUserID,
		Side:        req.Side,
		Asset:       req.Asset,
		Price:       req.Price,
		MinAmount:   req.MinAmount,
		MaxAmount:   req.MaxAmount,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.escrowRepo.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("escrow_service.CreateListing: %w", err)
	}
	return listing, nil
}

// ListActiveListings returns paginated active listings.
func (s *EscrowService) ListActiveListings(ctx context.Context, side string, limit, offset int) ([]*domain.Listing, error) {
	listings, err := s.escrowRepo.ListActiveListings(ctx, side, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.ListActiveListings: %w", err)
	}
	return listings, nil
}

// DeactivateListing turns a listing off. Only the owner may do this.
func (s *EscrowService) DeactivateListing(ctx context.Context, listingID, callerID uuid.UUID) error {
	listing, err := s.escrowRepo.GetListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("escrow_service.DeactivateListing: %w", err)
	}
	if listing.OwnerUserID != callerID {
		return domain.ErrForbidden
	}
	if err := s.escrowRepo.SetListingActive(ctx, listingID, false); err != nil {
		return fmt.Errorf("escrow_service.DeactivateListing: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateOrder
// ──────────────────────────────────────────────────────────────────────────────

// CreateOrder opens an escrow order against an active listing. The taker takes
// the side opposite the listing. When the seller's funds must be held, the
// hold and the order insert share one transaction: insufficient seller funds
// mean no order is created at all.
func (s *EscrowService) CreateOrder(ctx context.Context, takerID, listingID uuid.UUID, amountUsd decimal.Decimal) (*domain.EscrowOrder, error) {
	// ── 1. Validate listing and amount ───────────────────────────────────────
	listing, err := s.escrowRepo.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.CreateOrder: %w", err)
	}
	if !listing.IsActive {
		return nil, domain.ErrListingInactive
	}
	if amountUsd.LessThan(listing.MinAmount) || amountUsd.GreaterThan(listing.MaxAmount) {
		return nil, domain.ErrAmountOutOfRange
	}

	// ── 2. Derive roles from the listing side ────────────────────────────────
	var sellerID, buyerID uuid.UUID
	holdFunds := false
	if listing.Side == domain.ListingSell {
		// Owner sells; the taker buys. Seller funds go into escrow now.
		sellerID = listing.OwnerUserID
		buyerID = takerID
		holdFunds = true
	} else {
		// Owner buys; the taker sells.
		sellerID = takerID
		buyerID = listing.OwnerUserID
	}
	if sellerID == buyerID {
		return nil, domain.ErrSelfTransfer
	}

	now := time.Now().UTC()
	order := &domain.EscrowOrder{
		ID:           uuid.New(),
		ListingID:    listing.ID,
		SellerUserID: sellerID,
		BuyerUserID:  buyerID,
		Asset:        listing.Asset,
		AmountUsd:    amountUsd.RoundDown(4),
		Status:       domain.OrderPendingPayment,
		EscrowHeld:   holdFunds,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// ── 3. Hold + insert in one transaction ──────────────────────────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.CreateOrder: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if holdFunds {
		orderID := order.ID
		err = s.walletRepo.Debit(ctx, tx, sellerID, domain.AccountReal, order.AmountUsd,
			domain.EntryEscrowHold, &orderID,
			fmt.Sprintf("Escrow hold: order for %s", listing.Asset))
		if err != nil {
			return nil, fmt.Errorf("escrow_service.CreateOrder: hold: %w", err)
		}
	}

	if err = s.escrowRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("escrow_service.CreateOrder: insert: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow_service.CreateOrder: commit: %w", err)
	}
	return order, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// MarkPaid
// ──────────────────────────────────────────────────────────────────────────────

// MarkPaid transitions pending_payment → paid. Only the buyer may call it.
func (s *EscrowService) MarkPaid(ctx context.Context, orderID, callerID uuid.UUID) (*domain.EscrowOrder, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.MarkPaid: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	order, err := s.escrowRepo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.MarkPaid: %w", err)
	}
	if order.BuyerUserID != callerID {
		err = domain.ErrNotOrderBuyer
		return nil, err
	}
	if order.Status != domain.OrderPendingPayment {
		err = domain.ErrInvalidOrderState
		return nil, err
	}

	if err = s.escrowRepo.TransitionOrder(ctx, tx, orderID, domain.OrderPendingPayment, domain.OrderPaid); err != nil {
		return nil, fmt.Errorf("escrow_service.MarkPaid: transition: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow_service.MarkPaid: commit: %w", err)
	}

	order.Status = domain.OrderPaid
	return order, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Release
// ──────────────────────────────────────────────────────────────────────────────

// Release transitions paid → released and moves the money. Only the seller may
// call it. With a prior hold the buyer is simply credited; without one the
// seller is debited and the buyer credited atomically — insufficient seller
// funds abort the whole thing and the order stays paid.
func (s *EscrowService) Release(ctx context.Context, orderID, callerID uuid.UUID) (*domain.EscrowOrder, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.Release: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	order, err := s.escrowRepo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.Release: %w", err)
	}
	if order.SellerUserID != callerID {
		err = domain.ErrNotOrderSeller
		return nil, err
	}
	if order.Status != domain.OrderPaid {
		err = domain.ErrInvalidOrderState
		return nil, err
	}

	orderIDCopy := order.ID
	if !order.EscrowHeld {
		// No hold was taken at creation: debit the seller now.
		err = s.walletRepo.Debit(ctx, tx, order.SellerUserID, domain.AccountReal, order.AmountUsd,
			domain.EntryEscrowRelease, &orderIDCopy,
			fmt.Sprintf("Escrow release: order %s", order.ID))
		if err != nil {
			return nil, fmt.Errorf("escrow_service.Release: debit seller: %w", err)
		}
	}
	err = s.walletRepo.Credit(ctx, tx, order.BuyerUserID, domain.AccountReal, order.AmountUsd,
		domain.EntryEscrowRelease, &orderIDCopy,
		fmt.Sprintf("Escrow release: order %s", order.ID))
	if err != nil {
		return nil, fmt.Errorf("escrow_service.Release: credit buyer: %w", err)
	}

	if err = s.escrowRepo.TransitionOrder(ctx, tx, orderID, domain.OrderPaid, domain.OrderReleased); err != nil {
		return nil, fmt.Errorf("escrow_service.Release: transition: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow_service.Release: commit: %w", err)
	}

	log.Printf("[escrow] order %s released: %s USD to buyer %s",
		order.ID, order.AmountUsd.StringFixed(4), order.BuyerUserID)
	order.Status = domain.OrderReleased
	return order, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────────────────────────────────

// Cancel transitions pending_payment → cancelled. Either participant may call
// it. A held escrow amount is refunded to the seller in the same transaction.
func (s *EscrowService) Cancel(ctx context.Context, orderID, callerID uuid.UUID) (*domain.EscrowOrder, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.Cancel: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	order, err := s.escrowRepo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.Cancel: %w", err)
	}
	if !order.IsParticipant(callerID) {
		err = domain.ErrNotParticipant
		return nil, err
	}
	if order.Status != domain.OrderPendingPayment {
		err = domain.ErrInvalidOrderState
		return nil, err
	}

	if order.EscrowHeld {
		orderIDCopy := order.ID
		err = s.walletRepo.Credit(ctx, tx, order.SellerUserID, domain.AccountReal, order.AmountUsd,
			domain.EntryEscrowRefund, &orderIDCopy,
			fmt.Sprintf("Escrow refund: order %s cancelled", order.ID))
		if err != nil {
			return nil, fmt.Errorf("escrow_service.Cancel: refund: %w", err)
		}
	}

	if err = s.escrowRepo.TransitionOrder(ctx, tx, orderID, domain.OrderPendingPayment, domain.OrderCancelled); err != nil {
		return nil, fmt.Errorf("escrow_service.Cancel: transition: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow_service.Cancel: commit: %w", err)
	}

	order.Status = domain.OrderCancelled
	return order, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetMyOrders returns paginated orders where the user is a participant.
func (s *EscrowService) GetMyOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.EscrowOrder, error) {
	orders, err := s.escrowRepo.ListOrdersByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.GetMyOrders: %w", err)
	}
	return orders, nil
}

// GetOrder returns an order only to its participants.
func (s *EscrowService) GetOrder(ctx context.Context, orderID, callerID uuid.UUID) (*domain.EscrowOrder, error) {
	order, err := s.escrowRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.GetOrder: %w", err)
	}
	if !order.IsParticipant(callerID) {
		return nil, domain.ErrForbidden
	}
	return order, nil
}
