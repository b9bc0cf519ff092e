package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// TradeService
// ──────────────────────────────────────────────────────────────────────────────

// TradeService orchestrates position opening and history queries. The stake
// debit and the position insert happen inside a single PostgreSQL transaction:
// either both commit or neither does.
type TradeService struct {
	db           *sqlx.DB
	positionRepo *repository.PositionRepository
	walletRepo   *repository.WalletRepository
	priceSvc     *PriceService
	settingsSvc  *SettingsService
	cfg          *config.Config
}

// NewTradeService creates a TradeService.
func NewTradeService(
	db *sqlx.DB,
	positionRepo *repository.PositionRepository,
	walletRepo *repository.WalletRepository,
	priceSvc *PriceService,
	settingsSvc *SettingsService,
	cfg *config.Config,
) *TradeService {
	return &TradeService{
		db:           db,
		positionRepo: positionRepo,
		walletRepo:   walletRepo,
		priceSvc:     priceSvc,
		settingsSvc:  settingsSvc,
		cfg:          cfg,
	}
}

// OpenPositionRequest carries the validated inputs for opening a position.
type OpenPositionRequest struct {
	UserID   uuid.UUID
	Symbol   string
	Side     domain.Side
	Account  domain.AccountType
	Stake    decimal.Decimal
	Duration time.Duration
}

// OpenPosition validates the request, captures the entry price, and atomically
// debits the stake while inserting the open position.
func (s *TradeService) OpenPosition(ctx context.Context, req OpenPositionRequest) (*domain.Position, error) {
	// ── 1. Input validation ──────────────────────────────────────────────────
	if req.Stake.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidStake
	}
	if !req.Side.Valid() {
		return nil, domain.ErrInvalidSide
	}
	if !req.Account.Valid() {
		return nil, fmt.Errorf("trade_service.OpenPosition: %w: account %q", domain.ErrInvalidAmount, req.Account)
	}
	if !domain.DurationAllowed(req.Duration) {
		return nil, domain.ErrInvalidDuration
	}

	// ── 2. Capture entry price before touching the wallet ───────────────────
	quote, err := s.priceSvc.GetLatest(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("trade_service.OpenPosition: price: %w", err)
	}

	payoutPct := s.settingsSvc.Snapshot().PayoutPct
	now := time.Now().UTC()
	position := &domain.Position{
		ID:         uuid.New(),
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Account:    req.Account,
		Stake:      req.Stake.RoundDown(4),
		EntryPrice: quote.Price,
		PayoutPct:  payoutPct,
		Status:     domain.PositionOpen,
		OpenedAt:   now,
		ExpiresAt:  now.Add(req.Duration),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// ── 3. Begin transaction ─────────────────────────────────────────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("trade_service.OpenPosition: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// ── 4. Debit stake (FOR UPDATE + ledger entry inside the repo) ───────────
	positionID := position.ID
	err = s.walletRepo.Debit(ctx, tx, req.UserID, req.Account, position.Stake,
		domain.EntryTradeStake, &positionID,
		fmt.Sprintf("Position opened: %s %s", req.Symbol, req.Side))
	if err != nil {
		return nil, fmt.Errorf("trade_service.OpenPosition: debit: %w", err)
	}

	// ── 5. Persist the position ──────────────────────────────────────────────
	if err = s.positionRepo.Create(ctx, tx, position); err != nil {
		return nil, fmt.Errorf("trade_service.OpenPosition: create: %w", err)
	}

	// ── 6. Commit ────────────────────────────────────────────────────────────
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("trade_service.OpenPosition: commit: %w", err)
	}

	return position, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetMyPositions returns paginated positions for a user; status filters when
// non-empty.
func (s *TradeService) GetMyPositions(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*domain.Position, error) {
	positions, err := s.positionRepo.ListByUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("trade_service.GetMyPositions: %w", err)
	}
	return positions, nil
}

// GetPositionByID returns a single position only if it belongs to userID.
func (s *TradeService) GetPositionByID(ctx context.Context, positionID, userID uuid.UUID) (*domain.Position, error) {
	position, err := s.positionRepo.GetByID(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("trade_service.GetPositionByID: %w", err)
	}
	if position.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return position, nil
}

// GetMyTradeHistory returns paginated settled trades for a user.
func (s *TradeService) GetMyTradeHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.TradeRecord, error) {
	records, err := s.positionRepo.ListTradeHistory(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("trade_service.GetMyTradeHistory: %w", err)
	}
	return records, nil
}
