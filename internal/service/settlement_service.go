package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/metrics"
	"github.com/nexbit/tradecore/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Notifier — minimal interface SettlementService needs from the WS hub
// ──────────────────────────────────────────────────────────────────────────────

// Notifier pushes a settlement notice to the owning user's connections.
// Implemented by ws.Hub.
type Notifier interface {
	NotifyPositionSettled(userID uuid.UUID, rec *domain.TradeRecord)
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService resolves expired positions. Settlement is driven entirely
// by the durable sweep over status='open' AND expires_at <= now — positions
// due while the process was down are settled on the next tick after restart.
type SettlementService struct {
	db           *sqlx.DB
	positionRepo *repository.PositionRepository
	walletRepo   *repository.WalletRepository
	priceSvc     *PriceService
	cfg          *config.Config
	notifier     Notifier // injected after WS Hub is built
}

// NewSettlementService builds a SettlementService.
func NewSettlementService(
	db *sqlx.DB,
	positionRepo *repository.PositionRepository,
	walletRepo *repository.WalletRepository,
	priceSvc *PriceService,
	cfg *config.Config,
) *SettlementService {
	return &SettlementService{
		db:           db,
		positionRepo: positionRepo,
		walletRepo:   walletRepo,
		priceSvc:     priceSvc,
		cfg:          cfg,
	}
}

// SetNotifier injects the WS Hub dependency post-construction.
func (s *SettlementService) SetNotifier(n Notifier) { s.notifier = n }

// ──────────────────────────────────────────────────────────────────────────────
// SettleDue — called by the Scheduler every tick
// ──────────────────────────────────────────────────────────────────────────────

// SettleDue fetches every position whose expiry has passed but is still open,
// and settles each one. A single failing position does NOT abort the others;
// it stays open and is retried on the next tick.
func (s *SettlementService) SettleDue(ctx context.Context) error {
	due, err := s.positionRepo.GetExpiredOpen(ctx)
	if err != nil {
		return fmt.Errorf("settlement_service.SettleDue: fetch: %w", err)
	}

	for _, p := range due {
		if err := s.settlePosition(ctx, p); err != nil {
			if errors.Is(err, domain.ErrPriceUnavailable) {
				// No fresh price for this symbol: defer, never settle on a
				// stale or defaulted price.
				metrics.SettlementDeferred.Inc()
				continue
			}
			if errors.Is(err, domain.ErrAlreadySettled) {
				// Another sweep got there first; nothing to do.
				continue
			}
			metrics.SettlementErrors.Inc()
			log.Printf("[settlement] ERROR settling position %s: %v", p.ID, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// settlePosition — core settlement logic for a single position
// ──────────────────────────────────────────────────────────────────────────────

func (s *SettlementService) settlePosition(ctx context.Context, p *domain.Position) error {
	// ── Step 1: Fetch exit price ─────────────────────────────────────────────
	quote, err := s.priceSvc.GetLatest(ctx, p.Symbol)
	if err != nil {
		return fmt.Errorf("settlement_service.settlePosition %s: price: %w", p.ID, err)
	}
	// The quote must be from at or after the expiry moment, within the
	// staleness window. A cached quote older than the expiry could predate it.
	if quote.FetchedAt.Before(p.ExpiresAt) {
		return domain.ErrPriceUnavailable
	}

	// ── Step 2: Decide outcome — tie is a loss ───────────────────────────────
	won := p.Won(quote.Price)
	pnl := p.PnL(won)
	result := domain.PositionLost
	if won {
		result = domain.PositionWon
	}

	// ── Step 3: Atomic settlement transaction ────────────────────────────────
	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("settlement_service.settlePosition: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	// The status='open' guard makes this the exactly-once gate: under replay
	// the second transaction matches zero rows and aborts before any credit.
	if txErr = s.positionRepo.Settle(ctx, tx, p.ID, result); txErr != nil {
		return txErr
	}

	// Winner gets stake + pnl back; a loser's stake was consumed at open.
	if won {
		positionID := p.ID
		credit := p.Stake.Add(pnl)
		txErr = s.walletRepo.Credit(ctx, tx, p.UserID, p.Account, credit,
			domain.EntryTradePayout, &positionID,
			fmt.Sprintf("Position won: %s %s", p.Symbol, p.Side))
		if txErr != nil {
			return fmt.Errorf("settlement_service.settlePosition: credit: %w", txErr)
		}
	}

	now := time.Now().UTC()
	rec := &domain.TradeRecord{
		ID:         uuid.New(),
		PositionID: p.ID,
		UserID:     p.UserID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Account:    p.Account,
		Stake:      p.Stake,
		EntryPrice: p.EntryPrice,
		ExitPrice:  quote.Price,
		PayoutPct:  p.PayoutPct,
		PnL:        pnl,
		Result:     result,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   now,
	}
	if txErr = s.positionRepo.InsertTradeRecord(ctx, tx, rec); txErr != nil {
		return fmt.Errorf("settlement_service.settlePosition: record: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("settlement_service.settlePosition: commit: %w", txErr)
	}

	metrics.SettlementsTotal.WithLabelValues(string(result)).Inc()
	log.Printf("[settlement] position %s settled: result=%s exit=%s pnl=%s",
		p.ID, result, quote.Price.StringFixed(4), pnl.StringFixed(4))

	if s.notifier != nil {
		s.notifier.NotifyPositionSettled(p.UserID, rec)
	}
	return nil
}
