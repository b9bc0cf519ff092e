// Package scheduler manages the three background goroutines that run the
// position lifecycle:
//  1. settlementLoop – settles expired open positions every 2 seconds.
//  2. priceTickLoop  – refreshes tracked prices and pushes ticks to WS clients
//     every second.
//  3. settingsLoop   – refreshes the platform settings snapshot periodically.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/nexbit/tradecore/internal/ws"
)

// settlementInterval is how often the sweep for due positions runs.
const settlementInterval = 2 * time.Second

// ──────────────────────────────────────────────────────────────────────────────
// WsHub interface — minimally required from the Hub
// ──────────────────────────────────────────────────────────────────────────────

// WsHub defines the broadcast operations the Scheduler needs from the WebSocket
// hub.  Declared here so the scheduler package does not import the ws/hub.go
// implementation and cause a circular dependency.
type WsHub interface {
	BroadcastPriceTick(msg ws.PriceTickMessage)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler wires together the services and runs the background lifecycle
// goroutines.  Call Start(ctx) once from main(); cancel the context to shut it
// down gracefully.
type Scheduler struct {
	settlementSvc *service.SettlementService
	priceSvc      *service.PriceService
	settingsSvc   *service.SettingsService
	hub           WsHub
	symbols       []string // symbols kept warm in the price cache
	cfg           *config.Config
	logger        *slog.Logger
}

// NewScheduler creates a Scheduler. symbols lists the markets whose prices are
// refreshed and broadcast every tick.
func NewScheduler(
	settlementSvc *service.SettlementService,
	priceSvc *service.PriceService,
	settingsSvc *service.SettingsService,
	hub WsHub,
	symbols []string,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	if len(symbols) == 0 {
		symbols = []string{"BTCUSDT"}
	}
	return &Scheduler{
		settlementSvc: settlementSvc,
		priceSvc:      priceSvc,
		settingsSvc:   settingsSvc,
		hub:           hub,
		symbols:       symbols,
		cfg:           cfg,
		logger:        logger,
	}
}

// Start launches the three background goroutines.  It returns immediately;
// all loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.settlementLoop(ctx)
	go s.priceTickLoop(ctx)
	go s.settingsLoop(ctx)
	s.logger.Info("scheduler started", "symbols", s.symbols)
}

// ──────────────────────────────────────────────────────────────────────────────
// settlementLoop
// ──────────────────────────────────────────────────────────────────────────────

// settlementLoop sweeps for expired open positions every 2 seconds. A stale
// price leaves a position open; the next sweep picks it up again.
func (s *Scheduler) settlementLoop(ctx context.Context) {
	defer s.recoverAndLog("settlementLoop")

	ticker := time.NewTicker(settlementInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlementLoop: shutting down")
			return
		case <-ticker.C:
			if err := s.settlementSvc.SettleDue(ctx); err != nil {
				s.logger.Error("settlementLoop: SettleDue", "err", err)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// priceTickLoop
// ──────────────────────────────────────────────────────────────────────────────

// priceTickLoop refreshes each tracked symbol every second and broadcasts a
// PriceTickMessage to all connected WS clients. Refreshing here also keeps the
// cache warm for settlement, which requires a quote at least as fresh as the
// position expiry.
func (s *Scheduler) priceTickLoop(ctx context.Context) {
	defer s.recoverAndLog("priceTickLoop")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("priceTickLoop: shutting down")
			return
		case <-ticker.C:
			s.broadcastTicks(ctx)
		}
	}
}

// broadcastTicks is the inner body of priceTickLoop, extracted so that the
// defer/recover in the loop catches panics correctly.
func (s *Scheduler) broadcastTicks(ctx context.Context) {
	for _, symbol := range s.symbols {
		quote, err := s.priceSvc.Refresh(ctx, symbol)
		if err != nil {
			s.logger.Warn("priceTickLoop: refresh failed", "symbol", symbol, "err", err)
			continue
		}
		if s.hub == nil {
			continue
		}
		s.hub.BroadcastPriceTick(ws.PriceTickMessage{
			Type:      ws.MsgTypePriceTick,
			Symbol:    quote.Symbol,
			Price:     quote.Price,
			Exchange:  quote.Exchange,
			Timestamp: quote.FetchedAt,
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// settingsLoop
// ──────────────────────────────────────────────────────────────────────────────

// settingsLoop refreshes the in-memory settings snapshot so back-office edits
// reach the trading path without a restart.
func (s *Scheduler) settingsLoop(ctx context.Context) {
	defer s.recoverAndLog("settingsLoop")

	ticker := time.NewTicker(s.cfg.Settings.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settingsLoop: shutting down")
			return
		case <-ticker.C:
			if err := s.settingsSvc.Refresh(ctx); err != nil {
				s.logger.Warn("settingsLoop: refresh failed", "err", err)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
