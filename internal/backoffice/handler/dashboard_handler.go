package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/nexbit/tradecore/internal/ws"
	"github.com/shopspring/decimal"
)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	positionRepo *repository.PositionRepository
	depositRepo  *repository.DepositRepository
	priceSvc     *service.PriceService
	settingsSvc  *service.SettingsService
	hub          *ws.Hub
	cfg          *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	positionRepo *repository.PositionRepository,
	depositRepo *repository.DepositRepository,
	priceSvc *service.PriceService,
	settingsSvc *service.SettingsService,
	hub *ws.Hub,
	cfg *config.Config,
) *DashboardHandler {
	return &DashboardHandler{
		positionRepo: positionRepo,
		depositRepo:  depositRepo,
		priceSvc:     priceSvc,
		settingsSvc:  settingsSvc,
		hub:          hub,
		cfg:          cfg,
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	// ── Open exposure ────────────────────────────────────────────────────────
	openCount, openStake, err := h.positionRepo.OpenExposure(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	// ── Review queues ────────────────────────────────────────────────────────
	pendingDeposits, _ := h.depositRepo.ListDepositRequests(ctx, "pending", 1000, 0)
	pendingWithdrawals, _ := h.depositRepo.ListWithdrawRequests(ctx, "pending", 1000, 0)

	var depositTotal, withdrawTotal decimal.Decimal
	for _, d := range pendingDeposits {
		depositTotal = depositTotal.Add(d.AmountUsd)
	}
	for _, w := range pendingWithdrawals {
		withdrawTotal = withdrawTotal.Add(w.Amount)
	}

	// ── WS connections ───────────────────────────────────────────────────────
	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"open_positions": gin.H{
			"count":      openCount,
			"real_stake": openStake,
		},
		"pending_deposits": gin.H{
			"count": len(pendingDeposits),
			"total": depositTotal,
		},
		"pending_withdrawals": gin.H{
			"count": len(pendingWithdrawals),
			"total": withdrawTotal,
		},
		"exchanges":      h.priceSvc.ExchangeStatus(),
		"settings":       h.settingsSvc.Snapshot(),
		"ws_connections": wsConnections,
	})
}
