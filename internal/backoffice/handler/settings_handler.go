package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/shopspring/decimal"
)

// SettingsHandler serves /admin/settings: the single platform settings row.
type SettingsHandler struct {
	settingsSvc *service.SettingsService
	cfg         *config.Config
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settingsSvc *service.SettingsService, cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{settingsSvc: settingsSvc, cfg: cfg}
}

// Get godoc
// GET /admin/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.settingsSvc.Snapshot())
}

// Update godoc
// PUT /admin/settings
// Body: decimal strings for each editable field. The snapshot is refreshed
// immediately; running services pick the change up on their next operation.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body struct {
		PayoutPct          string `json:"payout_pct"            binding:"required"`
		DemoBalanceDefault string `json:"demo_balance_default"  binding:"required"`
		WithdrawMinUsd     string `json:"withdraw_min_usd"      binding:"required"`
		WithdrawFeePct     string `json:"withdraw_fee_pct"      binding:"required"`
		WithdrawFlatFeeUsd string `json:"withdraw_flat_fee_usd" binding:"required"`
		WithdrawDailyMax   string `json:"withdraw_daily_max"    binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	settings := domain.Settings{ID: 1}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"payout_pct", body.PayoutPct, &settings.PayoutPct},
		{"demo_balance_default", body.DemoBalanceDefault, &settings.DemoBalanceDefault},
		{"withdraw_min_usd", body.WithdrawMinUsd, &settings.WithdrawMinUsd},
		{"withdraw_fee_pct", body.WithdrawFeePct, &settings.WithdrawFeePct},
		{"withdraw_flat_fee_usd", body.WithdrawFlatFeeUsd, &settings.WithdrawFlatFeeUsd},
		{"withdraw_daily_max", body.WithdrawDailyMax, &settings.WithdrawDailyMax},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil || v.IsNegative() {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_VALUE",
				f.name+" must be a non-negative decimal string")
			return
		}
		*f.dst = v
	}

	if settings.PayoutPct.GreaterThan(decimal.NewFromInt(100)) {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_VALUE", "payout_pct cannot exceed 100")
		return
	}

	if err := h.settingsSvc.Update(c.Request.Context(), &settings); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, h.settingsSvc.Snapshot())
}
