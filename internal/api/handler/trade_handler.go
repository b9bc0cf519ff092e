package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nexbit/tradecore/internal/api/middleware"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/shopspring/decimal"
)

// TradeHandler serves position opening and trade history endpoints.
type TradeHandler struct {
	tradeSvc *service.TradeService
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(tradeSvc *service.TradeService) *TradeHandler {
	return &TradeHandler{tradeSvc: tradeSvc}
}

// OpenPosition godoc
// POST /api/positions [JWT]
// Body: {"symbol":"BTCUSDT","side":"BUY","account":"real","stake":"100.00","duration_sec":60}
func (h *TradeHandler) OpenPosition(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		Symbol      string `json:"symbol"       binding:"required"`
		Side        string `json:"side"         binding:"required"`
		Account     string `json:"account"      binding:"required"`
		Stake       string `json:"stake"        binding:"required"`
		DurationSec int    `json:"duration_sec" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	stake, err := decimal.NewFromString(body.Stake)
	if err != nil || stake.IsNegative() || stake.IsZero() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_STAKE", "stake must be a positive decimal string")
		return
	}

	req := service.OpenPositionRequest{
		UserID:   userID,
		Symbol:   body.Symbol,
		Side:     domain.Side(body.Side),
		Account:  domain.AccountType(body.Account),
		Stake:    stake,
		Duration: time.Duration(body.DurationSec) * time.Second,
	}

	position, err := h.tradeSvc.OpenPosition(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStake):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_STAKE", domain.ErrInvalidStake.Error())
		case errors.Is(err, domain.ErrInvalidSide):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_SIDE", domain.ErrInvalidSide.Error())
		case errors.Is(err, domain.ErrInvalidDuration):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DURATION", domain.ErrInvalidDuration.Error())
		case errors.Is(err, domain.ErrInvalidAmount):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_ACCOUNT", "account must be real or demo")
		case errors.Is(err, domain.ErrInsufficientBalance):
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", domain.ErrInsufficientBalance.Error())
		case errors.Is(err, domain.ErrPriceUnavailable):
			respondError(c, http.StatusServiceUnavailable, "ERR_PRICE_UNAVAILABLE", domain.ErrPriceUnavailable.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not open position")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, position)
}

// GetMyPositions godoc
// GET /api/positions/my?status=open&page=1&limit=20 [JWT]
func (h *TradeHandler) GetMyPositions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit
	status := c.Query("status")

	positions, err := h.tradeSvc.GetMyPositions(c.Request.Context(), userID, status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch positions")
		return
	}
	respondList(c, positions, len(positions), page, limit)
}

// GetPositionByID godoc
// GET /api/positions/:id [JWT]
func (h *TradeHandler) GetPositionByID(c *gin.Context) {
	userID := middleware.GetUserID(c)

	positionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_POSITION_ID", "invalid position id")
		return
	}

	position, err := h.tradeSvc.GetPositionByID(c.Request.Context(), positionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "this position does not belong to you")
		case errors.Is(err, domain.ErrPositionNotFound):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "position not found")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch position")
		}
		return
	}
	respondSuccess(c, http.StatusOK, position)
}

// GetMyTradeHistory godoc
// GET /api/trades/history?page=1&limit=20 [JWT]
func (h *TradeHandler) GetMyTradeHistory(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	records, err := h.tradeSvc.GetMyTradeHistory(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch trade history")
		return
	}
	respondList(c, records, len(records), page, limit)
}
