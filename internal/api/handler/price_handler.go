package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/service"
)

// PriceHandler serves spot price and kline endpoints (public).
type PriceHandler struct {
	priceSvc *service.PriceService
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(priceSvc *service.PriceService) *PriceHandler {
	return &PriceHandler{priceSvc: priceSvc}
}

// GetLatest godoc
// GET /api/price/latest?symbol=BTCUSDT
func (h *PriceHandler) GetLatest(c *gin.Context) {
	quote, err := h.priceSvc.GetLatest(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		if errors.Is(err, domain.ErrPriceUnavailable) {
			respondError(c, http.StatusServiceUnavailable, "ERR_PRICE_UNAVAILABLE", domain.ErrPriceUnavailable.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch price")
		return
	}
	respondSuccess(c, http.StatusOK, quote)
}

// GetKlines godoc
// GET /api/price/klines?symbol=BTCUSDT&interval=1m&limit=500
func (h *PriceHandler) GetKlines(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.DefaultQuery("interval", "1m")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))

	klines, err := h.priceSvc.GetKlines(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		respondError(c, http.StatusBadGateway, "ERR_UPSTREAM", "could not fetch klines")
		return
	}
	// Raw exchange payload, passed through untouched for charting clients.
	c.Data(http.StatusOK, "application/json", klines)
}

// GetExchangeStatus godoc
// GET /api/price/status
func (h *PriceHandler) GetExchangeStatus(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.priceSvc.ExchangeStatus())
}
