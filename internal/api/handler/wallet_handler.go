package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexbit/tradecore/internal/api/middleware"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/shopspring/decimal"
)

// WalletHandler serves balance, ledger, deposit, and withdrawal endpoints.
type WalletHandler struct {
	walletRepo *repository.WalletRepository
	depositSvc *service.DepositService
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(walletRepo *repository.WalletRepository, depositSvc *service.DepositService) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo, depositSvc: depositSvc}
}

// GetBalance godoc
// GET /api/wallet/balance [JWT]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	wallet, err := h.walletRepo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_WALLET_NOT_FOUND", domain.ErrWalletNotFound.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"real_balance": wallet.RealBalance,
		"demo_balance": wallet.DemoBalance,
	})
}

// GetLedger godoc
// GET /api/wallet/ledger?page=1&limit=20 [JWT]
func (h *WalletHandler) GetLedger(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	entries, err := h.walletRepo.GetLedger(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch ledger")
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// ──────────────────────────────────────────────────────────────────────────────
// Deposits
// ──────────────────────────────────────────────────────────────────────────────

// CreateDepositInvoice godoc
// POST /api/wallet/deposit/invoice [JWT]
// Body: {"asset":"usdttrc20","amount":"100.00"}
func (h *WalletHandler) CreateDepositInvoice(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		Asset  string `json:"asset"  binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	intent, err := h.depositSvc.CreateInvoice(c.Request.Context(), userID, body.Asset, amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", domain.ErrInvalidAmount.Error())
		default:
			respondError(c, http.StatusBadGateway, "ERR_PROVIDER", "could not create payment invoice")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, intent)
}

// GetDepositMinAmount godoc
// GET /api/wallet/deposit/min-amount?asset=usdttrc20 [JWT]
func (h *WalletHandler) GetDepositMinAmount(c *gin.Context) {
	asset := c.Query("asset")
	if asset == "" {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "asset query parameter is required")
		return
	}

	min, err := h.depositSvc.MinDepositAmount(c.Request.Context(), asset)
	if err != nil {
		respondError(c, http.StatusBadGateway, "ERR_PROVIDER", "could not fetch minimum amount")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"asset": asset, "min_amount": min})
}

// GetMyDeposits godoc
// GET /api/wallet/deposits?page=1&limit=20 [JWT]
func (h *WalletHandler) GetMyDeposits(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	intents, err := h.depositSvc.GetMyDeposits(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch deposits")
		return
	}
	respondList(c, intents, len(intents), page, limit)
}

// SubmitDepositRequest godoc
// POST /api/wallet/deposit/request [JWT]
// Body: {"amount":"100.00","asset":"USDT","tx_id":"0xabc...","screenshot_url":"https://..."}
func (h *WalletHandler) SubmitDepositRequest(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		Amount        string `json:"amount" binding:"required"`
		Asset         string `json:"asset"  binding:"required"`
		TxID          string `json:"tx_id"  binding:"required"`
		ScreenshotURL string `json:"screenshot_url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	req, err := h.depositSvc.SubmitDepositRequest(c.Request.Context(), userID, amount, body.Asset, body.TxID, body.ScreenshotURL)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not submit deposit request")
		return
	}
	respondSuccess(c, http.StatusCreated, req)
}

// ──────────────────────────────────────────────────────────────────────────────
// Withdrawals
// ──────────────────────────────────────────────────────────────────────────────

// SubmitWithdrawRequest godoc
// POST /api/wallet/withdraw [JWT]
// Body: {"amount":"100.00","asset":"usdttrc20","address":"T..."}
func (h *WalletHandler) SubmitWithdrawRequest(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		Amount  string `json:"amount"  binding:"required"`
		Asset   string `json:"asset"   binding:"required"`
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	req, err := h.depositSvc.SubmitWithdrawRequest(c.Request.Context(), userID, amount, body.Asset, body.Address)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBelowMinWithdraw):
			respondError(c, http.StatusBadRequest, "ERR_BELOW_MIN_WITHDRAW", domain.ErrBelowMinWithdraw.Error())
		case errors.Is(err, domain.ErrWithdrawLimitExceeded):
			respondError(c, http.StatusBadRequest, "ERR_DAILY_LIMIT_EXCEEDED", domain.ErrWithdrawLimitExceeded.Error())
		case errors.Is(err, domain.ErrInsufficientBalance):
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", domain.ErrInsufficientBalance.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not submit withdrawal request")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, req)
}
