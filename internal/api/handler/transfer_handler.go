package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nexbit/tradecore/internal/api/middleware"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/shopspring/decimal"
)

// TransferHandler serves the two-phase internal transfer endpoints.
type TransferHandler struct {
	transferSvc *service.TransferService
}

// NewTransferHandler creates a TransferHandler.
func NewTransferHandler(transferSvc *service.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Initiate godoc
// POST /api/transfers [JWT]
// Body: {"to_email":"bob@example.com","amount":"50.00"}
func (h *TransferHandler) Initiate(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		ToEmail string `json:"to_email" binding:"required,email"`
		Amount  string `json:"amount"   binding:"required"`
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

	intent, err := h.transferSvc.Initiate(c.Request.Context(), userID, body.ToEmail, amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "ERR_RECIPIENT_NOT_FOUND", "recipient not found")
		case errors.Is(err, domain.ErrSelfTransfer):
			respondError(c, http.StatusBadRequest, "ERR_SELF_TRANSFER", domain.ErrSelfTransfer.Error())
		case errors.Is(err, domain.ErrInvalidAmount):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", domain.ErrInvalidAmount.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not initiate transfer")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, intent)
}

// Confirm godoc
// POST /api/transfers/:id/confirm [JWT]
// Body: {"code":"123456"}
func (h *TransferHandler) Confirm(c *gin.Context) {
	userID := middleware.GetUserID(c)

	transferID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_TRANSFER_ID", "invalid transfer id")
		return
	}

	var body struct {
		Code string `json:"code" binding:"required,len=6"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	intent, err := h.transferSvc.Confirm(c.Request.Context(), transferID, body.Code, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTransferNotFound):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", domain.ErrTransferNotFound.Error())
		case errors.Is(err, domain.ErrForbidden):
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "this transfer does not belong to you")
		case errors.Is(err, domain.ErrInvalidOrderState):
			respondError(c, http.StatusConflict, "ERR_ALREADY_COMPLETED", "transfer is not awaiting confirmation")
		case errors.Is(err, domain.ErrCodeExpired):
			respondError(c, http.StatusGone, "ERR_CODE_EXPIRED", domain.ErrCodeExpired.Error())
		case errors.Is(err, domain.ErrInvalidCode):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_CODE", domain.ErrInvalidCode.Error())
		case errors.Is(err, domain.ErrInsufficientBalance):
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", domain.ErrInsufficientBalance.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not confirm transfer")
		}
		return
	}
	respondSuccess(c, http.StatusOK, intent)
}

// ResendCode godoc
// POST /api/transfers/resend-code [JWT]
func (h *TransferHandler) ResendCode(c *gin.Context) {
	userID := middleware.GetUserID(c)

	if err := h.transferSvc.ResendCode(c.Request.Context(), userID); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not resend code")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sent": true})
}

// GetMyTransfers godoc
// GET /api/transfers/history?page=1&limit=20 [JWT]
func (h *TransferHandler) GetMyTransfers(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	records, err := h.transferSvc.GetMyTransfers(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch transfers")
		return
	}
	respondList(c, records, len(records), page, limit)
}
