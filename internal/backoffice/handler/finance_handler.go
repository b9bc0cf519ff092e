package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/nexbit/tradecore/internal/service"
)

// FinanceHandler serves /admin/finance endpoints: the deposit and withdrawal
// review queues plus the platform ledger.
type FinanceHandler struct {
	depositSvc  *service.DepositService
	depositRepo *repository.DepositRepository
	walletRepo  *repository.WalletRepository
	cfg         *config.Config
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(
	depositSvc *service.DepositService,
	depositRepo *repository.DepositRepository,
	walletRepo *repository.WalletRepository,
	cfg *config.Config,
) *FinanceHandler {
	return &FinanceHandler{
		depositSvc:  depositSvc,
		depositRepo: depositRepo,
		walletRepo:  walletRepo,
		cfg:         cfg,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Deposits
// ──────────────────────────────────────────────────────────────────────────────

// Deposits godoc
// GET /admin/finance/deposits?status=pending&page=1&limit=50
func (h *FinanceHandler) Deposits(c *gin.Context) {
	status := c.DefaultQuery("status", "")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	reqs, err := h.depositRepo.ListDepositRequests(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, reqs, len(reqs), page, limit)
}

// ApproveDeposit godoc
// POST /admin/finance/deposits/:id/approve
// Body: {"note": "..."} (optional)
func (h *FinanceHandler) ApproveDeposit(c *gin.Context) {
	h.review(c, h.depositSvc.ApproveDeposit, "approved")
}

// RejectDeposit godoc
// POST /admin/finance/deposits/:id/reject
func (h *FinanceHandler) RejectDeposit(c *gin.Context) {
	h.review(c, h.depositSvc.RejectDeposit, "rejected")
}

// ──────────────────────────────────────────────────────────────────────────────
// Withdrawals
// ──────────────────────────────────────────────────────────────────────────────

// Withdrawals godoc
// GET /admin/finance/withdrawals?status=pending&page=1&limit=50
func (h *FinanceHandler) Withdrawals(c *gin.Context) {
	status := c.DefaultQuery("status", "")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	reqs, err := h.depositRepo.ListWithdrawRequests(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, reqs, len(reqs), page, limit)
}

// ApproveWithdrawal godoc
// POST /admin/finance/withdrawals/:id/approve
// The wallet is debited inside the approval transaction; insufficient funds
// surface here instead of silently approving.
func (h *FinanceHandler) ApproveWithdrawal(c *gin.Context) {
	h.review(c, h.depositSvc.ApproveWithdraw, "approved")
}

// RejectWithdrawal godoc
// POST /admin/finance/withdrawals/:id/reject
func (h *FinanceHandler) RejectWithdrawal(c *gin.Context) {
	h.review(c, h.depositSvc.RejectWithdraw, "rejected")
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────────────────────────────────

// Ledger godoc
// GET /admin/finance/ledger?type=deposit&page=1&limit=50
func (h *FinanceHandler) Ledger(c *gin.Context) {
	entryType := c.DefaultQuery("type", "")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	entries, err := h.walletRepo.ListEntries(c.Request.Context(), entryType, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// reviewOp is the shared signature of the four review operations.
type reviewOp func(ctx context.Context, requestID, reviewerID uuid.UUID, note string) error

// review parses the request id and optional note, runs the operation, and
// maps the shared error surface.
func (h *FinanceHandler) review(c *gin.Context, op reviewOp, outcome string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid request id")
		return
	}
	var body struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&body) // note is optional

	if err = op(c.Request.Context(), id, adminUserID(c), body.Note); err != nil {
		switch {
		case errors.Is(err, domain.ErrRequestNotFound):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", domain.ErrRequestNotFound.Error())
		case errors.Is(err, domain.ErrRequestNotPending):
			respondError(c, http.StatusConflict, "ERR_NOT_PENDING", domain.ErrRequestNotPending.Error())
		case errors.Is(err, domain.ErrInsufficientBalance):
			respondError(c, http.StatusConflict, "ERR_INSUFFICIENT_BALANCE", domain.ErrInsufficientBalance.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "status": outcome})
}

// adminUserID extracts the admin's UUID from the gin context (set by adminJWTMiddleware).
func adminUserID(c *gin.Context) uuid.UUID {
	v, _ := c.Get("userID")
	s, _ := v.(string)
	id, _ := uuid.Parse(s)
	return id
}
