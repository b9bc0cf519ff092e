package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/shopspring/decimal"
)

// UserAdminHandler serves /admin/users endpoints.
type UserAdminHandler struct {
	db         *sqlx.DB
	userRepo   *repository.UserRepository
	walletRepo *repository.WalletRepository
	cfg        *config.Config
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(
	db *sqlx.DB,
	userRepo *repository.UserRepository,
	walletRepo *repository.WalletRepository,
	cfg *config.Config,
) *UserAdminHandler {
	return &UserAdminHandler{db: db, userRepo: userRepo, walletRepo: walletRepo, cfg: cfg}
}

// List godoc
// GET /admin/users?page=1&limit=50
func (h *UserAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	users, total, err := h.userRepo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, users, total, page, limit)
}

// Detail godoc
// GET /admin/users/:id
func (h *UserAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}

	ctx := c.Request.Context()
	user, err := h.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", domain.ErrUserNotFound.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	wallet, _ := h.walletRepo.GetByUserID(ctx, id)
	ledger, _ := h.walletRepo.GetLedger(ctx, id, 50, 0)

	respondSuccess(c, http.StatusOK, gin.H{
		"user":   user,
		"wallet": wallet,
		"ledger": ledger,
	})
}

// Suspend godoc
// POST /admin/users/:id/suspend
func (h *UserAdminHandler) Suspend(c *gin.Context) {
	h.setActive(c, false)
}

// Activate godoc
// POST /admin/users/:id/activate
func (h *UserAdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *UserAdminHandler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	if err = h.userRepo.SetActive(c.Request.Context(), id, active); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": id, "is_active": active})
}

// AdjustBalance godoc
// POST /admin/users/:id/balance
// Body: {"account":"real","amount":"500","note":"goodwill credit"}
// A signed amount: positive credits, negative debits. The adjustment goes
// through the same ledger path as every other balance change, so it is
// audited with before/after balances.
func (h *UserAdminHandler) AdjustBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	var body struct {
		Account string `json:"account" binding:"required"`
		Amount  string `json:"amount"  binding:"required"`
		Note    string `json:"note"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	account := domain.AccountType(body.Account)
	if !account.Valid() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ACCOUNT", "account must be real or demo")
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || amount.IsZero() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a non-zero decimal string")
		return
	}

	note := body.Note
	if note == "" {
		note = "Admin balance adjustment"
	}
	note = fmt.Sprintf("%s (by %s)", note, adminUserID(c))

	ctx := c.Request.Context()
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	adjErr := func() error {
		if amount.IsPositive() {
			return h.walletRepo.Credit(ctx, tx, id, account, amount, domain.EntryAdjustment, nil, note)
		}
		return h.walletRepo.Debit(ctx, tx, id, account, amount.Neg(), domain.EntryAdjustment, nil, note)
	}()
	if adjErr != nil {
		_ = tx.Rollback()
		switch {
		case errors.Is(adjErr, domain.ErrWalletNotFound):
			respondError(c, http.StatusNotFound, "ERR_WALLET_NOT_FOUND", domain.ErrWalletNotFound.Error())
		case errors.Is(adjErr, domain.ErrInsufficientBalance):
			respondError(c, http.StatusConflict, "ERR_INSUFFICIENT_BALANCE", domain.ErrInsufficientBalance.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", adjErr.Error())
		}
		return
	}
	if err = tx.Commit(); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	wallet, _ := h.walletRepo.GetByUserID(ctx, id)
	respondSuccess(c, http.StatusOK, gin.H{
		"user_id": id,
		"account": account,
		"amount":  amount,
		"wallet":  wallet,
	})
}

// SetRole godoc
// POST /admin/users/:id/role
// Body: {"role": "finance"}
func (h *UserAdminHandler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	role := domain.UserRole(body.Role)
	validRoles := map[domain.UserRole]bool{
		domain.RoleUser:     true,
		domain.RoleAdmin:    true,
		domain.RoleFinance:  true,
		domain.RoleSupport:  true,
		domain.RoleReadOnly: true,
	}
	if !validRoles[role] {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ROLE", "unknown role")
		return
	}
	if err = h.userRepo.UpdateRole(c.Request.Context(), id, role); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": id, "role": role})
}
