package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nexbit/tradecore/internal/api/middleware"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/shopspring/decimal"
)

// EscrowHandler serves the P2P marketplace: listings and escrowed orders.
type EscrowHandler struct {
	escrowSvc *service.EscrowService
}

// NewEscrowHandler creates an EscrowHandler.
func NewEscrowHandler(escrowSvc *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowSvc: escrowSvc}
}

// ──────────────────────────────────────────────────────────────────────────────
// Listings
// ──────────────────────────────────────────────────────────────────────────────

// CreateListing godoc
// POST /api/p2p/listings [JWT]
// Body: {"side":"sell","asset":"USDT","price":"1.01","min_amount":"50","max_amount":"2000"}
func (h *EscrowHandler) CreateListing(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		Side      string `json:"side"       binding:"required"`
		Asset     string `json:"asset"      binding:"required"`
		Price     string `json:"price"      binding:"required"`
		MinAmount string `json:"min_amount" binding:"required"`
		MaxAmount string `json:"max_amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE", "price must be a decimal string")
		return
	}
	minAmount, err := decimal.NewFromString(body.MinAmount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "min_amount must be a decimal string")
		return
	}
	maxAmount, err := decimal.NewFromString(body.MaxAmount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "max_amount must be a decimal string")
		return
	}

	listing, err := h.escrowSvc.CreateListing(c.Request.Context(), service.CreateListingRequest{
		OwnerUserID: userID,
		Side:        domain.ListingSide(body.Side),
		Asset:       body.Asset,
		Price:       price,
		MinAmount:   minAmount,
		MaxAmount:   maxAmount,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidOrderState):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_SIDE", "side must be buy or sell")
		case errors.Is(err, domain.ErrInvalidAmount):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", domain.ErrInvalidAmount.Error())
		case errors.Is(err, domain.ErrAmountOutOfRange):
			respondError(c, http.StatusBadRequest, "ERR_AMOUNT_RANGE", domain.ErrAmountOutOfRange.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not create listing")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, listing)
}

// ListListings godoc
// GET /api/p2p/listings?side=sell&page=1&limit=20
func (h *EscrowHandler) ListListings(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	listings, err := h.escrowSvc.ListActiveListings(c.Request.Context(), c.Query("side"), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch listings")
		return
	}
	respondList(c, listings, len(listings), page, limit)
}

// DeactivateListing godoc
// DELETE /api/p2p/listings/:id [JWT]
func (h *EscrowHandler) DeactivateListing(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing id")
		return
	}

	if err := h.escrowSvc.DeactivateListing(c.Request.Context(), listingID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrListingNotFound):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", domain.ErrListingNotFound.Error())
		case errors.Is(err, domain.ErrForbidden):
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "this listing does not belong to you")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not deactivate listing")
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deactivated": true})
}

// ──────────────────────────────────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────────────────────────────────

// CreateOrder godoc
// POST /api/p2p/orders [JWT]
// Body: {"listing_id":"uuid","amount":"250.00"}
func (h *EscrowHandler) CreateOrder(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		ListingID string `json:"listing_id" binding:"required"`
		Amount    string `json:"amount"     binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	listingID, err := uuid.Parse(body.ListingID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing_id format")
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	order, err := h.escrowSvc.CreateOrder(c.Request.Context(), userID, listingID, amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrListingNotFound):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", domain.ErrListingNotFound.Error())
		case errors.Is(err, domain.ErrListingInactive):
			respondError(c, http.StatusConflict, "ERR_LISTING_INACTIVE", domain.ErrListingInactive.Error())
		case errors.Is(err, domain.ErrAmountOutOfRange):
			respondError(c, http.StatusBadRequest, "ERR_AMOUNT_RANGE", domain.ErrAmountOutOfRange.Error())
		case errors.Is(err, domain.ErrSelfTransfer):
			respondError(c, http.StatusBadRequest, "ERR_SELF_ORDER", "cannot take your own listing")
		case errors.Is(err, domain.ErrInsufficientBalance):
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", domain.ErrInsufficientBalance.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not create order")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, order)
}

// GetMyOrders godoc
// GET /api/p2p/orders/my?page=1&limit=20 [JWT]
func (h *EscrowHandler) GetMyOrders(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	orders, err := h.escrowSvc.GetMyOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch orders")
		return
	}
	respondList(c, orders, len(orders), page, limit)
}

// GetOrder godoc
// GET /api/p2p/orders/:id [JWT]
func (h *EscrowHandler) GetOrder(c *gin.Context) {
	userID := middleware.GetUserID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ORDER_ID", "invalid order id")
		return
	}

	order, err := h.escrowSvc.GetOrder(c.Request.Context(), orderID, userID)
	if err != nil {
		h.respondOrderError(c, err, "could not fetch order")
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// MarkPaid godoc
// POST /api/p2p/orders/:id/paid [JWT]
func (h *EscrowHandler) MarkPaid(c *gin.Context) {
	h.transition(c, h.escrowSvc.MarkPaid, "could not mark order paid")
}

// Release godoc
// POST /api/p2p/orders/:id/release [JWT]
func (h *EscrowHandler) Release(c *gin.Context) {
	h.transition(c, h.escrowSvc.Release, "could not release order")
}

// Cancel godoc
// POST /api/p2p/orders/:id/cancel [JWT]
func (h *EscrowHandler) Cancel(c *gin.Context) {
	h.transition(c, h.escrowSvc.Cancel, "could not cancel order")
}

// transition runs one of the order state-change operations; they share the
// same signature and error surface.
func (h *EscrowHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, orderID, callerID uuid.UUID) (*domain.EscrowOrder, error),
	failMsg string,
) {
	userID := middleware.GetUserID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ORDER_ID", "invalid order id")
		return
	}

	order, err := op(c.Request.Context(), orderID, userID)
	if err != nil {
		h.respondOrderError(c, err, failMsg)
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// respondOrderError maps the shared order error surface to HTTP statuses.
func (h *EscrowHandler) respondOrderError(c *gin.Context, err error, failMsg string) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", domain.ErrOrderNotFound.Error())
	case errors.Is(err, domain.ErrNotOrderBuyer):
		respondError(c, http.StatusForbidden, "ERR_NOT_BUYER", domain.ErrNotOrderBuyer.Error())
	case errors.Is(err, domain.ErrNotOrderSeller):
		respondError(c, http.StatusForbidden, "ERR_NOT_SELLER", domain.ErrNotOrderSeller.Error())
	case errors.Is(err, domain.ErrNotParticipant):
		respondError(c, http.StatusForbidden, "ERR_NOT_PARTICIPANT", domain.ErrNotParticipant.Error())
	case errors.Is(err, domain.ErrInvalidOrderState):
		respondError(c, http.StatusConflict, "ERR_INVALID_STATE", domain.ErrInvalidOrderState.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", domain.ErrInsufficientBalance.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", failMsg)
	}
}
