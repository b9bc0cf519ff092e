package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Position / trade errors
var (
	// ErrPositionNotFound is returned when no position matches the given criteria.
	ErrPositionNotFound = errors.New("position not found")

	// ErrInvalidStake is returned when the stake is zero, negative, or not a
	// finite amount.
	ErrInvalidStake = errors.New("stake must be greater than zero")

	// ErrInvalidDuration is returned when the requested expiry duration is not
	// one of the allowed values.
	ErrInvalidDuration = errors.New("duration is not allowed")

	// ErrInvalidSide is returned when the side is neither BUY nor SELL.
	ErrInvalidSide = errors.New("invalid position side: must be BUY or SELL")

	// ErrAlreadySettled is returned when a settlement is attempted on a position
	// that is no longer open.
	ErrAlreadySettled = errors.New("position is already settled")

	// ErrPriceUnavailable is returned when no sufficiently fresh price exists for
	// the requested symbol.
	ErrPriceUnavailable = errors.New("price is unavailable")
)

// User / wallet errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned on registration when the email already exists.
	ErrEmailTaken = errors.New("email address is already registered")

	// ErrUsernameTaken is returned on registration when the username already exists.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserInactive is returned when a suspended/banned user attempts an action.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrWalletNotFound is returned when no wallet exists for the requested user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientBalance is returned when the selected account balance is too
	// low to cover a debit. The wallet is left untouched.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrInvalidAmount is returned when an amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrBelowMinWithdraw is returned when the requested withdrawal amount is
	// below the configured minimum.
	ErrBelowMinWithdraw = errors.New("withdrawal amount is below the minimum")

	// ErrWithdrawLimitExceeded is returned when a withdrawal would breach the
	// user's daily or per-transaction limit.
	ErrWithdrawLimitExceeded = errors.New("withdrawal limit exceeded")
)

// P2P escrow errors
var (
	// ErrListingNotFound is returned when no listing matches the given criteria.
	ErrListingNotFound = errors.New("listing not found")

	// ErrListingInactive is returned when an order is opened against a
	// deactivated listing.
	ErrListingInactive = errors.New("listing is not active")

	// ErrAmountOutOfRange is returned when the order amount falls outside the
	// listing's min/max bounds.
	ErrAmountOutOfRange = errors.New("amount is outside the listing limits")

	// ErrOrderNotFound is returned when no escrow order matches the given criteria.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidOrderState is returned when a transition is attempted from a
	// status that does not allow it.
	ErrInvalidOrderState = errors.New("order is not in a valid state for this action")

	// ErrNotOrderBuyer is returned when someone other than the buyer attempts a
	// buyer-only transition.
	ErrNotOrderBuyer = errors.New("only the buyer may perform this action")

	// ErrNotOrderSeller is returned when someone other than the seller attempts a
	// seller-only transition.
	ErrNotOrderSeller = errors.New("only the seller may perform this action")

	// ErrNotParticipant is returned when the caller is neither buyer nor seller.
	ErrNotParticipant = errors.New("caller is not a participant in this order")
)

// Transfer / one-time-code errors
var (
	// ErrTransferNotFound is returned when no transfer intent matches the given
	// criteria.
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrSelfTransfer is returned when sender and recipient are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to your own account")

	// ErrInvalidCode is returned when the submitted confirmation code does not
	// match the stored hash. The code remains usable.
	ErrInvalidCode = errors.New("confirmation code is incorrect")

	// ErrCodeExpired is returned when the confirmation code has passed its TTL.
	// The code is deleted and a new one must be requested.
	ErrCodeExpired = errors.New("confirmation code has expired")
)

// Deposit / webhook errors
var (
	// ErrIntentNotFound is returned when no deposit intent matches the invoice id.
	ErrIntentNotFound = errors.New("deposit intent not found")

	// ErrAlreadyProcessed is returned when a webhook replay targets an intent
	// that was already credited. Callers surface this as success.
	ErrAlreadyProcessed = errors.New("payment already processed")

	// ErrBadSignature is returned when the webhook HMAC signature does not match.
	ErrBadSignature = errors.New("webhook signature mismatch")

	// ErrRequestNotFound is returned when no deposit/withdrawal request matches
	// the given criteria.
	ErrRequestNotFound = errors.New("request not found")

	// ErrRequestNotPending is returned when a review decision targets a request
	// that was already reviewed.
	ErrRequestNotPending = errors.New("request is not pending review")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenExpired is returned when a JWT or refresh token has passed its TTL.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or its signature
	// does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrPositionNotFound,
	ErrUserNotFound,
	ErrWalletNotFound,
	ErrListingNotFound,
	ErrOrderNotFound,
	ErrTransferNotFound,
	ErrIntentNotFound,
	ErrRequestNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values directly
// when you need to translate domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict (e.g.
// duplicate registration, double-settlement, or an out-of-order transition).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrEmailTaken,
		ErrUsernameTaken,
		ErrAlreadySettled,
		ErrAlreadyProcessed,
		ErrInvalidOrderState,
		ErrRequestNotPending,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrBadSignature,
		ErrNotOrderBuyer,
		ErrNotOrderSeller,
		ErrNotParticipant,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
