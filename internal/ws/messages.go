// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypePriceTick       MsgType = "price_tick"
	MsgTypePositionSettled MsgType = "position_settled"
	MsgTypeExchangeStatus  MsgType = "exchange_status"
	MsgTypeError           MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// PriceTickMessage — sent every second to all clients.
// ──────────────────────────────────────────────────────────────────────────────

// PriceTickMessage carries the latest spot quote for a symbol.
type PriceTickMessage struct {
	Type      MsgType         `json:"type"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Exchange  string          `json:"exchange"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// PositionSettledMessage — sent only to the position owner.
// ──────────────────────────────────────────────────────────────────────────────

// PositionSettledMessage tells the owner how their position resolved.
type PositionSettledMessage struct {
	Type       MsgType               `json:"type"`
	PositionID uuid.UUID             `json:"position_id"`
	Symbol     string                `json:"symbol"`
	Side       domain.Side           `json:"side"`
	Account    domain.AccountType    `json:"account"`
	Stake      decimal.Decimal       `json:"stake"`
	EntryPrice decimal.Decimal       `json:"entry_price"`
	ExitPrice  decimal.Decimal       `json:"exit_price"`
	Result     domain.PositionStatus `json:"result"`
	PnL        decimal.Decimal       `json:"pnl"`
	Timestamp  time.Time             `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ExchangeStatusMessage — broadcast when upstream reachability changes.
// ──────────────────────────────────────────────────────────────────────────────

// ExchangeStatusMessage maps exchange name to reachability.
type ExchangeStatusMessage struct {
	Type      MsgType         `json:"type"`
	Exchanges map[string]bool `json:"exchanges"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
