package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	exchangeBinance = "binance"
	exchangeMexc    = "mexc"
)

// Quote is a fetched spot price with its fetch timestamp. Settlement uses
// FetchedAt to refuse quotes that predate a position's expiry.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Exchange  string          `json:"exchange"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// PriceService
// ──────────────────────────────────────────────────────────────────────────────

// PriceService fetches spot prices from Binance with MEXC as fallback (both
// expose the same /api/v3 ticker shape) and caches per-symbol quotes for a
// short TTL.
type PriceService struct {
	client *resty.Client
	cfg    *config.PriceConfig

	// per-symbol quote cache
	mu    sync.RWMutex
	cache map[string]Quote

	// per-exchange last-success timestamp (for the back-office health view)
	statusMu    sync.RWMutex
	lastSuccess map[string]time.Time
}

// NewPriceService constructs a PriceService from the given config.
func NewPriceService(cfg *config.Config) *PriceService {
	client := resty.New().
		SetTimeout(cfg.Price.FetchTimeout).
		SetHeader("User-Agent", "nexbit-tradecore/1.0")

	return &PriceService{
		client: client,
		cfg:    &cfg.Price,
		cache:  make(map[string]Quote),
		lastSuccess: map[string]time.Time{
			exchangeBinance: {},
			exchangeMexc:    {},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Public API
// ──────────────────────────────────────────────────────────────────────────────

// GetLatest returns a fresh quote for the symbol (e.g. "BTCUSDT"). If the
// cached quote is still within CacheTTL it is returned immediately; otherwise
// Binance is queried first and MEXC on failure. When both fail, a cached quote
// no older than MaxStaleness is still acceptable; beyond that the caller gets
// ErrPriceUnavailable and must defer.
func (ps *PriceService) GetLatest(ctx context.Context, symbol string) (Quote, error) {
	symbol = normalizeSymbol(symbol)

	ps.mu.RLock()
	cached, ok := ps.cache[symbol]
	ps.mu.RUnlock()
	if ok && time.Since(cached.FetchedAt) < ps.cfg.CacheTTL {
		return cached, nil
	}

	quote, err := ps.fetch(ctx, symbol)
	if err != nil {
		if ok && time.Since(cached.FetchedAt) < ps.cfg.MaxStaleness {
			return cached, nil
		}
		return Quote{}, fmt.Errorf("price_service.GetLatest %s: %w: %v", symbol, domain.ErrPriceUnavailable, err)
	}

	ps.mu.Lock()
	ps.cache[symbol] = quote
	ps.mu.Unlock()
	return quote, nil
}

// Refresh forces a fetch for a symbol, bypassing the cache read. Used by the
// scheduler's price loop so WS ticks always carry a new quote.
func (ps *PriceService) Refresh(ctx context.Context, symbol string) (Quote, error) {
	symbol = normalizeSymbol(symbol)
	quote, err := ps.fetch(ctx, symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("price_service.Refresh %s: %w: %v", symbol, domain.ErrPriceUnavailable, err)
	}
	ps.mu.Lock()
	ps.cache[symbol] = quote
	ps.mu.Unlock()
	return quote, nil
}

// GetKlines proxies candlestick data for charting clients. The upstream
// response is passed through untouched (both exchanges share the Binance
// kline array shape).
func (ps *PriceService) GetKlines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	symbol = normalizeSymbol(symbol)
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	for _, ex := range []struct{ name, base string }{
		{exchangeBinance, ps.cfg.BinanceURL},
		{exchangeMexc, ps.cfg.MexcURL},
	} {
		resp, err := ps.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":   symbol,
				"interval": interval,
				"limit":    fmt.Sprintf("%d", limit),
			}).
			Get(ex.base + "/api/v3/klines")
		if err != nil || resp.StatusCode() != 200 {
			metrics.PriceFetchErrors.WithLabelValues(ex.name).Inc()
			continue
		}
		ps.markSuccess(ex.name)
		return json.RawMessage(resp.Body()), nil
	}
	return nil, fmt.Errorf("price_service.GetKlines %s: %w", symbol, domain.ErrPriceUnavailable)
}

// ExchangeStatus returns a map of exchange name → whether it was reachable in
// the last 5 seconds. Used by the back-office health dashboard.
func (ps *PriceService) ExchangeStatus() map[string]bool {
	threshold := 5 * time.Second
	ps.statusMu.RLock()
	defer ps.statusMu.RUnlock()

	status := make(map[string]bool, len(ps.lastSuccess))
	for name, t := range ps.lastSuccess {
		status[name] = !t.IsZero() && time.Since(t) < threshold
	}
	return status
}

// ──────────────────────────────────────────────────────────────────────────────
// Exchange fetchers
// ──────────────────────────────────────────────────────────────────────────────

// fetch tries Binance then MEXC. Both expose:
//
//	GET /api/v3/ticker/price?symbol=BTCUSDT
//	{"symbol":"BTCUSDT","price":"87350.00"}
func (ps *PriceService) fetch(ctx context.Context, symbol string) (Quote, error) {
	var lastErr error
	for _, ex := range []struct{ name, base string }{
		{exchangeBinance, ps.cfg.BinanceURL},
		{exchangeMexc, ps.cfg.MexcURL},
	} {
		price, err := ps.fetchTicker(ctx, ex.base, symbol)
		if err != nil {
			metrics.PriceFetchErrors.WithLabelValues(ex.name).Inc()
			lastErr = fmt.Errorf("%s: %w", ex.name, err)
			continue
		}
		ps.markSuccess(ex.name)
		return Quote{
			Symbol:    symbol,
			Price:     price,
			Exchange:  ex.name,
			FetchedAt: time.Now().UTC(),
		}, nil
	}
	return Quote{}, lastErr
}

func (ps *PriceService) fetchTicker(ctx context.Context, baseURL, symbol string) (decimal.Decimal, error) {
	var body struct {
		Price string `json:"price"`
	}
	resp, err := ps.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&body).
		ForceContentType("application/json").
		Get(baseURL + "/api/v3/ticker/price")
	if err != nil {
		return decimal.Zero, fmt.Errorf("http get: %w", err)
	}
	if resp.StatusCode() != 200 {
		return decimal.Zero, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if body.Price == "" {
		return decimal.Zero, fmt.Errorf("empty price field")
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal: %w", err)
	}
	return price, nil
}

func (ps *PriceService) markSuccess(exchange string) {
	ps.statusMu.Lock()
	ps.lastSuccess[exchange] = time.Now()
	ps.statusMu.Unlock()
}

// normalizeSymbol upper-cases and strips separators so "btc/usdt" and
// "BTCUSDT" hit the same cache slot.
func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	if s == "" {
		s = "BTCUSDT"
	}
	return s
}
