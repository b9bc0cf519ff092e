package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/shopspring/decimal"
)

// ── Mock exchange HTTP servers ────────────────────────────────────────────────

// Both Binance and MEXC answer /api/v3/ticker/price with:
// {"symbol":"BTCUSDT","price":"87350.00"}
func mockTickerOK(price float64, hits *int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		resp := map[string]string{
			"symbol": r.URL.Query().Get("symbol"),
			"price":  decimal.NewFromFloat(price).StringFixed(2),
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func mockTickerDown() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
}

func priceTestCfg(binanceURL, mexcURL string, cacheTTL time.Duration) *config.Config {
	return &config.Config{
		Price: config.PriceConfig{
			BinanceURL:   binanceURL,
			MexcURL:      mexcURL,
			FetchTimeout: 2 * time.Second,
			CacheTTL:     cacheTTL,
			MaxStaleness: 10 * time.Second,
		},
	}
}

// ── Fetch + fallback ──────────────────────────────────────────────────────────

func TestGetLatest_BinancePrimary(t *testing.T) {
	binance := httptest.NewServer(mockTickerOK(87350.00, nil))
	defer binance.Close()
	mexc := httptest.NewServer(mockTickerOK(99999.99, nil))
	defer mexc.Close()

	ps := service.NewPriceService(priceTestCfg(binance.URL, mexc.URL, time.Second))

	quote, err := ps.GetLatest(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if quote.Exchange != "binance" {
		t.Errorf("exchange = %q, want binance when primary is up", quote.Exchange)
	}
	if !quote.Price.Equal(decimal.NewFromFloat(87350.00)) {
		t.Errorf("price = %s, want 87350", quote.Price)
	}
	if quote.FetchedAt.IsZero() {
		t.Error("FetchedAt must be set")
	}
}

func TestGetLatest_FallsBackToMexc(t *testing.T) {
	binance := httptest.NewServer(mockTickerDown())
	defer binance.Close()
	mexc := httptest.NewServer(mockTickerOK(87351.25, nil))
	defer mexc.Close()

	ps := service.NewPriceService(priceTestCfg(binance.URL, mexc.URL, time.Second))

	quote, err := ps.GetLatest(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLatest with primary down: %v", err)
	}
	if quote.Exchange != "mexc" {
		t.Errorf("exchange = %q, want mexc fallback", quote.Exchange)
	}
	if !quote.Price.Equal(decimal.NewFromFloat(87351.25)) {
		t.Errorf("price = %s, want 87351.25", quote.Price)
	}
}

func TestGetLatest_BothExchangesDown(t *testing.T) {
	binance := httptest.NewServer(mockTickerDown())
	defer binance.Close()
	mexc := httptest.NewServer(mockTickerDown())
	defer mexc.Close()

	ps := service.NewPriceService(priceTestCfg(binance.URL, mexc.URL, time.Second))

	if _, err := ps.GetLatest(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("expected error when both exchanges are down and cache is empty")
	}
}

func TestGetLatest_ServesStaleCacheWhenUpstreamDies(t *testing.T) {
	var up int32 = 1
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&up) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		mockTickerOK(87350.00, nil).ServeHTTP(w, r)
	}))
	defer flaky.Close()
	mexc := httptest.NewServer(mockTickerDown())
	defer mexc.Close()

	// TTL of zero so the second call always re-fetches
	ps := service.NewPriceService(priceTestCfg(flaky.URL, mexc.URL, 0))

	first, err := ps.GetLatest(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("warm-up fetch: %v", err)
	}

	atomic.StoreInt32(&up, 0)

	// Upstream is dead, but the cached quote is well within MaxStaleness.
	second, err := ps.GetLatest(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("expected stale cache to serve, got %v", err)
	}
	if !second.Price.Equal(first.Price) || !second.FetchedAt.Equal(first.FetchedAt) {
		t.Error("expected the cached quote, got a different one")
	}
}

// ── Cache behaviour ───────────────────────────────────────────────────────────

func TestGetLatest_CacheWithinTTL(t *testing.T) {
	var hits int64
	binance := httptest.NewServer(mockTickerOK(87350.00, &hits))
	defer binance.Close()
	mexc := httptest.NewServer(mockTickerDown())
	defer mexc.Close()

	ps := service.NewPriceService(priceTestCfg(binance.URL, mexc.URL, time.Minute))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := ps.GetLatest(ctx, "BTCUSDT"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("upstream hits = %d, want 1 (subsequent calls served from cache)", got)
	}
}

func TestRefresh_BypassesCache(t *testing.T) {
	var hits int64
	binance := httptest.NewServer(mockTickerOK(87350.00, &hits))
	defer binance.Close()
	mexc := httptest.NewServer(mockTickerDown())
	defer mexc.Close()

	ps := service.NewPriceService(priceTestCfg(binance.URL, mexc.URL, time.Minute))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := ps.Refresh(ctx, "BTCUSDT"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 3 {
		t.Errorf("upstream hits = %d, want 3 (Refresh must not read the cache)", got)
	}
}

func TestGetLatest_SymbolNormalization(t *testing.T) {
	var hits int64
	binance := httptest.NewServer(mockTickerOK(87350.00, &hits))
	defer binance.Close()
	mexc := httptest.NewServer(mockTickerDown())
	defer mexc.Close()

	ps := service.NewPriceService(priceTestCfg(binance.URL, mexc.URL, time.Minute))

	ctx := context.Background()
	for _, sym := range []string{"BTCUSDT", "btcusdt", "btc/usdt", "BTC-USDT"} {
		quote, err := ps.GetLatest(ctx, sym)
		if err != nil {
			t.Fatalf("GetLatest(%q): %v", sym, err)
		}
		if quote.Symbol != "BTCUSDT" {
			t.Errorf("GetLatest(%q).Symbol = %q, want BTCUSDT", sym, quote.Symbol)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("upstream hits = %d, want 1 (all spellings share one cache slot)", got)
	}
}

// ── Exchange status ───────────────────────────────────────────────────────────

func TestExchangeStatus(t *testing.T) {
	binance := httptest.NewServer(mockTickerOK(87350.00, nil))
	defer binance.Close()
	mexc := httptest.NewServer(mockTickerDown())
	defer mexc.Close()

	ps := service.NewPriceService(priceTestCfg(binance.URL, mexc.URL, time.Second))

	status := ps.ExchangeStatus()
	if status["binance"] || status["mexc"] {
		t.Error("no fetch yet: both exchanges should report unreachable")
	}

	if _, err := ps.GetLatest(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("GetLatest: %v", err)
	}

	status = ps.ExchangeStatus()
	if !status["binance"] {
		t.Error("binance should report reachable after a successful fetch")
	}
	if status["mexc"] {
		t.Error("mexc was never queried and should report unreachable")
	}
}
