// Package metrics defines the Prometheus collectors exported on the
// back-office /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SettlementsTotal counts settled positions by result ("won"/"lost").
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "settlement",
		Name:      "positions_total",
		Help:      "Settled positions by result.",
	}, []string{"result"})

	// SettlementDeferred counts sweep passes that skipped a due position
	// because no fresh price was available.
	SettlementDeferred = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "settlement",
		Name:      "deferred_total",
		Help:      "Due positions deferred for lack of a fresh price.",
	})

	// SettlementErrors counts positions whose settlement transaction failed.
	SettlementErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "settlement",
		Name:      "errors_total",
		Help:      "Settlement attempts that failed and will be retried.",
	})

	// WebhooksTotal counts payment webhook deliveries by outcome
	// ("credited", "replay", "recorded", "unknown_invoice", "bad_signature").
	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "payments",
		Name:      "webhooks_total",
		Help:      "Payment webhook deliveries by outcome.",
	}, []string{"outcome"})

	// TransfersTotal counts internal transfer confirmations by outcome
	// ("completed", "invalid_code", "expired_code", "insufficient").
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "transfer",
		Name:      "confirms_total",
		Help:      "Transfer confirmation attempts by outcome.",
	}, []string{"outcome"})

	// PriceFetchErrors counts upstream price feed failures by exchange.
	PriceFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "price",
		Name:      "fetch_errors_total",
		Help:      "Price feed fetch failures by exchange.",
	}, []string{"exchange"})
)
