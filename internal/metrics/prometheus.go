package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operational counters for the live/paper loops. Registered once on the
// default registry; the cmd/marketcascade run path exposes them over /metrics.
var (
	SignalsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketcascade",
		Name:      "signals_processed_total",
		Help:      "Signals produced by the engine, labelled by signal class.",
	}, []string{"symbol", "signal"})

	SignalsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketcascade",
		Name:      "signals_rejected_total",
		Help:      "Entry signals rejected by the filter cascade.",
	}, []string{"symbol"})

	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketcascade",
		Name:      "trades_closed_total",
		Help:      "Closed trades, labelled by exit reason.",
	}, []string{"symbol", "reason"})

	ForceExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketcascade",
		Name:      "force_exits_total",
		Help:      "Force exits issued, labelled by reason.",
	}, []string{"symbol", "reason"})

	OrderTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketcascade",
		Name:      "order_timeouts_total",
		Help:      "Broker orders cancelled after timing out, labelled by order side.",
	}, []string{"symbol", "side"})

	AccountEquity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "marketcascade",
		Name:      "account_equity_usdt",
		Help:      "Current account equity per scenario.",
	}, []string{"scenario"})

	OpenPositions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "marketcascade",
		Name:      "open_positions",
		Help:      "Number of open positions per scenario.",
	}, []string{"scenario"})
)
