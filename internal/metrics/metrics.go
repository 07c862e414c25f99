// Package metrics 注册 Prometheus 指标，通过 /metrics 暴露。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "talon",
		Name:      "scans_total",
		Help:      "Completed trading loop iterations.",
	})

	ScanErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "talon",
		Name:      "scan_errors_total",
		Help:      "Scan iterations aborted by an unexpected error.",
	})

	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talon",
		Name:      "signals_total",
		Help:      "Signals emitted by the strategy, by kind.",
	}, []string{"kind"})

	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talon",
		Name:      "orders_total",
		Help:      "Orders submitted to the exchange, by side and result.",
	}, []string{"side", "result"})

	RiskRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talon",
		Name:      "risk_rejections_total",
		Help:      "Trades rejected by the risk gate, by reason.",
	}, []string{"reason"})

	AccountBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "talon",
		Name:      "account_balance",
		Help:      "Latest observed futures account balance in quote currency.",
	})

	OpenPositionsCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "talon",
		Name:      "open_positions",
		Help:      "Number of currently open positions.",
	})

	DailyTradeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "talon",
		Name:      "daily_trade_count",
		Help:      "Trades placed since the last UTC day rollover.",
	})
)
