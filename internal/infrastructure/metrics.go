package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signals_generated_total",
		Help: "Total number of entry/exit signals emitted per instrument",
	}, []string{"symbol", "direction"})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_submitted_total",
		Help: "Total number of orders confirmed by the broker client",
	}, []string{"symbol", "side"})

	OrdersDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_duplicate_skipped_total",
		Help: "Orders skipped because their execution key was already recorded",
	}, []string{"symbol"})

	BacktestRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtest_runs_total",
		Help: "Total number of backtest simulations executed",
	})

	TradesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_saved_total",
		Help: "Matched trades persisted to the database",
	}, []string{"symbol"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})
)
