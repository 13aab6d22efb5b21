// Package metrics instruments the analysis pipeline with prometheus
// gauges and counters, published on a dedicated registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for pipeline metrics.
var Registry = prometheus.NewRegistry()

var (
	// ============================================
	// Ingestion / buffer
	// ============================================

	SnapshotsIngested = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsdesk",
			Subsystem: "buffer",
			Name:      "snapshots_total",
			Help:      "Snapshots processed, by validation outcome",
		},
		[]string{"status"}, // valid, stale, incomplete, outside_hours, invalid
	)

	BufferFillPercent = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsdesk",
			Subsystem: "buffer",
			Name:      "fill_percent",
			Help:      "Ring buffer fill percentage",
		},
	)

	BufferReady = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsdesk",
			Subsystem: "buffer",
			Name:      "ready",
			Help:      "1 when the buffer warm-up gate is open",
		},
	)

	// ============================================
	// Analysis engines
	// ============================================

	RegimeClassifications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsdesk",
			Subsystem: "regime",
			Name:      "classifications_total",
			Help:      "Regime classifications, by regime type",
		},
		[]string{"regime"},
	)

	ConfluenceScore = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsdesk",
			Subsystem: "confluence",
			Name:      "score",
			Help:      "Latest aggregate confluence score",
		},
	)

	OptionsConfidence = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsdesk",
			Subsystem: "options",
			Name:      "confidence",
			Help:      "Latest options-intelligence confidence",
		},
	)

	OptionsConflicts = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "optionsdesk",
			Subsystem: "options",
			Name:      "conflicts_total",
			Help:      "Times the options conflict gate forced neutral",
		},
	)

	// ============================================
	// Signals and plans
	// ============================================

	SignalsGenerated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsdesk",
			Subsystem: "signal",
			Name:      "generated_total",
			Help:      "Fused signals, by validity",
		},
		[]string{"valid"}, // "true" / "false"
	)

	PlansBuilt = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsdesk",
			Subsystem: "plan",
			Name:      "built_total",
			Help:      "Plans built, by final status",
		},
		[]string{"status"},
	)

	// ============================================
	// Risk governor
	// ============================================

	RiskTotalPnL = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsdesk",
			Subsystem: "risk",
			Name:      "total_pnl",
			Help:      "Daily total P&L (realized + unrealized)",
		},
	)

	RiskTradesTaken = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsdesk",
			Subsystem: "risk",
			Name:      "trades_taken",
			Help:      "Trades taken today",
		},
	)

	RiskRemainingCapacity = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsdesk",
			Subsystem: "risk",
			Name:      "remaining_capacity",
			Help:      "Remaining daily risk capacity in currency",
		},
	)

	RiskHardShutdown = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsdesk",
			Subsystem: "risk",
			Name:      "hard_shutdown",
			Help:      "1 when the daily hard shutdown is in force",
		},
	)

	RiskChecks = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsdesk",
			Subsystem: "risk",
			Name:      "checks_total",
			Help:      "check-trade-risk outcomes",
		},
		[]string{"outcome"}, // allowed, rejected
	)

	// ============================================
	// Broker fetch activity
	// ============================================

	BrokerFetches = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsdesk",
			Subsystem: "broker",
			Name:      "fetches_total",
			Help:      "Broker snapshot fetches, by outcome",
		},
		[]string{"outcome"}, // ok, error
	)
)
