package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ContributionsRecorded counts ledger writes by chain tag
	ContributionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipx_contributions_recorded_total",
			Help: "Total number of contributions recorded",
		},
		[]string{"chain"},
	)

	// RecordDuration tracks end-to-end record processing time
	RecordDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tipx_record_duration_seconds",
			Help:    "Contribution record processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LoyaltyPayouts counts loyalty events by distribution outcome
	LoyaltyPayouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipx_loyalty_payouts_total",
			Help: "Total number of loyalty payout events",
		},
		[]string{"status"},
	)

	// PayoutAmount tracks cashback amounts per loyalty event
	PayoutAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tipx_payout_amount",
			Help:    "Patron cashback amount per loyalty event",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 100},
		},
	)

	// TipsTotal counts orchestrated tips by route kind and outcome
	TipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipx_tips_total",
			Help: "Total number of orchestrated tips",
		},
		[]string{"route", "status"},
	)

	// TipStepDuration tracks time spent in each pipeline step
	TipStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tipx_tip_step_duration_seconds",
			Help:    "Tip pipeline step duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"step"},
	)

	// MissingContributions counts settled vault tips absent from the ledger
	MissingContributions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tipx_reconciler_missing_contributions_total",
			Help: "Vault contribution events with no matching ledger row",
		},
	)

	// TransactionsSent counts settlement-chain transactions by operation and status
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipx_transactions_sent_total",
			Help: "Total number of transactions sent",
		},
		[]string{"operation", "status"},
	)
)
