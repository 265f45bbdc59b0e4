package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MatchRoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "match_rounds_total",
			Help:      "Total number of match-and-settle rounds by outcome.",
		},
		[]string{"market", "outcome"}, // outcome: settled/no_fills/no_orders/failed
	)

	FillsSettledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "fills_settled_total",
			Help:      "Total number of fills committed on the ledger.",
		},
		[]string{"market"},
	)

	OrdersSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "orders_skipped_total",
			Help:      "Ledger order records skipped during bulk read.",
		},
		[]string{"reason"},
	)

	CleanupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "cleanup_total",
			Help:      "Post-settlement order closes by result.",
		},
		[]string{"result"}, // result: closed/failed/skipped
	)

	MpcRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "mpc_key_fetch_retries_total",
			Help:      "Retries spent fetching the MPC cluster public key.",
		},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		MatchRoundsTotal,
		FillsSettledTotal,
		OrdersSkippedTotal,
		CleanupTotal,
		MpcRetriesTotal,
	)
}
