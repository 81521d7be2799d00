package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BetsPlaced counts placement attempts by outcome: placed, duplicate
	// or the error kind that rejected them.
	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betting_bets_placed_total",
		Help: "Bet placement attempts by outcome",
	}, []string{"outcome"})

	StakePlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betting_stake_placed_total",
		Help: "Stake debited at placement, by funding bucket",
	}, []string{"bucket"})

	SelectionsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betting_selections_settled_total",
		Help: "Selections moved out of pending, by result",
	}, []string{"result"})

	BetsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betting_bets_resolved_total",
		Help: "Bets moved out of pending, by final status",
	}, []string{"status"})

	SettlementErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betting_settlement_errors_total",
		Help: "Selections that failed to settle and were left pending",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "betting_settlement_sweep_seconds",
		Help:    "Duration of one settlement sweep",
		Buckets: prometheus.DefBuckets,
	})
)
