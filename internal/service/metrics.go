package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_evaluations_total",
			Help: "Total number of promotion evaluations by outcome",
		},
		[]string{"outcome"},
	)

	redemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_redemptions_total",
			Help: "Total number of redemption attempts by result",
		},
		[]string{"result"},
	)
)

const (
	outcomeEligible  = "eligible"
	resultRedeemed   = "redeemed"
	resultExhausted  = "exhausted"
)

func recordEvaluation(result string) {
	evaluationsTotal.WithLabelValues(result).Inc()
}

func recordRedemption(result string) {
	redemptionsTotal.WithLabelValues(result).Inc()
}
