package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scoringEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "score_bot_scoring_events_total",
		Help: "Попытки начисления очков по источнику и результату (admitted/cooldown).",
	}, []string{"source", "result"})

	manualAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "score_bot_manual_adjustments_total",
		Help: "Ручные изменения очков администраторами.",
	}, []string{"score_type"})
)
