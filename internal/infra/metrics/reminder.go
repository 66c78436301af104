package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		pollsDispatchedTotal,
		pollsClosedTotal,
		pollAnswersTotal,
		followUpsSentTotal,
	)
}

var (
	pollsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polls_dispatched_total",
			Help: "Daily polls sent, labeled by result.",
		},
		[]string{"result"}, // 'ok', 'error'
	)

	pollsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polls_closed_total",
			Help: "Polls closed by the auto-close timer, labeled by result.",
		},
		[]string{"result"},
	)

	pollAnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_answers_total",
			Help: "Processed poll answers, labeled by resulting feedback tier.",
		},
		[]string{"tier"}, // 'plain', 'week', 'month', 'reset'
	)

	followUpsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "follow_ups_sent_total",
			Help: "Delayed follow-up confirmations, labeled by result.",
		},
		[]string{"result"},
	)
)

func IncPollDispatched(err error) {
	pollsDispatchedTotal.WithLabelValues(resultLabel(err)).Inc()
}

func IncPollClosed(err error) {
	pollsClosedTotal.WithLabelValues(resultLabel(err)).Inc()
}

func IncPollAnswer(tier string) {
	pollAnswersTotal.WithLabelValues(norm(tier)).Inc()
}

func IncFollowUp(err error) {
	followUpsSentTotal.WithLabelValues(resultLabel(err)).Inc()
}
