package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapcamp_messages_total",
			Help: "Per-recipient send outcomes by status and wave",
		},
		[]string{"status", "wave"}, // sent|failed , 1|2|3
	)

	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapcamp_dispatches_total",
			Help: "Dispatch execution outcomes",
		},
		[]string{"outcome"}, // executed|failed|skipped
	)

	SchedulerTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zapcamp_scheduler_ticks_total",
			Help: "Scheduler loop ticks",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		MessagesTotal,
		DispatchesTotal,
		SchedulerTicksTotal,
	)
}
