package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счётчики исходов задач. Исходы failed/skipped считаются отдельно от
// resolved, потому что задача при них всё равно разрешается.
var (
	tasksResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopkg_worker_tasks_resolved_total",
		Help: "Total tasks resolved by this worker",
	})

	tasksFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopkg_worker_tasks_failed_total",
		Help: "Total resolved tasks whose result records a processor failure",
	})

	tasksSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopkg_worker_tasks_skipped_total",
		Help: "Total resolved tasks whose result records a skip",
	})

	tasksRetriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopkg_worker_tasks_retried_total",
		Help: "Total tasks deferred for a scheduled retry",
	})
)
