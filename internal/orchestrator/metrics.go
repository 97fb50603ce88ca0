package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopkg_orchestrator_jobs_completed_total",
		Help: "Total jobs driven to COMPLETE",
	})

	jobsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopkg_orchestrator_jobs_expired_total",
		Help: "Total jobs dropped because they did not start before expires_at",
	})

	tasksDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopkg_orchestrator_tasks_dispatched_total",
		Help: "Total tasks created and published to tasks.ready",
	})
)
