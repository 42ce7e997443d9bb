package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler ticks processed
	schedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collection_scheduler_ticks_total",
			Help: "Total number of scheduler ticks processed",
		},
	)

	// Tasks emitted partitioned by channel
	tasksEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_tasks_emitted_total",
			Help: "Total number of collection tasks emitted",
		},
		[]string{"channel"},
	)

	// Executions that transitioned to failed
	executionsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collection_executions_failed_total",
			Help: "Total number of campaign executions marked failed",
		},
	)

	// Completions partitioned by reason (payment_received, steps_exhausted, manual)
	executionsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_executions_completed_total",
			Help: "Total number of campaign executions completed",
		},
		[]string{"reason"},
	)

	// Steps skipped because a gating condition evaluated false
	stepsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collection_steps_skipped_total",
			Help: "Total number of escalation steps skipped on condition failure",
		},
	)

	// Executions requeued by the stall monitor
	stallRequeuesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collection_stall_requeues_total",
			Help: "Total number of stalled executions requeued",
		},
	)

	// Live executions in the table
	activeExecutionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collection_active_executions",
			Help: "Number of campaign executions currently held in memory",
		},
	)
)
