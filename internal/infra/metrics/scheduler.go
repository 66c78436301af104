package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		scheduledJobRunsTotal,
		taskRestartsTotal,
		delayedTasksPending,
		delayedTasksFinishedTotal,
	)
}

var (
	scheduledJobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Runs of recurring jobs, labeled by job and result.",
		},
		[]string{"job", "result"},
	)

	taskRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervised_task_restarts_total",
			Help: "Restarts of supervised background tasks after abnormal termination.",
		},
		[]string{"task"},
	)

	delayedTasksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "delayed_tasks_pending",
			Help: "One-shot delayed tasks waiting for their deadline.",
		},
	)

	delayedTasksFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delayed_tasks_finished_total",
			Help: "One-shot delayed tasks by kind and outcome.",
		},
		[]string{"kind", "outcome"}, // 'ok', 'error', 'cancelled'
	)
)

func IncJobRun(job string, err error) {
	scheduledJobRunsTotal.WithLabelValues(norm(job), resultLabel(err)).Inc()
}

func IncTaskRestart(task string) {
	taskRestartsTotal.WithLabelValues(norm(task)).Inc()
}

func SetDelayedTasksPending(n int) {
	delayedTasksPending.Set(float64(n))
}

func IncDelayedTaskFinished(kind, outcome string) {
	delayedTasksFinishedTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}
