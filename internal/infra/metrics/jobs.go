package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsCreatedTotal, jobsFinishedTotal, jobsEvictedTotal) }

var jobsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "grid_jobs_created_total",
		Help: "Total number of jobs created, labeled by mode.",
	},
	[]string{"mode"}, // 'live', 'demo'
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "grid_jobs_finished_total",
		Help: "Total number of jobs reaching a terminal status.",
	},
	[]string{"status", "mode"}, // 'complete'|'failed' x 'live'|'demo'
)

var jobsEvictedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "grid_jobs_evicted_total",
		Help: "Total number of jobs removed by the registry sweep.",
	},
)

func IncJobCreated(mode string) {
	jobsCreatedTotal.WithLabelValues(norm(mode)).Inc()
}

func IncJobFinished(status, mode string) {
	jobsFinishedTotal.WithLabelValues(norm(status), norm(mode)).Inc()
}

func AddJobsEvicted(n int) {
	jobsEvictedTotal.Add(float64(n))
}
