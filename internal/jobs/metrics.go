package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_job_runs_total",
			Help: "Batch job runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)
	jobOrgsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_job_orgs_total",
			Help: "Organisations processed by batch jobs by job and outcome",
		},
		[]string{"job", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(jobRunsCounter, jobOrgsCounter)
}
