package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_vote_requests_total",
		Help: "Vote requests received, labelled by outcome",
	}, []string{"status"})

	syncJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_sync_jobs_total",
		Help: "Sync jobs processed by the worker",
	})

	syncJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agora_sync_job_duration_seconds",
		Help:    "Time to run one sync job end to end",
		Buckets: prometheus.DefBuckets,
	})

	replicaPushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_replica_pushes_total",
		Help: "View payload pushes per replica, labelled by outcome",
	}, []string{"outcome"})

	triggerEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_trigger_events_total",
		Help: "Trigger events emitted by the evaluator",
	}, []string{"kind"})

	scheduledRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_scheduled_runs_total",
		Help: "Scheduled poll actions executed by the worker, labelled by outcome",
	}, []string{"outcome"})
)

func ObserveVoteRequest(status string) {
	voteRequestsTotal.WithLabelValues(status).Inc()
}

func IncSyncJob() {
	syncJobsTotal.Inc()
}

func ObserveSyncJobDuration(seconds float64) {
	syncJobDuration.Observe(seconds)
}

func ObserveReplicaPush(outcome string) {
	replicaPushesTotal.WithLabelValues(outcome).Inc()
}

func IncTriggerEvent(kind string) {
	triggerEventsTotal.WithLabelValues(kind).Inc()
}

func IncScheduledRun(outcome string) {
	scheduledRunsTotal.WithLabelValues(outcome).Inc()
}
