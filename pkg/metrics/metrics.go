package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BackupsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castkeep_backups_started_total",
		Help: "Total backup requests started",
	})
	BackupsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castkeep_backups_completed_total",
		Help: "Total backups that produced an artifact",
	})
	BackupsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castkeep_backups_failed_total",
		Help: "Total backups that failed at the fetch stage",
	})
	BackupDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "castkeep_backup_duration_seconds",
		Help:    "Backup duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	FacetOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castkeep_facet_outcomes_total",
		Help: "Preservation facet outcomes by facet and status",
	}, []string{"facet", "status"})
	MediaCoalesced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castkeep_media_coalesced_total",
		Help: "Media downloads answered by an in-flight duplicate",
	})
)

func init() {
	prometheus.MustRegister(BackupsStarted, BackupsCompleted, BackupsFailed, BackupDuration, FacetOutcomes, MediaCoalesced)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
// An empty addr disables it.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveBackupDuration records one backup duration.
func ObserveBackupDuration(start time.Time) {
	BackupDuration.Observe(time.Since(start).Seconds())
}

// IncFacet increments the facet outcome counter.
func IncFacet(facet, status string) { FacetOutcomes.WithLabelValues(facet, status).Inc() }
