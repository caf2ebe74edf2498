package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Submission controller outcomes: succeeded, dropped, validation_failed,
	// persistence_failed, duplicate.
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_submissions_total",
		Help: "Total number of form submissions grouped by outcome",
	}, []string{"outcome"})
	SubmissionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadform_submission_duration_seconds",
		Help:    "Duration of a submission from guard acquisition to release",
		Buckets: prometheus.DefBuckets,
	})
	SubmissionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leadform_submissions_in_flight",
		Help: "Number of submissions currently holding their form's in-flight guard",
	})

	// Store metrics
	StoreInserts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_store_inserts_total",
		Help: "Total number of lead inserts grouped by store driver and result",
	}, []string{"driver", "result"})
	StoreInsertDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leadform_store_insert_duration_seconds",
		Help:    "Latency of lead inserts",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver"})

	// Notification metrics
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_notifications_total",
		Help: "Total number of confirmation notifications grouped by result",
	}, []string{"result"})
	PersonalizationFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_personalization_fallbacks_total",
		Help: "Total number of confirmations sent with the generic message, grouped by reason",
	}, []string{"reason"})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"provider"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"provider"})

	// Audit metrics
	AuditEventsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_audit_events_written_total",
		Help: "Total number of audit events written grouped by sink",
	}, []string{"sink"})
	AuditEventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_audit_events_failed_total",
		Help: "Total number of audit events a sink failed to write",
	}, []string{"sink"})

	// HTTP edge
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadform_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"limiter"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leadform_active_sessions",
		Help: "Number of browser sessions with live submission state",
	})
)

func init() {
	prometheus.MustRegister(Submissions)
	prometheus.MustRegister(SubmissionDuration)
	prometheus.MustRegister(SubmissionsInFlight)
	prometheus.MustRegister(StoreInserts)
	prometheus.MustRegister(StoreInsertDuration)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(PersonalizationFallbacks)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(AuditEventsWritten)
	prometheus.MustRegister(AuditEventsFailed)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(ActiveSessions)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
