// Package metrics defines Prometheus metrics for the lead capture service,
// covering submissions, store inserts, notifications, mail delivery, audit sinks
// and rate limiting.
package metrics
