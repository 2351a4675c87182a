/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trigger engine metrics

	CheckerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heimdall_checker_ticks_total",
		Help: "Background checker evaluation passes.",
	})

	CheckerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_checker_errors_total",
		Help: "Background checker errors by stage.",
	}, []string{"stage"})

	AlarmTriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_alarm_triggers_total",
		Help: "Alarm trigger attempts by origin and outcome.",
	}, []string{"origin", "outcome"})

	AlarmDuplicatesSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heimdall_alarm_duplicates_suppressed_total",
		Help: "Due signals ignored because the minute was already fired.",
	})

	SnoozesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heimdall_snoozes_total",
		Help: "Snooze operations accepted.",
	})

	// Playback metrics

	PlaybackStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_playback_starts_total",
		Help: "Audio source starts by kind and outcome.",
	}, []string{"kind", "outcome"})

	PlaybackRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_playback_retries_total",
		Help: "Playback retry attempts by source kind.",
	}, []string{"kind"})

	StreamRecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_stream_recoveries_total",
		Help: "Stream monitor recoveries by action (resume, reload).",
	}, []string{"action"})

	ActiveSourceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heimdall_active_source",
		Help: "1 while an alarm audio source is playing.",
	})

	KeepAliveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heimdall_keepalive_active",
		Help: "1 while the background keep-alive activity is running.",
	})

	// HTTP metrics

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heimdall_api_requests_total",
		Help: "API requests by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "heimdall_api_request_duration_seconds",
		Help:    "API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heimdall_api_active_connections",
		Help: "In-flight API requests.",
	})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
