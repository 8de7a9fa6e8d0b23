package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/l3agi/l3server/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
// GET /internal/metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeHeader(w, "l3server_auth_attempts_total", "counter", "Authentication attempts by method and outcome.")
	for _, a := range snap.AuthAttempts {
		writeMetric(w, "l3server_auth_attempts_total{method=%q,outcome=%q} %d\n", a.Method, a.Outcome, a.Count)
	}

	writeHeader(w, "l3server_auth_duration_seconds", "summary", "Time spent resolving credentials.")
	writeMetric(w, "l3server_auth_duration_seconds_count %d\n", snap.AuthDurationCount)
	writeMetric(w, "l3server_auth_duration_seconds_sum %.6f\n", float64(snap.AuthDurationTotalNs)/1e9)

	writeHeader(w, "l3server_apikey_cache_hits_total", "counter", "API key identity cache hits.")
	writeMetric(w, "l3server_apikey_cache_hits_total %d\n", snap.APIKeyCacheHits)
	writeHeader(w, "l3server_apikey_cache_misses_total", "counter", "API key identity cache misses.")
	writeMetric(w, "l3server_apikey_cache_misses_total %d\n", snap.APIKeyCacheMisses)

	writeHeader(w, "l3server_tokens_issued_total", "counter", "Access tokens issued.")
	writeMetric(w, "l3server_tokens_issued_total %d\n", snap.TokensIssued)

	writeHeader(w, "l3server_audit_events_total", "counter", "Audit events written to the stream by outcome.")
	writeMetric(w, "l3server_audit_events_total{outcome=\"success\"} %d\n", snap.AuditPublished)
	writeMetric(w, "l3server_audit_events_total{outcome=\"dropped\"} %d\n", snap.AuditDropped)
}

func writeHeader(w io.Writer, name, kind, help string) {
	_, _ = fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func writeMetric(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
