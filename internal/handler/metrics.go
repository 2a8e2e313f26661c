package handler

import (
	"fmt"
	"net/http"

	"github.com/authgate/authgate/internal/metrics"
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
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "authgate_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "authgate_registrations_rejected_total %d\n", snap.RegistrationsRejected)

	writeMetric(w, "authgate_logins_total{status=\"success\"} %d\n", snap.LoginSuccesses)
	writeMetric(w, "authgate_logins_total{status=\"failure\"} %d\n", snap.LoginFailures)
	writeMetric(w, "authgate_login_duration_seconds_count %d\n", snap.LoginDurationCount)
	writeMetric(w, "authgate_login_duration_seconds_sum %.6f\n", float64(snap.LoginDurationTotalNs)/1e9)

	writeMetric(w, "authgate_tokens_issued_total{class=\"access\"} %d\n", snap.AccessTokensIssued)
	writeMetric(w, "authgate_tokens_issued_total{class=\"refresh\"} %d\n", snap.RefreshTokensIssued)
	writeMetric(w, "authgate_tokens_refreshed_total %d\n", snap.TokensRefreshed)

	writeMetric(w, "authgate_identities_resolved_total{status=\"success\"} %d\n", snap.IdentitiesResolved)
	writeMetric(w, "authgate_identities_resolved_total{status=\"rejected\"} %d\n", snap.IdentitiesRejected)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
