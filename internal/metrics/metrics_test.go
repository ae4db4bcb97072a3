package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	RefreshRuns.Inc()
	RefreshErrors.Inc()
	SuggestionsProduced.Set(3)
	DegradedTimezones.Inc()
	IncBusyFetchError("freebusy")
	IncCommandRun("suggest")
	IncCommandError("suggest")
	ObserveRefreshDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"closer_refresh_runs_total",
		"closer_refresh_errors_total",
		"closer_refresh_duration_seconds",
		"closer_suggestions_produced",
		"closer_degraded_timezone_total",
		"closer_busy_fetch_errors_total",
		"closer_commands_total",
		"closer_command_errors_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
