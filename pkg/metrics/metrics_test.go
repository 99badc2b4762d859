package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveAdmission(nil)
	m.ObserveAdmission(errors.New("x"))
	m.ObserveAdvance(nil)
	m.ObserveWithdrawal(nil)
	m.ObserveKeeperTick("idle")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roundsAdvanced.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.withdrawals.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.keeperTicks.WithLabelValues("idle")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAdmission(nil)
		m.ObserveScan(time.Millisecond)
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveScan(10 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "accrual_scheduler_scan_duration_seconds")
}
