package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *Registry, gate, outcome string) float64 {
	t.Helper()
	c, err := r.Decisions.GetMetricWithLabelValues(gate, outcome)
	require.NoError(t, err)
	m := &io_prometheus_client.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestRecordDecisionLabels(t *testing.T) {
	r := NewRegistry()

	r.RecordDecision("pdt", false)
	r.RecordDecision("pdt", false)
	r.RecordDecision("", true)

	assert.Equal(t, 2.0, counterValue(t, r, "pdt", "denied"))
	assert.Equal(t, 1.0, counterValue(t, r, "none", "allowed"))
}

func TestSetRiskSnapshot(t *testing.T) {
	r := NewRegistry()
	r.SetRiskSnapshot(95_000, 5.0, true)

	m := &io_prometheus_client.Metric{}
	require.NoError(t, r.SafeMode.Write(m))
	assert.Equal(t, 1.0, m.GetGauge().GetValue())

	r.SetRiskSnapshot(95_000, 5.0, false)
	require.NoError(t, r.SafeMode.Write(m))
	assert.Equal(t, 0.0, m.GetGauge().GetValue())
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordDecision("calendar", false)
	r.RecordFill("buy")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(body, "equityrun_decisions_total"))
	assert.True(t, strings.Contains(body, `gate="calendar"`))
	assert.True(t, strings.Contains(body, "equityrun_fills_total"))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.RecordDecision("pdt", false)

	assert.Equal(t, 1.0, counterValue(t, a, "pdt", "denied"))
	assert.Equal(t, 0.0, counterValue(t, b, "pdt", "denied"))
}
