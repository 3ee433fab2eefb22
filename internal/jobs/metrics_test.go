package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger:fraud:scan").End(nil))
	err := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:fraud:scan").End(err), err)

	require.Equal(t, 1.0, value(t, m.runs.WithLabelValues("ledger:fraud:scan", "success")))
	require.Equal(t, 1.0, value(t, m.runs.WithLabelValues("ledger:fraud:scan", "failure")))
	require.Equal(t, 1.0, value(t, m.failures.WithLabelValues("ledger:fraud:scan")))
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddFraudAlerts("duplicate", "high", 3, 2)
	m.AddReconcileMatches(3, 4)
	m.AddRecurringInvoices("created", 1)
	m.AddIntegrityBreach("unbalanced_journal", 0, 1)
	m.AddReconcileMatches(3, 0)

	require.Equal(t, 2.0, value(t, m.fraudAlerts.WithLabelValues("duplicate", "high", "3")))
	require.Equal(t, 4.0, value(t, m.matches.WithLabelValues("3")))
	require.Equal(t, 1.0, value(t, m.recurring.WithLabelValues("created")))
	require.Equal(t, 1.0, value(t, m.breaches.WithLabelValues("unbalanced_journal", "0")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddFraudAlerts("weekend", "low", 1, 1)
	require.NoError(t, m.Track("x").End(nil))
}
