package jobmetrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the series in family whose labels match, as "k=v" pairs.
func sample(t *testing.T, reg *prometheus.Registry, family string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != family {
			continue
		}
		for _, m := range f.GetMetric() {
			var got []string
			for _, l := range m.GetLabel() {
				got = append(got, l.GetName()+"="+l.GetValue())
			}
			if strings.Join(got, ",") != strings.Join(labels, ",") {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("series %s%v not found", family, labels)
	return 0
}

func TestTrackerRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("ledger_generate").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger_generate").End(boom), boom)

	require.Equal(t, 1.0, sample(t, reg, "chargeledger_jobs_total", "job=ledger_generate", "status=success"))
	require.Equal(t, 1.0, sample(t, reg, "chargeledger_jobs_total", "job=ledger_generate", "status=failure"))
	require.Equal(t, 1.0, sample(t, reg, "chargeledger_jobs_failures_total", "job=ledger_generate"))
}

func TestObserveGeneration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveGeneration("", OutcomeUnbalanced, 4, 12.5)
	m.ObserveGeneration("CONVERSION", OutcomeStored, 2, 0)

	require.Equal(t, 1.0, sample(t, reg, "chargeledger_generations_total", "charge_type=unknown", "outcome=unbalanced"))
	require.Equal(t, 12.5, sample(t, reg, "chargeledger_last_residual", "charge_type=unknown"))
	require.Equal(t, 1.0, sample(t, reg, "chargeledger_generations_total", "charge_type=CONVERSION", "outcome=stored"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveGeneration("COMMON", OutcomeStored, 1, 0)
	require.NoError(t, m.Track("noop").End(nil))
}
