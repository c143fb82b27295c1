package testutil

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// PromGaugeHasValue reports whether the gauge called name with the given
// label values currently equals value.
func PromGaugeHasValue(t testing.TB, metrics []*dto.MetricFamily, value float64, name string, label ...string) bool {
	t.Helper()
	m := findMetric(t, metrics, name, label...)
	return m != nil && m.GetGauge().GetValue() == value
}

// PromCounterHasValue reports whether the counter called name with the given
// label values currently equals value.
func PromCounterHasValue(t testing.TB, metrics []*dto.MetricFamily, value float64, name string, label ...string) bool {
	t.Helper()
	m := findMetric(t, metrics, name, label...)
	return m != nil && m.GetCounter().GetValue() == value
}

func findMetric(t testing.TB, metrics []*dto.MetricFamily, name string, label ...string) *dto.Metric {
	t.Helper()
	for _, family := range metrics {
		if family.GetName() != name {
			continue
		}
	metricsLoop:
		for _, m := range family.GetMetric() {
			require.Equal(t, len(label), len(m.GetLabel()))
			for i, lv := range label {
				if lv != m.GetLabel()[i].GetValue() {
					continue metricsLoop
				}
			}
			return m
		}
	}
	return nil
}
