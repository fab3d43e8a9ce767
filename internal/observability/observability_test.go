package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "info", "json")

	logger.Info("run complete", "rows", 3)
	logger.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run complete", entry["msg"])
	assert.EqualValues(t, 3, entry["rows"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "debug", "TEXT")

	logger.Debug("coercion failed", "column", "value")

	assert.Contains(t, buf.String(), "msg=\"coercion failed\"")
	assert.Contains(t, buf.String(), "column=value")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RunsTotal.WithLabelValues("passed").Inc()
	a.IssuesTotal.WithLabelValues("error", "quality").Add(2)

	assert.Equal(t, map[string]float64{
		"water_quality_etl_runs_total":   1,
		"water_quality_etl_issues_total": 2,
	}, gatherCounters(t, a))
	assert.Empty(t, gatherCounters(t, b))
}

// gatherCounters registers m's counters on a private registry and sums
// each family.
func gatherCounters(t *testing.T, m *Metrics) map[string]float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.RunsTotal, m.IssuesTotal, m.RowsLoaded)

	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if v := metric.GetCounter().GetValue(); v > 0 {
				out[f.GetName()] += v
			}
		}
	}
	return out
}
