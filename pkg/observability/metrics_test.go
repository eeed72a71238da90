package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordCompilation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	assert.Same(t, registry, m.Registry())

	m.RecordCompilation(RunMetrics{
		Status:              "succeeded",
		Duration:            20 * time.Millisecond,
		PermissionsAdded:    2,
		ServicesAdded:       1,
		DependenciesAdded:   3,
		SourcesPlaced:       4,
		Warnings:            1,
		FilesChanged:        5,
		FunctionsRegistered: 6,
		Plugins:             2,
	})
	m.RecordCompilation(RunMetrics{Status: "failed"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompilationsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompilationsTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PermissionsAddedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServicesMergedTotal.WithLabelValues("added")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ServicesMergedTotal.WithLabelValues("updated")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DependenciesAddedTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SourcesPlacedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlacementWarnings))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.FilesChangedTotal))
	// gauges reflect the last run
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FunctionsRegistered))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PluginsCompiled))

	count, err := testutil.GatherAndCount(registry, "mobile_air_compilation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordCompilation(RunMetrics{Status: "succeeded"}) })
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics(nil)
	m.RecordCompilation(RunMetrics{Status: "succeeded", PermissionsAdded: 1})

	path := filepath.Join(t.TempDir(), "mobile_air.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `mobile_air_compilations_total{status="succeeded"} 1`)
	assert.Contains(t, string(data), "mobile_air_permissions_added_total 1")

	assert.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom")))
}
