package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the compiler's Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	CompilationsTotal   *prometheus.CounterVec
	CompilationDuration prometheus.Histogram

	PermissionsAddedTotal  prometheus.Counter
	ServicesMergedTotal    *prometheus.CounterVec
	DependenciesAddedTotal prometheus.Counter
	SourcesPlacedTotal     prometheus.Counter
	PlacementWarnings      prometheus.Counter
	FilesChangedTotal      prometheus.Counter

	FunctionsRegistered prometheus.Gauge
	PluginsCompiled     prometheus.Gauge
}

// RunMetrics is what one compilation contributes to the metrics
type RunMetrics struct {
	Status              string
	Duration            time.Duration
	PermissionsAdded    int
	ServicesAdded       int
	ServicesUpdated     int
	DependenciesAdded   int
	SourcesPlaced       int
	Warnings            int
	FilesChanged        int
	FunctionsRegistered int
	Plugins             int
}

// NewMetrics creates and registers the compiler metrics on registry. A nil
// registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		CompilationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mobile_air_compilations_total",
				Help: "Total number of compilation runs",
			},
			[]string{"status"},
		),
		CompilationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mobile_air_compilation_duration_seconds",
				Help:    "Compilation run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		PermissionsAddedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobile_air_permissions_added_total",
			Help: "Permissions added to the Android manifest",
		}),
		ServicesMergedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mobile_air_services_merged_total",
				Help: "Services merged into the Android manifest",
			},
			[]string{"action"},
		),
		DependenciesAddedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobile_air_dependencies_added_total",
			Help: "Dependency declarations added to the build script",
		}),
		SourcesPlacedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobile_air_sources_placed_total",
			Help: "Plugin source files placed into the host source tree",
		}),
		PlacementWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobile_air_placement_warnings_total",
			Help: "Plugin source files skipped for lack of a namespace",
		}),
		FilesChangedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobile_air_files_changed_total",
			Help: "Project files whose bytes changed on write",
		}),
		FunctionsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mobile_air_functions_registered",
			Help: "Bridge functions in the last generated registration file",
		}),
		PluginsCompiled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mobile_air_plugins_compiled",
			Help: "Plugins processed by the last compilation",
		}),
	}

	registry.MustRegister(
		m.CompilationsTotal,
		m.CompilationDuration,
		m.PermissionsAddedTotal,
		m.ServicesMergedTotal,
		m.DependenciesAddedTotal,
		m.SourcesPlacedTotal,
		m.PlacementWarnings,
		m.FilesChangedTotal,
		m.FunctionsRegistered,
		m.PluginsCompiled,
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCompilation records one compilation run. Safe on a nil receiver.
func (m *Metrics) RecordCompilation(run RunMetrics) {
	if m == nil {
		return
	}

	m.CompilationsTotal.WithLabelValues(run.Status).Inc()
	m.CompilationDuration.Observe(run.Duration.Seconds())
	m.PermissionsAddedTotal.Add(float64(run.PermissionsAdded))
	m.ServicesMergedTotal.WithLabelValues("added").Add(float64(run.ServicesAdded))
	m.ServicesMergedTotal.WithLabelValues("updated").Add(float64(run.ServicesUpdated))
	m.DependenciesAddedTotal.Add(float64(run.DependenciesAdded))
	m.SourcesPlacedTotal.Add(float64(run.SourcesPlaced))
	m.PlacementWarnings.Add(float64(run.Warnings))
	m.FilesChangedTotal.Add(float64(run.FilesChanged))
	m.FunctionsRegistered.Set(float64(run.FunctionsRegistered))
	m.PluginsCompiled.Set(float64(run.Plugins))
}

// WriteTextfile writes the metrics in the Prometheus text format, for the
// node_exporter textfile collector. Safe on a nil receiver.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
