// Package metrics exposes Prometheus collectors for vault analysis runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/vaultorg/internal/aggregate"
)

// Namespace prefixes every metric name.
const Namespace = "vaultorg"

// Metrics holds the collectors of one registry.
//
// All methods are safe on a nil *Metrics, which records nothing.
//
// Metrics:
//   - vaultorg_runs_total{command,status} - analysis runs by outcome
//   - vaultorg_stage_duration_seconds{stage} - time spent per pipeline stage
//   - vaultorg_folders_analyzed - folders in the last analyzed tree
//   - vaultorg_files_analyzed - files in the last analyzed tree
//   - vaultorg_outliers - outliers found by the last analysis
//   - vaultorg_clusters - clusters found by the last inbox run
//   - vaultorg_suggestions_total{kind} - suggestions produced
//   - vaultorg_folder_embeddings_total{source} - folder vectors computed or read from cache
//   - vaultorg_folder_cache_writes_total - folder vectors written to the cache
//   - vaultorg_folder_cache_errors_total - failed cache reads and writes
//   - vaultorg_files_indexed_total{result} - indexer outcomes per file
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal         *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	FoldersAnalyzed   prometheus.Gauge
	FilesAnalyzed     prometheus.Gauge
	Outliers          prometheus.Gauge
	Clusters          prometheus.Gauge
	SuggestionsTotal  *prometheus.CounterVec
	FolderEmbeddings  *prometheus.CounterVec
	FolderCacheWrites prometheus.Counter
	FolderCacheErrors prometheus.Counter
	FilesIndexedTotal *prometheus.CounterVec
}

// New registers the collectors on a fresh registry. Go runtime and process
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Total number of analysis runs",
			},
			[]string{"command", "status"}, // status: "ok" or "error"
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		FoldersAnalyzed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "folders_analyzed",
			Help:      "Number of folders in the last analyzed tree",
		}),
		FilesAnalyzed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "files_analyzed",
			Help:      "Number of files in the last analyzed tree",
		}),
		Outliers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "outliers",
			Help:      "Number of outlier files found by the last analysis",
		}),
		Clusters: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "clusters",
			Help:      "Number of clusters found by the last inbox run",
		}),
		SuggestionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "suggestions_total",
				Help:      "Total number of destination suggestions produced",
			},
			[]string{"kind"}, // "file" or "cluster"
		),
		FolderEmbeddings: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "folder_embeddings_total",
				Help:      "Folder embeddings by source",
			},
			[]string{"source"}, // "computed" or "cache"
		),
		FolderCacheWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "folder_cache_writes_total",
			Help:      "Folder embeddings written to the cache",
		}),
		FolderCacheErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "folder_cache_errors_total",
			Help:      "Failed folder cache reads and writes",
		}),
		FilesIndexedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "files_indexed_total",
				Help:      "Indexer outcomes per file",
			},
			[]string{"result"}, // "snippet", "ignored", "known", "short", "skipped"
		),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStage records the time since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordRun counts a finished run of command.
func (m *Metrics) RecordRun(command string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(command, status).Inc()
}

// RecordTree sets the tree size gauges.
func (m *Metrics) RecordTree(folders, files int) {
	if m == nil {
		return
	}
	m.FoldersAnalyzed.Set(float64(folders))
	m.FilesAnalyzed.Set(float64(files))
}

// RecordAggregation adds the counts of one folder embedding pass.
func (m *Metrics) RecordAggregation(s aggregate.Stats) {
	if m == nil {
		return
	}
	m.FolderEmbeddings.WithLabelValues("computed").Add(float64(s.Computed))
	m.FolderEmbeddings.WithLabelValues("cache").Add(float64(s.CacheHits))
	m.FolderCacheWrites.Add(float64(s.CacheWrites))
	m.FolderCacheErrors.Add(float64(s.CacheErrors))
}

// RecordOutliers sets the outlier gauge and counts file suggestions.
func (m *Metrics) RecordOutliers(outliers, suggestions int) {
	if m == nil {
		return
	}
	m.Outliers.Set(float64(outliers))
	m.SuggestionsTotal.WithLabelValues("file").Add(float64(suggestions))
}

// RecordClusters sets the cluster gauge and counts cluster suggestions.
func (m *Metrics) RecordClusters(clusters, suggestions int) {
	if m == nil {
		return
	}
	m.Clusters.Set(float64(clusters))
	m.SuggestionsTotal.WithLabelValues("cluster").Add(float64(suggestions))
}

// RecordIndexed adds n files with the given indexer result.
func (m *Metrics) RecordIndexed(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FilesIndexedTotal.WithLabelValues(result).Add(float64(n))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
