package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vaultorg/internal/aggregate"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New(false)
	b := New(false)

	a.RecordRun("analyze", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RunsTotal.WithLabelValues("analyze", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RunsTotal.WithLabelValues("analyze", "ok")))
}

func TestNew_WithRuntime(t *testing.T) {
	m := New(true)
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "go_") {
			found = true
			break
		}
	}
	assert.True(t, found, "expected go runtime metrics")
}

func TestRecordRun_Status(t *testing.T) {
	m := New(false)
	m.RecordRun("inbox", nil)
	m.RecordRun("inbox", errors.New("boom"))
	m.RecordRun("inbox", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("inbox", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("inbox", "error")))
}

func TestRecordAggregation(t *testing.T) {
	m := New(false)
	m.RecordAggregation(aggregate.Stats{Computed: 4, CacheHits: 2, CacheWrites: 4, CacheErrors: 1})
	m.RecordAggregation(aggregate.Stats{Computed: 1})

	assert.Equal(t, 5.0, testutil.ToFloat64(m.FolderEmbeddings.WithLabelValues("computed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FolderEmbeddings.WithLabelValues("cache")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.FolderCacheWrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FolderCacheErrors))
}

func TestGaugesAndSuggestions(t *testing.T) {
	m := New(false)
	m.RecordTree(12, 90)
	m.RecordOutliers(7, 5)
	m.RecordClusters(3, 2)
	m.RecordIndexed("snippet", 10)
	m.RecordIndexed("ignored", 0)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.FoldersAnalyzed))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.FilesAnalyzed))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Outliers))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Clusters))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.SuggestionsTotal.WithLabelValues("file")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SuggestionsTotal.WithLabelValues("cluster")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.FilesIndexedTotal.WithLabelValues("snippet")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FilesIndexedTotal))
}

func TestObserveStage(t *testing.T) {
	m := New(false)
	m.ObserveStage("aggregate", time.Now().Add(-10*time.Millisecond))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRun("analyze", nil)
		m.RecordTree(1, 1)
		m.RecordAggregation(aggregate.Stats{Computed: 1})
		m.RecordOutliers(1, 1)
		m.RecordClusters(1, 1)
		m.RecordIndexed("snippet", 1)
		m.ObserveStage("x", time.Now())
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New(false)
	m.RecordTree(3, 9)

	path := filepath.Join(t.TempDir(), "vaultorg.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vaultorg_files_analyzed 9")
	assert.Contains(t, string(data), "vaultorg_folders_analyzed 3")
}
