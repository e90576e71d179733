package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vaultorg/internal/cluster"
	"github.com/fyrsmithlabs/vaultorg/internal/coherence"
	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/matcher"
)

func sampleSuggestions() []matcher.FileSuggestion {
	return []matcher.FileSuggestion{
		{
			FilePath:      "Work/recipe.md",
			CurrentFolder: "Work",
			Deviation:     0.812345678,
			ZScore:        2.456789,
			Candidates: []matcher.Match{
				{Path: "Cooking", Similarity: 0.912345678},
				{Path: "Home", Similarity: 0.5},
			},
		},
		{
			FilePath:      "Work/misc.md",
			CurrentFolder: "Work",
			Deviation:     0.4,
			ZScore:        2.01,
		},
	}
}

func TestFileSuggestions_Rounding(t *testing.T) {
	got := FileSuggestions(sampleSuggestions())
	require.Len(t, got, 2)

	assert.Equal(t, "Work/recipe.md", got[0].FilePath)
	assert.Equal(t, 0.8123, got[0].DeviationScore)
	assert.Equal(t, 2.46, got[0].ZScore)
	require.Len(t, got[0].Candidates, 2)
	assert.Equal(t, Destination{Folder: "Cooking", Similarity: 0.9123}, got[0].Candidates[0])
	assert.Empty(t, got[1].Candidates)
}

func TestFileSuggestion_JSONKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, FileSuggestions(sampleSuggestions())[0]))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	for _, key := range []string{"file_path", "current_folder", "deviation_score", "z_score", "candidates"} {
		assert.Contains(t, raw, key)
	}
	cands := raw["candidates"].([]any)
	assert.Contains(t, cands[0].(map[string]any), "folder")
	assert.Contains(t, cands[0].(map[string]any), "similarity")
}

func TestFolders_Limit(t *testing.T) {
	analyses := []coherence.FolderAnalysis{
		{Path: "a", Coherence: 0.123456, Variance: 0.0101, FileCount: 3},
		{Path: "b", Coherence: 0.5, Variance: 0.02, FileCount: 4},
		{Path: "c", Coherence: 0.9, Variance: 0.03, FileCount: 5},
	}

	got := Folders(analyses, 2)
	require.Len(t, got, 2)
	assert.Equal(t, FolderEntry{Path: "a", Coherence: 0.1235, Variance: 0.0101, FileCount: 3}, got[0])

	assert.Len(t, Folders(analyses, 0), 3)
}

func TestClusterEntries(t *testing.T) {
	got := ClusterEntries([]matcher.ClusterSuggestion{
		{
			Cluster: cluster.FileCluster{
				ID:        1,
				Files:     []string{"Inbox/a.md", "Inbox/b.md"},
				Coherence: 0.987654,
				Label:     "pasta sauce",
			},
			Candidates: []matcher.Match{{Path: "Cooking", Similarity: 0.77777}},
		},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ClusterID)
	assert.Equal(t, 2, got[0].FileCount)
	assert.Equal(t, 0.9877, got[0].Coherence)
	assert.Equal(t, []Destination{{Folder: "Cooking", Similarity: 0.7778}}, got[0].SuggestedDestinations)
}

func TestRoundStats(t *testing.T) {
	s := RoundStats(cluster.Stats{TotalClusters: 3, AvgSize: 1.666666, AvgCoherence: 0.333333})
	assert.Equal(t, 1.6667, s.AvgSize)
	assert.Equal(t, 0.3333, s.AvgCoherence)
	assert.Equal(t, 3, s.TotalClusters)
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	assert.Equal(t, "2024-03-09T14:05:06", FormatDate(ts))
}

func TestSaveAndLoadAnalysisReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	want := &AnalysisReport{
		RunID:        "run-1",
		AnalysisDate: "2024-03-09T14:05:06",
		TotalFiles:   10,
		TotalFolders: 3,
		OutlierCount: 2,
		ZThreshold:   2,
		MinFiles:     3,
		Folders:      []FolderEntry{{Path: "Work", Coherence: 0.5, Variance: 0.1, FileCount: 5}},
		Suggestions:  FileSuggestions(sampleSuggestions()),
	}
	require.NoError(t, SaveJSON(path, want))

	got, err := LoadAnalysisReport(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should be cleaned up")
}

func TestSaveAndLoadInboxReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.json")
	want := &InboxReport{
		RunID:             "run-2",
		InboxPath:         "Inbox",
		TotalFiles:        2,
		ClusterCount:      1,
		DistanceThreshold: 0.3,
		Stats:             cluster.Stats{TotalClusters: 1, TotalFiles: 2, Largest: 2, Smallest: 2, AvgSize: 2, AvgCoherence: 0.9},
		Clusters: []ClusterEntry{
			{ClusterID: 0, FileCount: 2, Label: "x", Coherence: 0.9, Files: []string{"Inbox/a.md", "Inbox/b.md"}},
		},
	}
	require.NoError(t, SaveJSON(path, want))

	got, err := LoadInboxReport(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadAnalysisReport_Errors(t *testing.T) {
	_, err := LoadAnalysisReport(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = LoadAnalysisReport(bad)
	assert.Error(t, err)
}

func TestWriteJSON_NoHTMLEscape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]string{"p": "R&D/<draft>.md"}))
	assert.Contains(t, buf.String(), "R&D/<draft>.md")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestMoveCommands(t *testing.T) {
	suggestions := FileSuggestions(sampleSuggestions())

	assert.Equal(t, []string{`mv "Work/recipe.md" "Cooking/"`}, MoveCommands(suggestions, ""))
	assert.Equal(t, []string{`mv "/vault/Work/recipe.md" "/vault/Cooking/"`}, MoveCommands(suggestions, "/vault/"))
	assert.Empty(t, MoveCommands(nil, ""))
}

func TestMoveCommands_Quoting(t *testing.T) {
	suggestions := []FileSuggestion{{
		FilePath:   `Notes/"quoted" $HOME.md`,
		Candidates: []Destination{{Folder: "Dest `x`"}},
	}}
	assert.Equal(t,
		[]string{"mv \"Notes/\\\"quoted\\\" \\$HOME.md\" \"Dest \\`x\\`/\""},
		MoveCommands(suggestions, ""))
}

func TestClusterMoveCommands(t *testing.T) {
	clusters := []ClusterEntry{
		{
			ClusterID:             0,
			FileCount:             2,
			Label:                 "pasta\nsauce",
			Files:                 []string{"Inbox/a.md", "Inbox/b.md"},
			SuggestedDestinations: []Destination{{Folder: "Cooking", Similarity: 0.8}},
		},
		{ClusterID: 1, FileCount: 1, Files: []string{"Inbox/c.md"}},
	}

	got := ClusterMoveCommands(clusters, "")
	assert.Equal(t, []string{
		"# Cluster 0: pasta sauce (2 files)",
		`mv "Inbox/a.md" "Cooking/"`,
		`mv "Inbox/b.md" "Cooking/"`,
	}, got)
}

func TestTextRenderer_Plain(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf, true)

	r.Title("Vault analysis")
	r.Folders([]FolderEntry{{Path: "Work", Coherence: 0.5, Variance: 0.25, FileCount: 4}})
	r.Suggestions(FileSuggestions(sampleSuggestions()))

	out := buf.String()
	assert.Contains(t, out, "Vault analysis")
	assert.Contains(t, out, "Coherence: 0.500 | Variance: 0.250 | Files: 4")
	assert.Contains(t, out, "Deviation 0.812 | Z-Score 2.46")
	assert.Contains(t, out, "1. Cooking (0.912)")
	assert.Contains(t, out, "no destination above the similarity floor")
	assert.NotContains(t, out, "\x1b[")
}

func TestTextRenderer_Clusters(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf, true)
	r.Clusters([]ClusterEntry{
		{
			ClusterID: 0, FileCount: 5, Label: "travel plans", Coherence: 0.9,
			Files:                 []string{"Inbox/a.md", "Inbox/b.md", "Inbox/c.md", "Inbox/d.md", "Inbox/e.md"},
			SuggestedDestinations: []Destination{{Folder: "Travel", Similarity: 0.81}},
		},
		{ClusterID: 1, FileCount: 1, Files: []string{"Inbox/z.md"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Found 2 clusters")
	assert.Contains(t, out, `Cluster #0: "travel plans"`)
	assert.Contains(t, out, "... +2 more")
	assert.NotContains(t, out, "d.md")
	assert.Contains(t, out, "1. Travel (0.810)")
	assert.Contains(t, out, `Cluster #1: "Cluster 1"`)
	assert.Contains(t, out, "lowering --min-similarity")
}

func TestTextRenderer_Tree(t *testing.T) {
	tree, err := foldertree.Build(map[string][]float32{
		"a.md":        {1, 0},
		"Work/b.md":   {0, 1},
		"Work/X/c.md": {1, 1},
	}, foldertree.BuildOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	NewTextRenderer(&buf, true).Tree(tree, 1)
	out := buf.String()
	assert.Contains(t, out, "/ (1 files, 1 subfolders)")
	assert.Contains(t, out, "  Work (1 files, 1 subfolders)")
	assert.NotContains(t, out, "X (")

	buf.Reset()
	NewTextRenderer(&buf, true).Tree(tree, 0)
	assert.Contains(t, buf.String(), "    X (1 files, 0 subfolders)")
}
