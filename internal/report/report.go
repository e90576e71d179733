// Package report shapes analysis results for JSON output, shell move
// commands and terminal display.
package report

import (
	"time"

	"github.com/fyrsmithlabs/vaultorg/internal/cluster"
	"github.com/fyrsmithlabs/vaultorg/internal/coherence"
	"github.com/fyrsmithlabs/vaultorg/internal/matcher"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// DateFormat is the layout of AnalysisDate.
const DateFormat = "2006-01-02T15:04:05"

// Destination is a candidate folder with its similarity.
type Destination struct {
	Folder     string  `json:"folder"`
	Similarity float64 `json:"similarity"`
}

// FolderEntry is one row of the incoherent folder ranking.
type FolderEntry struct {
	Path      string  `json:"path"`
	Coherence float64 `json:"coherence"`
	Variance  float64 `json:"variance"`
	FileCount int     `json:"file_count"`
}

// FileSuggestion proposes destinations for an outlier file.
type FileSuggestion struct {
	FilePath       string        `json:"file_path"`
	CurrentFolder  string        `json:"current_folder"`
	DeviationScore float64       `json:"deviation_score"`
	ZScore         float64       `json:"z_score"`
	Candidates     []Destination `json:"candidates"`
}

// AnalysisReport is the result of a whole-vault coherence analysis.
type AnalysisReport struct {
	RunID        string           `json:"run_id"`
	AnalysisDate string           `json:"analysis_date"`
	TotalFiles   int              `json:"total_files"`
	TotalFolders int              `json:"total_folders"`
	OutlierCount int              `json:"outlier_count"`
	ZThreshold   float64          `json:"z_threshold"`
	MinFiles     int              `json:"min_files"`
	Folders      []FolderEntry    `json:"incoherent_folders"`
	Suggestions  []FileSuggestion `json:"suggestions"`
}

// ClusterEntry describes one inbox cluster and where it could go.
type ClusterEntry struct {
	ClusterID             int           `json:"cluster_id"`
	FileCount             int           `json:"file_count"`
	Label                 string        `json:"label"`
	Coherence             float64       `json:"coherence"`
	Files                 []string      `json:"files"`
	SuggestedDestinations []Destination `json:"suggested_destinations"`
}

// InboxReport is the result of organizing an inbox folder.
type InboxReport struct {
	RunID             string         `json:"run_id"`
	AnalysisDate      string         `json:"analysis_date"`
	InboxPath         string         `json:"inbox_path"`
	TotalFiles        int            `json:"total_files"`
	ClusterCount      int            `json:"cluster_count"`
	DistanceThreshold float64        `json:"distance_threshold"`
	Stats             cluster.Stats  `json:"stats"`
	Clusters          []ClusterEntry `json:"clusters"`
}

// FormatDate renders t in DateFormat.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// Destinations converts matches, rounding similarity to 4 places.
func Destinations(matches []matcher.Match) []Destination {
	out := make([]Destination, len(matches))
	for i, m := range matches {
		out[i] = Destination{Folder: m.Path, Similarity: vecmath.Round(m.Similarity, 4)}
	}
	return out
}

// Folders converts a coherence ranking, keeping at most limit rows when
// limit > 0.
func Folders(analyses []coherence.FolderAnalysis, limit int) []FolderEntry {
	if limit > 0 && len(analyses) > limit {
		analyses = analyses[:limit]
	}
	out := make([]FolderEntry, len(analyses))
	for i, a := range analyses {
		out[i] = FolderEntry{
			Path:      a.Path,
			Coherence: vecmath.Round(a.Coherence, 4),
			Variance:  vecmath.Round(a.Variance, 4),
			FileCount: a.FileCount,
		}
	}
	return out
}

// FileSuggestions converts outlier suggestions. Deviation keeps 4 places
// and the z-score 2.
func FileSuggestions(suggestions []matcher.FileSuggestion) []FileSuggestion {
	out := make([]FileSuggestion, len(suggestions))
	for i, s := range suggestions {
		out[i] = FileSuggestion{
			FilePath:       s.FilePath,
			CurrentFolder:  s.CurrentFolder,
			DeviationScore: vecmath.Round(s.Deviation, 4),
			ZScore:         vecmath.Round(s.ZScore, 2),
			Candidates:     Destinations(s.Candidates),
		}
	}
	return out
}

// ClusterEntries converts cluster suggestions.
func ClusterEntries(suggestions []matcher.ClusterSuggestion) []ClusterEntry {
	out := make([]ClusterEntry, len(suggestions))
	for i, s := range suggestions {
		out[i] = ClusterEntry{
			ClusterID:             s.Cluster.ID,
			FileCount:             s.Cluster.Size(),
			Label:                 s.Cluster.Label,
			Coherence:             vecmath.Round(s.Cluster.Coherence, 4),
			Files:                 append([]string(nil), s.Cluster.Files...),
			SuggestedDestinations: Destinations(s.Candidates),
		}
	}
	return out
}

// RoundStats rounds the floating point cluster statistics to 4 places.
func RoundStats(s cluster.Stats) cluster.Stats {
	s.AvgSize = vecmath.Round(s.AvgSize, 4)
	s.AvgCoherence = vecmath.Round(s.AvgCoherence, 4)
	return s
}
