package cluster

// Stats summarizes a clustering result.
type Stats struct {
	TotalClusters int     `json:"total_clusters"`
	TotalFiles    int     `json:"total_files"`
	Largest       int     `json:"largest_cluster"`
	Smallest      int     `json:"smallest_cluster"`
	AvgSize       float64 `json:"avg_cluster_size"`
	AvgCoherence  float64 `json:"avg_coherence"`
	Singletons    int     `json:"singletons"`
}

// Summarize computes Stats for clusters. An empty input gives zero Stats.
func Summarize(clusters []FileCluster) Stats {
	if len(clusters) == 0 {
		return Stats{}
	}

	s := Stats{TotalClusters: len(clusters), Smallest: len(clusters[0].Files)}
	var coherence float64
	for _, c := range clusters {
		n := len(c.Files)
		s.TotalFiles += n
		if n > s.Largest {
			s.Largest = n
		}
		if n < s.Smallest {
			s.Smallest = n
		}
		if n == 1 {
			s.Singletons++
		}
		coherence += c.Coherence
	}
	s.AvgSize = float64(s.TotalFiles) / float64(len(clusters))
	s.AvgCoherence = coherence / float64(len(clusters))
	return s
}
