// Package coherence scores how well the direct files of a folder agree with
// the folder's embedding and flags the files that stray furthest from it.
//
// Scores use direct files only, while the folder embedding itself averages
// the whole subtree. A parent folder is therefore judged on the notes it
// holds directly, measured against a direction shaped by its subfolders.
package coherence

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// stdEpsilon treats rounding noise in equal deviations as zero spread.
const stdEpsilon = 1e-12

var (
	// ErrFolderNotAggregated is returned for folders whose embedding has
	// not been computed.
	ErrFolderNotAggregated = errors.New("folder embedding not computed")

	// ErrNoDirectFiles is returned when coherence is requested for a folder
	// that holds no files directly.
	ErrNoDirectFiles = errors.New("folder has no direct files")
)

// FolderAnalysis is the coherence summary of one folder.
type FolderAnalysis struct {
	Path      string
	Coherence float64
	Variance  float64
	FileCount int
}

// FileOutlier is a file whose deviation from its folder is unusually high
// relative to its siblings.
type FileOutlier struct {
	FilePath   string
	FolderPath string
	Deviation  float64
	ZScore     float64
}

// FileDeviation returns 1 - cosine(file, folder). A zero vector on either
// side counts as similarity 0.
func FileDeviation(file foldertree.FileEntry, folderEmbedding []float32) (float64, error) {
	sim, err := vecmath.Similarity(file.Embedding, folderEmbedding)
	if err != nil {
		return 0, fmt.Errorf("file %q: %w", file.Path, err)
	}
	return 1 - sim, nil
}

// similarities returns the cosine of each direct file to the folder
// embedding, in file order.
func similarities(node *foldertree.FolderNode) ([]float64, error) {
	if node.Embedding == nil {
		return nil, fmt.Errorf("%w: %q", ErrFolderNotAggregated, node.Path)
	}
	sims := make([]float64, len(node.Files))
	for i, f := range node.Files {
		s, err := vecmath.Similarity(f.Embedding, node.Embedding)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", f.Path, err)
		}
		sims[i] = s
	}
	return sims, nil
}

// FolderCoherence returns the mean similarity of the folder's direct files
// to the folder embedding.
func FolderCoherence(tree *foldertree.Tree, id foldertree.NodeID) (float64, error) {
	a, err := Analyze(tree, id)
	if err != nil {
		return 0, err
	}
	return a.Coherence, nil
}

// FolderVariance returns the population standard deviation of the direct
// files' similarities to the folder embedding. Fewer than two files give 0.
func FolderVariance(tree *foldertree.Tree, id foldertree.NodeID) (float64, error) {
	a, err := Analyze(tree, id)
	if err != nil {
		return 0, err
	}
	return a.Variance, nil
}

// Analyze computes coherence and variance for one folder in a single pass.
func Analyze(tree *foldertree.Tree, id foldertree.NodeID) (FolderAnalysis, error) {
	node := tree.Node(id)
	sims, err := similarities(node)
	if err != nil {
		return FolderAnalysis{}, err
	}
	if len(sims) == 0 {
		return FolderAnalysis{}, fmt.Errorf("%w: %q", ErrNoDirectFiles, node.Path)
	}

	mean, std := vecmath.MeanStd(sims)
	if len(sims) < 2 {
		std = 0
	}
	return FolderAnalysis{
		Path:      node.Path,
		Coherence: mean,
		Variance:  std,
		FileCount: len(sims),
	}, nil
}

// RankIncoherentFolders returns every non-root folder with at least
// max(2, minFiles) direct files, least coherent first. Ties go to the folder
// with more files, then to the lexically smaller path.
func RankIncoherentFolders(tree *foldertree.Tree, minFiles int) ([]FolderAnalysis, error) {
	if minFiles < 2 {
		minFiles = 2
	}

	var out []FolderAnalysis
	for _, id := range tree.Folders() {
		if len(tree.Node(id).Files) < minFiles {
			continue
		}
		a, err := Analyze(tree, id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Coherence != out[j].Coherence {
			return out[i].Coherence < out[j].Coherence
		}
		if out[i].FileCount != out[j].FileCount {
			return out[i].FileCount > out[j].FileCount
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// IdentifyOutlierFiles flags the direct files of a folder whose deviation
// z-score exceeds zThreshold. Folders with fewer than two files, or whose
// files all deviate equally, have no outliers. Results are sorted by
// z-score, highest first.
func IdentifyOutlierFiles(tree *foldertree.Tree, id foldertree.NodeID, zThreshold float64) ([]FileOutlier, error) {
	if err := ValidateZThreshold(zThreshold); err != nil {
		return nil, err
	}
	out, err := folderOutliers(tree.Node(id), zThreshold)
	if err != nil {
		return nil, err
	}
	sortOutliers(out)
	return out, nil
}

// IdentifyAllOutliers runs IdentifyOutlierFiles over every non-root folder
// with at least minFiles direct files and merges the results, highest
// z-score first.
func IdentifyAllOutliers(tree *foldertree.Tree, zThreshold float64, minFiles int) ([]FileOutlier, error) {
	if err := ValidateZThreshold(zThreshold); err != nil {
		return nil, err
	}

	var all []FileOutlier
	for _, id := range tree.Folders() {
		node := tree.Node(id)
		if len(node.Files) < minFiles {
			continue
		}
		out, err := folderOutliers(node, zThreshold)
		if err != nil {
			return nil, err
		}
		all = append(all, out...)
	}
	sortOutliers(all)
	return all, nil
}

func folderOutliers(node *foldertree.FolderNode, zThreshold float64) ([]FileOutlier, error) {
	sims, err := similarities(node)
	if err != nil {
		return nil, err
	}
	if len(sims) < 2 {
		return nil, nil
	}

	devs := make([]float64, len(sims))
	for i, s := range sims {
		devs[i] = 1 - s
	}
	mean, std := vecmath.MeanStd(devs)
	if std < stdEpsilon {
		return nil, nil
	}

	var out []FileOutlier
	for i, d := range devs {
		z := (d - mean) / std
		if z > zThreshold {
			out = append(out, FileOutlier{
				FilePath:   node.Files[i].Path,
				FolderPath: node.Path,
				Deviation:  d,
				ZScore:     z,
			})
		}
	}
	return out, nil
}

func sortOutliers(out []FileOutlier) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ZScore != out[j].ZScore {
			return out[i].ZScore > out[j].ZScore
		}
		return out[i].FilePath < out[j].FilePath
	})
}

// ValidateZThreshold rejects NaN and infinite z-score thresholds.
func ValidateZThreshold(z float64) error {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return vecmath.InvalidParameter("z_threshold", z, "must be finite")
	}
	return nil
}
