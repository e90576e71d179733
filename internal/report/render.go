package report

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
)

// Terminal styles.
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// maxClusterFiles is how many member files a cluster box lists.
const maxClusterFiles = 3

// TextRenderer prints reports for humans.
type TextRenderer struct {
	w     io.Writer
	plain bool
}

// NewTextRenderer returns a renderer writing to w. With plain set no
// styling or borders are emitted.
func NewTextRenderer(w io.Writer, plain bool) *TextRenderer {
	return &TextRenderer{w: w, plain: plain}
}

func (r *TextRenderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

func (r *TextRenderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

// Title prints a section banner.
func (r *TextRenderer) Title(title string) {
	r.printf("\n%s\n\n", r.style(titleStyle, title))
}

// Folders prints the incoherent folder ranking.
func (r *TextRenderer) Folders(folders []FolderEntry) {
	r.printf("%s\n", r.style(headingStyle, fmt.Sprintf("Least coherent folders (%d)", len(folders))))
	if len(folders) == 0 {
		r.printf("  %s\n", r.style(dimStyle, "no folders with enough files"))
		return
	}
	for i, f := range folders {
		r.printf("%3d. %s\n", i+1, r.style(pathStyle, displayFolder(f.Path)))
		r.printf("     %s\n", r.style(dimStyle,
			fmt.Sprintf("Coherence: %.3f | Variance: %.3f | Files: %d", f.Coherence, f.Variance, f.FileCount)))
	}
}

// Suggestions prints outliers with their candidate destinations.
func (r *TextRenderer) Suggestions(suggestions []FileSuggestion) {
	r.printf("%s\n", r.style(headingStyle, fmt.Sprintf("Misplaced files (%d)", len(suggestions))))
	if len(suggestions) == 0 {
		r.printf("  %s\n", r.style(goodStyle, "no outliers found"))
		return
	}
	for _, s := range suggestions {
		r.printf("\n%s\n", r.style(pathStyle, s.FilePath))
		r.printf("  %s %s\n", r.style(labelStyle, "in"), displayFolder(s.CurrentFolder))
		r.printf("  %s\n", r.style(dimStyle, fmt.Sprintf("Deviation %.3f | Z-Score %.2f", s.DeviationScore, s.ZScore)))
		if len(s.Candidates) == 0 {
			r.printf("  %s\n", r.style(warnStyle, "no destination above the similarity floor"))
			continue
		}
		for i, c := range s.Candidates {
			r.printf("  %d. %s %s\n", i+1, c.Folder, r.style(dimStyle, fmt.Sprintf("(%.3f)", c.Similarity)))
		}
	}
}

// Clusters prints one box per inbox cluster.
func (r *TextRenderer) Clusters(clusters []ClusterEntry) {
	r.printf("%s\n", r.style(headingStyle, fmt.Sprintf("Found %d clusters", len(clusters))))
	for _, c := range clusters {
		var b strings.Builder
		label := c.Label
		if label == "" {
			label = fmt.Sprintf("Cluster %d", c.ClusterID)
		}
		fmt.Fprintf(&b, "Cluster #%d: %q\n", c.ClusterID, label)
		fmt.Fprintf(&b, "Files: %d | Coherence: %.3f\n", c.FileCount, c.Coherence)

		shown := c.Files
		if len(shown) > maxClusterFiles {
			shown = shown[:maxClusterFiles]
		}
		for _, f := range shown {
			fmt.Fprintf(&b, "  - %s\n", path.Base(f))
		}
		if extra := len(c.Files) - len(shown); extra > 0 {
			fmt.Fprintf(&b, "  ... +%d more\n", extra)
		}

		if len(c.SuggestedDestinations) == 0 {
			b.WriteString("No destination found; try lowering --min-similarity")
		} else {
			b.WriteString("Destinations:")
			for i, d := range c.SuggestedDestinations {
				fmt.Fprintf(&b, "\n  %d. %s (%.3f)", i+1, d.Folder, d.Similarity)
			}
		}

		if r.plain {
			r.printf("\n%s\n", b.String())
		} else {
			r.printf("%s\n", boxStyle.Render(b.String()))
		}
	}
}

// Tree prints the folder hierarchy down to maxDepth levels below the root.
// A maxDepth of zero or less prints everything. Folders with a computed
// embedding are marked.
func (r *TextRenderer) Tree(tree *foldertree.Tree, maxDepth int) {
	tree.Walk(func(id foldertree.NodeID, depth int) bool {
		n := tree.Node(id)
		name := path.Base(n.Path)
		if n.IsRoot() {
			name = "/"
		}
		line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", depth), name,
			r.style(dimStyle, fmt.Sprintf("(%d files, %d subfolders)", len(n.Files), len(n.Children))))
		if n.Embedding != nil {
			line += " " + r.style(goodStyle, "[✓]")
		}
		r.printf("%s\n", line)
		return maxDepth <= 0 || depth < maxDepth
	})
}

func displayFolder(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
