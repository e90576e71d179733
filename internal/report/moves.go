package report

import (
	"fmt"
	"strings"
)

// MoveCommands returns one mv command per suggestion, using its best
// candidate. Suggestions without candidates are skipped. vaultRoot, when
// set, prefixes both source and destination.
func MoveCommands(suggestions []FileSuggestion, vaultRoot string) []string {
	var cmds []string
	for _, s := range suggestions {
		if len(s.Candidates) == 0 {
			continue
		}
		cmds = append(cmds, moveCommand(vaultRoot, s.FilePath, s.Candidates[0].Folder))
	}
	return cmds
}

// ClusterMoveCommands returns, per cluster with a destination, a comment
// header followed by an mv command for every member file.
func ClusterMoveCommands(clusters []ClusterEntry, vaultRoot string) []string {
	var cmds []string
	for _, c := range clusters {
		if len(c.SuggestedDestinations) == 0 {
			continue
		}
		best := c.SuggestedDestinations[0].Folder
		cmds = append(cmds, fmt.Sprintf("# Cluster %d: %s (%d files)", c.ClusterID, oneLine(c.Label), c.FileCount))
		for _, f := range c.Files {
			cmds = append(cmds, moveCommand(vaultRoot, f, best))
		}
	}
	return cmds
}

func moveCommand(vaultRoot, file, folder string) string {
	src, dst := file, folder+"/"
	if root := strings.TrimRight(vaultRoot, "/"); root != "" {
		src = root + "/" + file
		dst = root + "/" + folder + "/"
	}
	return fmt.Sprintf("mv %s %s", shellQuote(src), shellQuote(dst))
}

// shellQuote wraps s in double quotes, escaping the characters the shell
// still interprets inside them.
func shellQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(s) + `"`
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
