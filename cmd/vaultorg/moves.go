package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vaultorg/internal/config"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
)

var movesVaultRoot string

// movesCmd turns a saved report into mv commands
var movesCmd = &cobra.Command{
	Use:   "moves <report.json>",
	Short: "Print mv commands from a saved analyze or inbox report",
	Long: `Read a JSON report written by analyze -o or inbox -o and print shell mv
commands that move each note (or each inbox cluster) to its best
destination. Nothing is moved; review the commands and run them yourself.

Examples:
  vaultorg analyze -o suggestions.json
  vaultorg moves suggestions.json --vault-root ~/notes > moves.sh`,
	Args: cobra.ExactArgs(1),
	RunE: runMoves,
}

func init() {
	movesCmd.Flags().StringVar(&movesVaultRoot, "vault-root", "", "prefix for paths in mv commands")
}

func runMoves(cmd *cobra.Command, args []string) error {
	lines, err := reportMoves(config.ExpandHome(args[0]), config.ExpandHome(movesVaultRoot))
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no suggestion in the report has a destination")
		return nil
	}
	printLines(cmd.OutOrStdout(), lines)
	return nil
}

// reportMoves detects the report kind by its keys and returns its mv commands.
func reportMoves(path, vaultRoot string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}

	if _, ok := probe["clusters"]; ok {
		rep, err := report.LoadInboxReport(path)
		if err != nil {
			return nil, err
		}
		return report.ClusterMoveCommands(rep.Clusters, vaultRoot), nil
	}
	if _, ok := probe["suggestions"]; ok {
		rep, err := report.LoadAnalysisReport(path)
		if err != nil {
			return nil, err
		}
		return report.MoveCommands(rep.Suggestions, vaultRoot), nil
	}
	return nil, fmt.Errorf("%s is neither an analyze nor an inbox report", path)
}
