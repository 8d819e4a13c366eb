// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/health"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or prune the processed-items ledger",
}

// --- inspect subcommand ---

var stateInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show ledger bucket sizes, last runs, and disabled sources",
	RunE:  runStateInspect,
}

// inspectReport is the JSON shape of state inspect.
type inspectReport struct {
	Path      string            `json:"path"`
	Version   int               `json:"version"`
	UpdatedAt string            `json:"updated_at_utc"`
	Buckets   map[string]int    `json:"buckets"`
	LastRuns  map[string]string `json:"last_successful_run_utc,omitempty"`
	Sources   int               `json:"tracked_sources"`
	Disabled  []string          `json:"disabled_sources,omitempty"`
}

func runStateInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	l := state.Load(cfg.State.Path, now, log)

	rep := inspectReport{
		Path:      cfg.State.Path,
		Version:   l.Version,
		UpdatedAt: l.UpdatedAt,
		Buckets:   l.Counts(),
		LastRuns:  l.LastRuns,
		Sources:   len(l.SourceHealth),
	}
	for _, s := range health.Summarize(l, now) {
		if s.Disabled {
			rep.Disabled = append(rep.Disabled, s.Name)
		}
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(os.Stdout, "Ledger:   %s (version %d, updated %s)\n", rep.Path, rep.Version, rep.UpdatedAt)
	fmt.Fprintf(os.Stdout, "Sources:  %d tracked, %d disabled\n\n", rep.Sources, len(rep.Disabled))

	names := make([]string, 0, len(rep.Buckets))
	for k := range rep.Buckets {
		names = append(names, k)
	}
	sort.Strings(names)
	fmt.Fprintf(os.Stdout, "%-40s  %s\n", "Bucket", "Items")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 50))
	for _, k := range names {
		fmt.Fprintf(os.Stdout, "%-40s  %d\n", k, rep.Buckets[k])
	}

	if len(rep.LastRuns) > 0 {
		runs := make([]string, 0, len(rep.LastRuns))
		for k := range rep.LastRuns {
			runs = append(runs, k)
		}
		sort.Strings(runs)
		fmt.Fprintln(os.Stdout, "\nLast successful runs:")
		for _, k := range runs {
			fmt.Fprintf(os.Stdout, "  %-30s  %s\n", strings.ReplaceAll(k, "||", " "), rep.LastRuns[k])
		}
	}
	return nil
}

// --- prune subcommand ---

var statePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop expired ledger entries and cap every bucket",
	Long: `Prune removes records older than state.retention_days and then caps each
report/source bucket at state.max_entries_per_bucket, oldest first. Use
--dry-run to see the counts without saving.`,
	RunE: runStatePrune,
}

func runStatePrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	now := time.Now().UTC()
	l := state.Load(cfg.State.Path, now, log)
	stats := l.Prune(cfg.State.RetentionDays, cfg.State.MaxEntriesPerBucket, now)
	fmt.Fprintf(os.Stdout, "removed %d by age, %d by cap\n", stats.RemovedByAge, stats.RemovedByCap)

	if dryRun || stats.Total() == 0 {
		return nil
	}
	if err := state.Save(cfg.State.Path, l, now); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	return nil
}

func init() {
	stateInspectCmd.Flags().Bool("json", false, "output as JSON")
	statePruneCmd.Flags().Bool("dry-run", false, "report what would be removed without saving")

	stateCmd.AddCommand(stateInspectCmd)
	stateCmd.AddCommand(statePruneCmd)

	rootCmd.AddCommand(stateCmd)
}
