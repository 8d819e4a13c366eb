// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/health"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/state"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "List feed health recorded in the ledger",
	Long: `Health prints every source the ledger tracks with its last fetch outcome,
consecutive failure count, and disable window. Disabled sources are
listed first.`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rows := health.Summarize(state.Load(cfg.State.Path, now, log), now)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No sources tracked yet.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-32s  %-12s  %-8s  %-20s  %s\n", "Source", "Last", "Failures", "Disabled until", "Last OK")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, r := range rows {
		name := r.Name
		if len(name) > 32 {
			name = name[:29] + "..."
		}
		until := "-"
		if r.Disabled {
			until = types.FormatUTC(r.DisabledUntil)
		}
		lastOK := "-"
		if !r.LastOKAt.IsZero() {
			lastOK = types.FormatUTC(r.LastOKAt)
		}
		fmt.Fprintf(os.Stdout, "%-32s  %-12s  %-8d  %-20s  %s\n", name, r.LastHealth, r.ConsecutiveFailures, until, lastOK)
	}
	return nil
}
