// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/fileutil"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/rollup"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Render or export the monthly rollups",
	Long: `Rollup works with the monthly rollup ledger that monthly runs maintain.
Use yearly to render a year in review and export to dump the stored
months as YAML.`,
}

// --- yearly subcommand ---

var rollupYearlyCmd = &cobra.Command{
	Use:   "yearly",
	Short: "Render a year in review from the monthly rollups",
	RunE:  runRollupYearly,
}

func runRollupYearly(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	year, _ := cmd.Flags().GetInt("year")
	if year == 0 {
		year = now.Year() - 1
	}
	out, _ := cmd.Flags().GetString("out")

	l := rollup.Load(cfg.RollupPath, now, log)
	entries := l.ForYear(cfg.ReportKey, year)
	title := fmt.Sprintf("%s: %d in review", cfg.ReportKey, year)
	md := rollup.RenderYearly(title, year, entries, now)

	if out == "" {
		_, err := io.WriteString(os.Stdout, md)
		return err
	}
	if err := fileutil.WriteAtomic(out, []byte(md)); err != nil {
		return fmt.Errorf("writing yearly review: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d months)\n", filepath.Clean(out), len(entries))
	return nil
}

// --- export subcommand ---

var rollupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the report's monthly rollups as YAML",
	RunE:  runRollupExport,
}

func runRollupExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	l := rollup.Load(cfg.RollupPath, time.Now().UTC(), log)
	return rollup.ExportYAML(os.Stdout, cfg.ReportKey, l)
}

func init() {
	rollupYearlyCmd.Flags().Int("year", 0, "calendar year to render (default: last year)")
	rollupYearlyCmd.Flags().String("out", "", "write the review to this file instead of stdout")

	rollupCmd.AddCommand(rollupYearlyCmd)
	rollupCmd.AddCommand(rollupExportCmd)

	rootCmd.AddCommand(rollupCmd)
}
