// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/archive"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Query the history of delivered items",
	Long: `Archive reads the SQLite history that runs write: every run and every
item it delivered. Search uses FTS5 when the SQLite build has it.`,
}

// --- search subcommand ---

var archiveSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search delivered items by title or channel",
	RunE:  runArchiveSearch,
}

func runArchiveSearch(cmd *cobra.Command, args []string) error {
	store, cfg, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")
	opts := archive.SearchOptions{
		Query:     strings.Join(args, " "),
		ReportKey: cfg.ReportKey,
		Limit:     limit,
	}
	if source != "" {
		src, ok := types.ParseSource(source)
		if !ok {
			return fmt.Errorf("unknown source %q: use youtube, pubmed, or foamed", source)
		}
		opts.Source = src
	}

	entries, err := store.Search(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return encodeJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-10s  %-8s  %-50s  %s\n", "Delivered", "Source", "Title", "Channel")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, e := range entries {
		title := e.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-10s  %-8s  %-50s  %s\n", e.DeliveredAt.Format("2006-01-02"), e.Source, title, e.Channel)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(entries))
	return nil
}

// --- runs subcommand ---

var archiveRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs of the report",
	RunE:  runArchiveRuns,
}

func runArchiveRuns(cmd *cobra.Command, args []string) error {
	store, cfg, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.Runs(context.Background(), cfg.ReportKey, limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return encodeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-6s  %-20s  %-8s  %-10s  %-8s  %s\n", "ID", "Started", "Mode", "Candidates", "Overview", "Deep dives")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-6d  %-20s  %-8s  %-10d  %-8d  %d\n",
			r.ID, types.FormatUTC(r.StartedAt), r.Mode, r.Candidates, r.Overview, r.DeepDives)
	}
	return nil
}

// --- shared helpers ---

func openArchive() (*archive.Store, types.RunConfig, error) {
	cfg, err := loadRunConfig()
	if err != nil {
		return nil, cfg, err
	}
	if cfg.ArchivePath == "" {
		return nil, cfg, fmt.Errorf("archive_path is not configured")
	}
	store, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		return nil, cfg, err
	}
	return store, cfg, nil
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	archiveSearchCmd.Flags().String("source", "", "filter by source: youtube, pubmed, or foamed")
	archiveSearchCmd.Flags().Int("limit", 20, "maximum results")
	archiveSearchCmd.Flags().Bool("json", false, "output results as JSON")

	archiveRunsCmd.Flags().Int("limit", 20, "maximum runs")
	archiveRunsCmd.Flags().Bool("json", false, "output as JSON")

	archiveCmd.AddCommand(archiveSearchCmd)
	archiveCmd.AddCommand(archiveRunsCmd)

	rootCmd.AddCommand(archiveCmd)
}
