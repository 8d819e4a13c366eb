// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/archive"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/collect"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/curate"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/digest"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/relevance"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// youtubeItemsPerChannel keeps only the newest uploads of each channel.
const youtubeItemsPerChannel = 5

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, curate, and write one digest",
	Long: `Run loads the ledger, collects from every healthy source, drops items the
report already delivered, selects literature, FOAMed posts, and videos,
and writes the digest as markdown and JSON under the output directory.

A run never fails because a feed, the ledger, or the archive misbehaves;
those problems are logged and listed in the digest diagnostics.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("mode", "", "report cadence: daily, weekly, or monthly")
	runCmd.Flags().Duration("lookback", 0, "collection window (default from mode)")
	runCmd.Flags().Bool("read-only", false, "do not write the ledger, archive, or rollups")
	runCmd.Flags().String("output-dir", "", "directory for digest files (default from config)")
	runCmd.Flags().String("format", "table", "stdout format: table, json, or markdown")

	_ = viper.BindPFlag("mode", runCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("lookback", runCmd.Flags().Lookup("lookback"))
	_ = viper.BindPFlag("state.read_only", runCmd.Flags().Lookup("read-only"))
	_ = viper.BindPFlag("output_dir", runCmd.Flags().Lookup("output-dir"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "table", "json", "markdown":
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or markdown", format)
	}

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	channels, err := curate.LoadChannels(cfg.ChannelsPath)
	if err != nil {
		log.WithError(err).Warn("channels file unusable, running without sources")
		channels = curate.Channels{}
	}

	var store *archive.Store
	if cfg.ArchivePath != "" && !cfg.State.ReadOnly {
		store, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			log.WithError(err).Warn("archive unavailable, continuing without it")
			store = nil
		} else {
			defer store.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &curate.Runner{
		Config:     cfg,
		Selection:  relevance.LoadSelectionConfig(cfg.SelectionPath, log),
		Channels:   channels,
		Collectors: newCollectors(cfg, log),
		Archive:    store,
		Log:        log,
		Out:        os.Stderr,
	}
	d, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		if err := digest.FormatJSON(d, os.Stdout); err != nil {
			return err
		}
	case "markdown":
		if err := digest.FormatMarkdown(d, os.Stdout); err != nil {
			return err
		}
	default:
		digest.FormatTable(d, os.Stdout)
	}

	if cfg.OutputDir == "" {
		return nil
	}
	mdPath, jsonPath, err := digest.WriteFiles(cfg.OutputDir, d)
	if err != nil {
		return fmt.Errorf("writing digest: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s and %s\n", mdPath, jsonPath)
	return nil
}

// newCollectors builds one feed collector per source kind over a shared
// HTTP client.
func newCollectors(cfg types.RunConfig, log logrus.FieldLogger) []curate.Collector {
	client := &http.Client{Timeout: cfg.Timeout}
	return []curate.Collector{
		collect.NewFeedCollector(client, collect.Options{
			Source: types.SourcePubMed,
			HTTP:   cfg.HTTPConfig,
		}, log),
		collect.NewFeedCollector(client, collect.Options{
			Source:            types.SourceYouTube,
			HTTP:              cfg.HTTPConfig,
			MaxItemsPerSource: youtubeItemsPerChannel,
		}, log),
		collect.NewFeedCollector(client, collect.Options{
			Source:        types.SourceFoamed,
			HTTP:          cfg.HTTPConfig,
			FetchArticles: true,
		}, log),
	}
}
