// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the newsagent CLI. Each stage of
// the digest workflow is a subcommand: run collects and curates one
// digest, state and health inspect the ledger, rollup renders the
// monthly and yearly reviews, and archive queries delivered history.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	log       logrus.FieldLogger = logging.Discard()
	logCloser io.Closer
)

// rootCmd is the base command for the newsagent CLI.
var rootCmd = &cobra.Command{
	Use:   "newsagent",
	Short: "Curated clinical news digests from videos, literature, and blogs",
	Long: `newsagent collects new items from YouTube channels, PubMed searches, and
FOAMed blogs, filters what a report has already delivered, scores and
budgets the rest, and writes a digest. A JSON ledger remembers delivered
items and feed health between runs; a SQLite archive keeps the history.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		file, _ := cmd.Flags().GetString("log-file")
		l, closer, err := logging.New(level, file)
		if err != nil {
			return err
		}
		log, logCloser = l, closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./newsagent.yaml or ~/.config/newsagent/newsagent.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "also append logs to this file")
	rootCmd.PersistentFlags().String("report", "", "report key (default from config)")
	rootCmd.PersistentFlags().String("state", "", "processed-items ledger path (default from config)")

	_ = viper.BindPFlag("report_key", rootCmd.PersistentFlags().Lookup("report"))
	_ = viper.BindPFlag("state.path", rootCmd.PersistentFlags().Lookup("state"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("newsagent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "newsagent"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("NEWSAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
