// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// Keys whose defaults depend on the mode are resolved in loadRunConfig
// instead of here.
const (
	keyDetailItems       = "budget.detail_items"
	keyFoamedMaxOverview = "foamed_max_overview"
)

func setDefaults() {
	def := types.DefaultRunConfig()

	viper.SetDefault("report_key", def.ReportKey)
	viper.SetDefault("mode", string(def.Mode))
	viper.SetDefault("lookback", def.Lookback)

	viper.SetDefault("timeout", def.Timeout)
	viper.SetDefault("user_agent", def.UserAgent)
	viper.SetDefault("requests_per_minute", def.RequestsPerMinute)
	viper.SetDefault("max_retries", def.MaxRetries)

	viper.SetDefault("state.path", def.State.Path)
	viper.SetDefault("state.retention_days", def.State.RetentionDays)
	viper.SetDefault("state.max_entries_per_bucket", def.State.MaxEntriesPerBucket)
	viper.SetDefault("state.overview_cooldown_hours", def.State.OverviewCooldownHours)
	viper.SetDefault("state.reconsider_unsent_hours", def.State.ReconsiderUnsentHours)
	viper.SetDefault("state.read_only", def.State.ReadOnly)

	viper.SetDefault("health.auto_disable", def.Health.AutoDisable)
	viper.SetDefault("health.disable_after_403", def.Health.DisableAfter403)
	viper.SetDefault("health.disable_days_403", def.Health.DisableDays403)
	viper.SetDefault("health.disable_after_404", def.Health.DisableAfter404)
	viper.SetDefault("health.disable_days_404", def.Health.DisableDays404)

	viper.SetDefault("budget.per_channel_cap", def.Budget.PerChannelCap)
	viper.SetDefault("foamed_top_picks", def.FoamedTopPicks)

	viper.SetDefault("selection_path", def.SelectionPath)
	viper.SetDefault("channels_path", def.ChannelsPath)
	viper.SetDefault("archive_path", def.ArchivePath)
	viper.SetDefault("rollup_path", def.RollupPath)
	viper.SetDefault("output_dir", def.OutputDir)
	viper.SetDefault("rollup_max_months", def.RollupMaxMonths)
}

// loadRunConfig resolves the run configuration from defaults, the config
// file, NEWSAGENT_* environment variables, and bound flags.
func loadRunConfig() (types.RunConfig, error) {
	mode := types.ReportMode(viper.GetString("mode"))
	if !mode.Valid() {
		return types.RunConfig{}, fmt.Errorf("unknown mode %q: use daily, weekly, or monthly", mode)
	}

	cfg := types.RunConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:           viper.GetDuration("timeout"),
			UserAgent:         viper.GetString("user_agent"),
			RequestsPerMinute: viper.GetInt("requests_per_minute"),
			MaxRetries:        viper.GetInt("max_retries"),
		},
		ReportKey: viper.GetString("report_key"),
		Mode:      mode,
		Lookback:  viper.GetDuration("lookback"),
		State: types.StateConfig{
			Path:                  viper.GetString("state.path"),
			RetentionDays:         viper.GetInt("state.retention_days"),
			MaxEntriesPerBucket:   viper.GetInt("state.max_entries_per_bucket"),
			OverviewCooldownHours: viper.GetInt("state.overview_cooldown_hours"),
			ReconsiderUnsentHours: viper.GetInt("state.reconsider_unsent_hours"),
			ReadOnly:              viper.GetBool("state.read_only"),
		},
		Health: types.HealthConfig{
			AutoDisable:     viper.GetBool("health.auto_disable"),
			DisableAfter403: viper.GetInt("health.disable_after_403"),
			DisableDays403:  viper.GetInt("health.disable_days_403"),
			DisableAfter404: viper.GetInt("health.disable_after_404"),
			DisableDays404:  viper.GetInt("health.disable_days_404"),
		},
		Budget: types.BudgetConfig{
			DetailItems:   types.DefaultDetailItems(mode),
			PerChannelCap: viper.GetInt("budget.per_channel_cap"),
		},
		FoamedTopPicks:    viper.GetInt("foamed_top_picks"),
		FoamedMaxOverview: types.DefaultFoamedMaxOverview(mode),
		SelectionPath:     viper.GetString("selection_path"),
		ChannelsPath:      viper.GetString("channels_path"),
		ArchivePath:       viper.GetString("archive_path"),
		RollupPath:        viper.GetString("rollup_path"),
		OutputDir:         viper.GetString("output_dir"),
		RollupMaxMonths:   viper.GetInt("rollup_max_months"),
	}
	if viper.IsSet(keyDetailItems) {
		cfg.Budget.DetailItems = viper.GetInt(keyDetailItems)
	}
	if viper.IsSet(keyFoamedMaxOverview) {
		cfg.FoamedMaxOverview = viper.GetInt(keyFoamedMaxOverview)
	}
	if cfg.ReportKey == "" {
		return types.RunConfig{}, fmt.Errorf("report key must not be empty")
	}
	return cfg, nil
}
