// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ReportMode is the cadence of a digest run.
type ReportMode string

const (
	ModeDaily   ReportMode = "daily"
	ModeWeekly  ReportMode = "weekly"
	ModeMonthly ReportMode = "monthly"
)

// Valid reports whether m is a known cadence.
func (m ReportMode) Valid() bool {
	switch m {
	case ModeDaily, ModeWeekly, ModeMonthly:
		return true
	}
	return false
}

// Lookback returns the collection window for the cadence.
func (m ReportMode) Lookback() time.Duration {
	switch m {
	case ModeWeekly:
		return 7 * 24 * time.Hour
	case ModeMonthly:
		return 31 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// HTTPConfig holds shared HTTP settings used by collectors.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "newsagent/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// RequestsPerMinute caps outbound fetches across all sources.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`

	// MaxRetries bounds retries on HTTP 429.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// StateConfig holds settings for the processed-items ledger.
type StateConfig struct {
	// Path is the JSON ledger file.
	Path string `json:"path" yaml:"path"`

	// RetentionDays drops entries older than this many days (<=0 disables).
	RetentionDays int `json:"retention_days" yaml:"retention_days"`

	// MaxEntriesPerBucket caps each report/source bucket (<=0 disables).
	MaxEntriesPerBucket int `json:"max_entries_per_bucket" yaml:"max_entries_per_bucket"`

	// OverviewCooldownHours suppresses re-sending a literature item in the overview.
	OverviewCooldownHours int `json:"overview_cooldown_hours" yaml:"overview_cooldown_hours"`

	// ReconsiderUnsentHours lets screened-but-unsent literature items back in.
	ReconsiderUnsentHours int `json:"reconsider_unsent_hours" yaml:"reconsider_unsent_hours"`

	// ReadOnly skips every ledger write for the run.
	ReadOnly bool `json:"read_only" yaml:"read_only"`
}

// HealthConfig holds auto-disable thresholds for feed sources.
type HealthConfig struct {
	AutoDisable     bool `json:"auto_disable" yaml:"auto_disable"`
	DisableAfter403 int  `json:"disable_after_403" yaml:"disable_after_403"`
	DisableDays403  int  `json:"disable_days_403" yaml:"disable_days_403"`
	DisableAfter404 int  `json:"disable_after_404" yaml:"disable_after_404"`
	DisableDays404  int  `json:"disable_days_404" yaml:"disable_days_404"`
}

// BudgetConfig holds the detail-item allocator settings.
type BudgetConfig struct {
	// DetailItems is the total detail budget per run (daily default 8).
	DetailItems int `json:"detail_items" yaml:"detail_items"`

	// PerChannelCap bounds detail items taken from one channel (<=0 disables).
	PerChannelCap int `json:"per_channel_cap" yaml:"per_channel_cap"`
}

// DefaultDetailItems returns the detail budget for a cadence.
func DefaultDetailItems(m ReportMode) int {
	switch m {
	case ModeWeekly:
		return 12
	case ModeMonthly:
		return 16
	default:
		return 8
	}
}

// DefaultFoamedMaxOverview returns the FOAMed overview cap for a cadence.
func DefaultFoamedMaxOverview(m ReportMode) int {
	switch m {
	case ModeWeekly:
		return 25
	case ModeMonthly:
		return 15
	default:
		return 40
	}
}

// RunConfig is the resolved configuration of one digest run.
type RunConfig struct {
	HTTPConfig `yaml:",inline"`

	ReportKey string     `json:"report_key" yaml:"report_key"`
	Mode      ReportMode `json:"mode" yaml:"mode"`

	// Lookback overrides the cadence window when non-zero.
	Lookback time.Duration `json:"lookback" yaml:"lookback"`

	State  StateConfig  `json:"state" yaml:"state"`
	Health HealthConfig `json:"health" yaml:"health"`
	Budget BudgetConfig `json:"budget" yaml:"budget"`

	// FoamedTopPicks and FoamedMaxOverview bound the FOAMed overview.
	FoamedTopPicks    int `json:"foamed_top_picks" yaml:"foamed_top_picks"`
	FoamedMaxOverview int `json:"foamed_max_overview" yaml:"foamed_max_overview"`

	SelectionPath string `json:"selection_path" yaml:"selection_path"`
	ChannelsPath  string `json:"channels_path" yaml:"channels_path"`
	ArchivePath   string `json:"archive_path" yaml:"archive_path"`
	RollupPath    string `json:"rollup_path" yaml:"rollup_path"`
	OutputDir     string `json:"output_dir" yaml:"output_dir"`

	// RollupMaxMonths bounds the monthly rollup ledger per report.
	RollupMaxMonths int `json:"rollup_max_months" yaml:"rollup_max_months"`
}

// DefaultRunConfig returns the configuration used when nothing is set.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		HTTPConfig: HTTPConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "newsagent/0.1",
			RequestsPerMinute: 60,
			MaxRetries:        3,
		},
		ReportKey: "default",
		Mode:      ModeDaily,
		State: StateConfig{
			Path:                  "state/processed_items.json",
			RetentionDays:         120,
			MaxEntriesPerBucket:   5000,
			OverviewCooldownHours: 48,
			ReconsiderUnsentHours: 36,
		},
		Health: HealthConfig{
			AutoDisable:     true,
			DisableAfter403: 3,
			DisableDays403:  7,
			DisableAfter404: 2,
			DisableDays404:  30,
		},
		Budget: BudgetConfig{
			DetailItems:   DefaultDetailItems(ModeDaily),
			PerChannelCap: 2,
		},
		FoamedTopPicks:    2,
		FoamedMaxOverview: 40,
		SelectionPath:     "configs/selection.yaml",
		ChannelsPath:      "configs/channels.yaml",
		ArchivePath:       "state/archive.db",
		RollupPath:        "state/rollups.json",
		OutputDir:         "reports",
		RollupMaxMonths:   24,
	}
}

// EffectiveLookback returns the configured lookback or the cadence default.
func (c RunConfig) EffectiveLookback() time.Duration {
	if c.Lookback > 0 {
		return c.Lookback
	}
	return c.Mode.Lookback()
}

// AllowlistMode controls how journal allowlists affect literature selection.
type AllowlistMode string

const (
	// AllowlistPrefer only adds bonuses for listed journals.
	AllowlistPrefer AllowlistMode = "prefer"
	// AllowlistStrict excludes items whose journal is not on the core list.
	// It has no effect while the core list is empty.
	AllowlistStrict AllowlistMode = "strict"
)

// KeywordTrack is one named classification keyword list with its bonus.
type KeywordTrack struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Bonus    float64  `json:"bonus" yaml:"bonus"`
}

// ScoringWeights are the additive terms of the relevance score.
type ScoringWeights struct {
	ExcludeTitlePenalty        float64 `json:"exclude_title_penalty" yaml:"exclude_title_penalty"`
	ReasonableAbstractBonus    float64 `json:"has_reasonable_abstract_bonus" yaml:"has_reasonable_abstract_bonus"`
	CoreJournalBonus           float64 `json:"journal_core_bonus" yaml:"journal_core_bonus"`
	HighImpactJournalBonus     float64 `json:"journal_high_impact_bonus" yaml:"journal_high_impact_bonus"`
	DefaultClassificationBonus float64 `json:"default_classification_bonus" yaml:"default_classification_bonus"`

	// PublicationTypePenalty applies to the relevance score of items carrying
	// an excluded publication type; the two DeepDive penalties apply to the
	// deep-dive score.
	PublicationTypePenalty float64 `json:"publication_type_penalty" yaml:"publication_type_penalty"`
	DeepDivePubTypePenalty float64 `json:"deep_dive_pubtype_penalty" yaml:"deep_dive_pubtype_penalty"`
	DeepDiveTitlePenalty   float64 `json:"deep_dive_title_penalty" yaml:"deep_dive_title_penalty"`
}

// DefaultScoringWeights returns the weights used when the config omits them.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		ExcludeTitlePenalty:        -5.0,
		ReasonableAbstractBonus:    1.0,
		CoreJournalBonus:           2.0,
		HighImpactJournalBonus:     2.0,
		DefaultClassificationBonus: 0.5,
		PublicationTypePenalty:     -1.5,
		DeepDivePubTypePenalty:     -1.5,
		DeepDiveTitlePenalty:       -1.0,
	}
}

// KeywordGroup is a named keyword list that flags items without scoring them.
type KeywordGroup struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// DeepDiveWeights are the additive terms of the deep-dive score.
type DeepDiveWeights struct {
	StudyDesign       float64 `json:"study_design" yaml:"study_design"`
	PublicationType   float64 `json:"publication_type" yaml:"publication_type"`
	Power             float64 `json:"power" yaml:"power"`
	SampleSize        float64 `json:"sample_size" yaml:"sample_size"`
	Predictive        float64 `json:"predictive" yaml:"predictive"`
	ClinicalRelevance float64 `json:"clinical_relevance" yaml:"clinical_relevance"`
	Downrank          float64 `json:"downrank" yaml:"downrank"`
}

// DefaultDeepDiveWeights returns the weights used when the config omits them.
func DefaultDeepDiveWeights() DeepDiveWeights {
	return DeepDiveWeights{
		StudyDesign:       3.0,
		PublicationType:   2.5,
		Power:             1.5,
		SampleSize:        1.2,
		Predictive:        1.5,
		ClinicalRelevance: 1.0,
		Downrank:          -1.5,
	}
}

// DeepDiveScoring ranks included items for deep-dive treatment by evidence
// quality instead of topical relevance. While disabled, deep dives are the
// first included items in rank order.
type DeepDiveScoring struct {
	Enabled bool            `json:"enabled" yaml:"enabled"`
	Weights DeepDiveWeights `json:"weights" yaml:"weights"`

	StudyDesignSignals        []string `json:"study_design_signals,omitempty" yaml:"study_design_signals,omitempty"`
	PublicationTypeSignals    []string `json:"publication_type_signals,omitempty" yaml:"publication_type_signals,omitempty"`
	PowerSignals              []string `json:"power_signals,omitempty" yaml:"power_signals,omitempty"`
	PredictiveSignals         []string `json:"predictive_value_signals,omitempty" yaml:"predictive_value_signals,omitempty"`
	ClinicalRelevanceKeywords []string `json:"clinical_relevance_keywords,omitempty" yaml:"clinical_relevance_keywords,omitempty"`
	DownrankSignals           []string `json:"downrank_signals,omitempty" yaml:"downrank_signals,omitempty"`
	PreclinicalSignals        []string `json:"preclinical_penalty_signals,omitempty" yaml:"preclinical_penalty_signals,omitempty"`
	EditorialSignals          []string `json:"editorial_penalty_signals,omitempty" yaml:"editorial_penalty_signals,omitempty"`

	// MaxPerDomain caps deep dives sharing one domain key (the first domain
	// signal an item raises, or "general"). Zero means no cap.
	MaxPerDomain int `json:"max_per_domain" yaml:"max_per_domain"`
}

// SelectionConfig is the resolved literature selection policy.
type SelectionConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is where the policy was read from, for diagnostics.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// MinScoreOverview and MinScoreDeepDive fall back to MinScoreToSelect
	// when zero; see OverviewThreshold and DeepDiveThreshold.
	MinScoreToSelect float64 `json:"min_score_to_select" yaml:"min_score_to_select"`
	MinScoreOverview float64 `json:"min_score_overview" yaml:"min_score_overview"`
	MinScoreDeepDive float64 `json:"min_score_deep_dive" yaml:"min_score_deep_dive"`

	MaxOverviewItems int `json:"max_overview_items" yaml:"max_overview_items"`
	MaxDeepDives     int `json:"max_deep_dives" yaml:"max_deep_dives"`

	MinAbstractChars int `json:"min_abstract_chars" yaml:"min_abstract_chars"`

	CoreJournals       []string `json:"core_journals" yaml:"core_journals"`
	HighImpactJournals []string `json:"high_impact_journals" yaml:"high_impact_journals"`

	ExcludeTitleRegex        []string `json:"exclude_title_regex" yaml:"exclude_title_regex"`
	HardExcludeRegex         []string `json:"hard_exclude_regex" yaml:"hard_exclude_regex"`
	HardExcludeDeepDiveRegex []string `json:"hard_exclude_deep_dive_regex" yaml:"hard_exclude_deep_dive_regex"`

	Tracks []KeywordTrack `json:"classification_keywords" yaml:"classification_keywords"`

	AllowlistMode AllowlistMode `json:"journal_allowlist_mode" yaml:"journal_allowlist_mode"`

	Scoring ScoringWeights `json:"scoring" yaml:"scoring"`

	// Tier lists, domain keywords, and clinical intent keywords turn on tier
	// gating; see TierGating.
	Tier1Journals []string `json:"tier1_core,omitempty" yaml:"tier1_core,omitempty"`
	Tier2Journals []string `json:"tier2_high_impact,omitempty" yaml:"tier2_high_impact,omitempty"`
	Tier3Journals []string `json:"tier3_pain_strict,omitempty" yaml:"tier3_pain_strict,omitempty"`

	DomainKeywords         []KeywordGroup `json:"domain_keywords,omitempty" yaml:"domain_keywords,omitempty"`
	ClinicalIntentDesign   []string       `json:"clinical_intent_design,omitempty" yaml:"clinical_intent_design,omitempty"`
	ClinicalIntentClinical []string       `json:"clinical_intent_clinical,omitempty" yaml:"clinical_intent_clinical,omitempty"`

	PainKeywords        []string `json:"pain_strict_keywords,omitempty" yaml:"pain_strict_keywords,omitempty"`
	PainContextKeywords []string `json:"pain_strict_context_keywords,omitempty" yaml:"pain_strict_context_keywords,omitempty"`
	// PainAcceptsDomainContext lets tier-3 items in on a perioperative or ICU
	// domain signal alone.
	PainAcceptsDomainContext bool `json:"pain_accepts_domain_context,omitempty" yaml:"pain_accepts_domain_context,omitempty"`

	PublicationTypeExclusions []string `json:"publication_type_exclusions,omitempty" yaml:"publication_type_exclusions,omitempty"`

	DeepDive DeepDiveScoring `json:"deep_dive_scoring" yaml:"deep_dive_scoring"`
}

// OverviewThreshold is the minimum relevance score for the overview.
func (c SelectionConfig) OverviewThreshold() float64 {
	if c.MinScoreOverview != 0 {
		return c.MinScoreOverview
	}
	return c.MinScoreToSelect
}

// DeepDiveThreshold is the minimum score for deep-dive treatment. It is
// compared with the deep-dive score when DeepDive is enabled and with the
// relevance score otherwise.
func (c SelectionConfig) DeepDiveThreshold() float64 {
	if c.MinScoreDeepDive != 0 {
		return c.MinScoreDeepDive
	}
	return c.MinScoreToSelect
}

// TierGating reports whether candidates must pass the journal tier and
// domain gate before scoring thresholds apply.
func (c SelectionConfig) TierGating() bool {
	return len(c.Tier1Journals) > 0 || len(c.Tier2Journals) > 0 || len(c.Tier3Journals) > 0 ||
		len(c.DomainKeywords) > 0 || len(c.ClinicalIntentDesign) > 0 || len(c.ClinicalIntentClinical) > 0
}

// DefaultSelectionConfig returns an enabled policy with default thresholds
// and no journal lists.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		Enabled:          true,
		MinScoreToSelect: 2.0,
		MinScoreOverview: 2.0,
		MinScoreDeepDive: 2.0,
		MaxOverviewItems: 12,
		MaxDeepDives:     8,
		AllowlistMode:    AllowlistPrefer,
		Scoring:          DefaultScoringWeights(),
		DeepDive:         DeepDiveScoring{Weights: DefaultDeepDiveWeights()},
	}
}

// ChannelSource is one configured upstream: a YouTube channel, a PubMed
// query feed, or a FOAMed blog/podcast feed.
type ChannelSource struct {
	Name    string `json:"name" yaml:"name"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	FeedURL string `json:"feed_url,omitempty" yaml:"feed_url,omitempty"`
	Source  Source `json:"source" yaml:"source"`
}

// Endpoint returns the URL a collector should fetch.
func (c ChannelSource) Endpoint() string {
	if c.FeedURL != "" {
		return c.FeedURL
	}
	return c.URL
}

// TopicBucket groups channels under a topic with a budget weight.
type TopicBucket struct {
	Name     string          `json:"name" yaml:"name"`
	Weight   float64         `json:"weight,omitempty" yaml:"weight,omitempty"`
	Channels []ChannelSource `json:"channels" yaml:"channels"`
}

// ChannelsConfig is the channels file: topic buckets plus free sources.
type ChannelsConfig struct {
	TopicBuckets []TopicBucket      `json:"topic_buckets" yaml:"topic_buckets"`
	Sources      []ChannelSource    `json:"sources,omitempty" yaml:"sources,omitempty"`
	TopicWeights map[string]float64 `json:"topic_weights,omitempty" yaml:"topic_weights,omitempty"`
}
