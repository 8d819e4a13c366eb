// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// selectionFile is the on-disk policy document. It may be written as YAML
// or JSON. Several keys have legacy aliases; the first one set wins.
type selectionFile struct {
	Enabled                bool               `yaml:"enabled"`
	Selection              selectionSection   `yaml:"selection"`
	Scoring                map[string]float64 `yaml:"scoring"`
	ClassificationKeywords yaml.Node          `yaml:"classification_keywords"`
	DeepDiveScoring        *deepDiveSection   `yaml:"deep_dive_scoring"`
}

type deepDiveSection struct {
	Weights map[string]float64 `yaml:"weights"`

	StudyDesignSignals        []string `yaml:"study_design_signals"`
	PublicationTypeSignals    []string `yaml:"publication_type_signals"`
	PowerSignals              []string `yaml:"power_signals"`
	PredictiveSignals         []string `yaml:"predictive_value_signals"`
	ClinicalRelevanceKeywords []string `yaml:"clinical_relevance_keywords"`
	DownrankSignals           []string `yaml:"downrank_signals"`
	PreclinicalSignals        []string `yaml:"preclinical_penalty_signals"`
	EditorialSignals          []string `yaml:"editorial_penalty_signals"`

	MaxPerDomain *int `yaml:"max_per_domain"`
}

type selectionSection struct {
	MinScoreToSelect *float64 `yaml:"min_score_to_select"`
	MinScoreOverview *float64 `yaml:"min_score_overview"`
	MinScoreDeepDive *float64 `yaml:"min_score_deep_dive"`

	OverviewMaxPerRun *int `yaml:"overview_max_per_run"`
	MaxOverviewItems  *int `yaml:"max_overview_items"`
	MaxSelectedPerRun *int `yaml:"max_selected_per_run"`
	DeepDiveMaxPerRun *int `yaml:"deep_dive_max_per_run"`
	MaxDeepDives      *int `yaml:"max_deep_dives"`

	MinAbstractChars int `yaml:"min_abstract_chars"`

	CoreJournals       []string            `yaml:"core_journals"`
	HighImpactJournals []string            `yaml:"high_impact_journals"`
	Tiers              map[string][]string `yaml:"tiers"`

	ExcludeTitleRegex        []string `yaml:"exclude_title_regex"`
	HardExclusionPatterns    []string `yaml:"hard_exclusion_patterns"`
	HardExcludeOverviewRegex []string `yaml:"hard_exclude_overview_regex"`
	HardExcludeDeepDiveRegex []string `yaml:"hard_exclude_deep_dive_regex"`

	JournalAllowlistMode string `yaml:"journal_allowlist_mode"`

	DomainKeywords         yaml.Node `yaml:"domain_keywords"`
	ClinicalIntentKeywords struct {
		Design   []string `yaml:"design"`
		Clinical []string `yaml:"clinical"`
	} `yaml:"clinical_intent_keywords"`
	PainStrictKeywords        []string `yaml:"pain_strict_keywords"`
	PainStrictContextKeywords []string `yaml:"pain_strict_context_keywords"`
	PainRequiresKeywords      *bool    `yaml:"pain_requires_keywords"`

	PublicationTypeExclusions []string `yaml:"publication_type_exclusions"`
	MaxPerDomainDeepDive      *int     `yaml:"max_per_domain_deep_dive"`
}

// defaultMaxPerDomainDeepDive applies when deep-dive scoring is configured
// without a per-domain cap.
const defaultMaxPerDomainDeepDive = 3

// Disabled returns the pass-through policy used when no valid config exists.
func Disabled(path string) types.SelectionConfig {
	return types.SelectionConfig{Enabled: false, Path: path}
}

// LoadSelectionConfig reads the policy at path. A missing, unreadable, or
// invalid file yields a disabled policy; it never fails.
func LoadSelectionConfig(path string, log logrus.FieldLogger) types.SelectionConfig {
	log = logging.OrDiscard(log)
	if path == "" {
		return Disabled(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Warn("reading selection config failed, selection disabled")
		}
		return Disabled(path)
	}
	cfg, err := ParseSelectionConfig(data)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("invalid selection config, selection disabled")
		return Disabled(path)
	}
	cfg.Path = path
	return cfg
}

// ParseSelectionConfig decodes a YAML or JSON policy document and applies
// defaults for every knob it leaves unset.
func ParseSelectionConfig(data []byte) (types.SelectionConfig, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return types.SelectionConfig{}, fmt.Errorf("empty selection config")
	}
	if trimmed[0] == '{' {
		// JSON forbids raw tabs inside strings, and YAML rejects them as
		// indentation.
		trimmed = bytes.ReplaceAll(trimmed, []byte("\t"), []byte(" "))
	}

	var f selectionFile
	if err := yaml.Unmarshal(trimmed, &f); err != nil {
		return types.SelectionConfig{}, fmt.Errorf("parsing selection config: %w", err)
	}
	if !f.Enabled {
		return types.SelectionConfig{Enabled: false}, nil
	}

	cfg := types.DefaultSelectionConfig()
	sel := f.Selection

	if sel.MinScoreToSelect != nil {
		cfg.MinScoreToSelect = *sel.MinScoreToSelect
	}
	cfg.MinScoreOverview = floatOr(sel.MinScoreOverview, cfg.MinScoreToSelect)
	cfg.MinScoreDeepDive = floatOr(sel.MinScoreDeepDive, cfg.MinScoreToSelect)

	if n := firstInt(sel.OverviewMaxPerRun, sel.MaxOverviewItems, sel.MaxSelectedPerRun); n > 0 {
		cfg.MaxOverviewItems = n
	}
	if n := firstInt(sel.DeepDiveMaxPerRun, sel.MaxDeepDives); n > 0 {
		cfg.MaxDeepDives = n
	}
	cfg.MinAbstractChars = sel.MinAbstractChars

	cfg.CoreJournals = sel.CoreJournals
	if cfg.CoreJournals == nil {
		cfg.CoreJournals = firstList(sel.Tiers["tier1_core"], sel.Tiers["tier1_core_clinical"])
	}
	cfg.HighImpactJournals = sel.HighImpactJournals
	if cfg.HighImpactJournals == nil {
		cfg.HighImpactJournals = firstList(sel.Tiers["tier2_high_impact"], sel.Tiers["tier2_general_high_impact"])
	}

	cfg.ExcludeTitleRegex = sel.ExcludeTitleRegex
	cfg.HardExcludeRegex = sel.HardExcludeOverviewRegex
	if cfg.HardExcludeRegex == nil {
		cfg.HardExcludeRegex = sel.HardExclusionPatterns
	}
	cfg.HardExcludeDeepDiveRegex = sel.HardExcludeDeepDiveRegex

	cfg.Tier1Journals = firstList(sel.Tiers["tier1_core"], sel.Tiers["tier1_core_clinical"])
	cfg.Tier2Journals = firstList(sel.Tiers["tier2_high_impact"], sel.Tiers["tier2_general_high_impact"])
	cfg.Tier3Journals = sel.Tiers["tier3_pain_strict"]

	domains, err := decodeGroups(&sel.DomainKeywords, "domain_keywords")
	if err != nil {
		return types.SelectionConfig{}, err
	}
	cfg.DomainKeywords = domains
	cfg.ClinicalIntentDesign = sel.ClinicalIntentKeywords.Design
	cfg.ClinicalIntentClinical = sel.ClinicalIntentKeywords.Clinical
	cfg.PainKeywords = sel.PainStrictKeywords
	cfg.PainContextKeywords = sel.PainStrictContextKeywords
	cfg.PainAcceptsDomainContext = sel.PainRequiresKeywords != nil && !*sel.PainRequiresKeywords
	cfg.PublicationTypeExclusions = sel.PublicationTypeExclusions

	if dd := f.DeepDiveScoring; dd != nil {
		cfg.DeepDive = deepDiveScoring(dd)
	}
	if sel.MaxPerDomainDeepDive != nil {
		cfg.DeepDive.MaxPerDomain = *sel.MaxPerDomainDeepDive
	}

	switch mode := types.AllowlistMode(strings.ToLower(strings.TrimSpace(sel.JournalAllowlistMode))); mode {
	case types.AllowlistStrict:
		cfg.AllowlistMode = mode
	default:
		cfg.AllowlistMode = types.AllowlistPrefer
	}

	sc := f.Scoring
	w := &cfg.Scoring
	w.ExcludeTitlePenalty = weight(sc, "exclude_title_penalty", w.ExcludeTitlePenalty)
	w.ReasonableAbstractBonus = weight(sc, "has_reasonable_abstract_bonus", w.ReasonableAbstractBonus)
	w.CoreJournalBonus = weight(sc, "journal_core_bonus", w.CoreJournalBonus)
	w.HighImpactJournalBonus = weight(sc, "journal_high_impact_bonus", w.HighImpactJournalBonus)
	w.DefaultClassificationBonus = weight(sc, "default_classification_bonus", w.DefaultClassificationBonus)
	w.PublicationTypePenalty = weight(sc, "publication_type_penalty", w.PublicationTypePenalty)
	w.DeepDivePubTypePenalty = weight(sc, "deep_dive_pubtype_penalty", w.DeepDivePubTypePenalty)
	w.DeepDiveTitlePenalty = weight(sc, "deep_dive_title_penalty", w.DeepDiveTitlePenalty)

	tracks, err := decodeTracks(&f.ClassificationKeywords, sc, w.DefaultClassificationBonus)
	if err != nil {
		return types.SelectionConfig{}, err
	}
	cfg.Tracks = tracks
	return cfg, nil
}

func deepDiveScoring(dd *deepDiveSection) types.DeepDiveScoring {
	w := types.DefaultDeepDiveWeights()
	w.StudyDesign = weight(dd.Weights, "study_design", w.StudyDesign)
	w.PublicationType = weight(dd.Weights, "publication_type", w.PublicationType)
	w.Power = weight(dd.Weights, "power", w.Power)
	w.SampleSize = weight(dd.Weights, "sample_size", w.SampleSize)
	w.Predictive = weight(dd.Weights, "predictive", w.Predictive)
	w.ClinicalRelevance = weight(dd.Weights, "clinical_relevance", w.ClinicalRelevance)
	w.Downrank = weight(dd.Weights, "downrank", w.Downrank)

	maxPerDomain := defaultMaxPerDomainDeepDive
	if dd.MaxPerDomain != nil && *dd.MaxPerDomain > 0 {
		maxPerDomain = *dd.MaxPerDomain
	}
	return types.DeepDiveScoring{
		Enabled:                   true,
		Weights:                   w,
		StudyDesignSignals:        dd.StudyDesignSignals,
		PublicationTypeSignals:    dd.PublicationTypeSignals,
		PowerSignals:              dd.PowerSignals,
		PredictiveSignals:         dd.PredictiveSignals,
		ClinicalRelevanceKeywords: dd.ClinicalRelevanceKeywords,
		DownrankSignals:           dd.DownrankSignals,
		PreclinicalSignals:        dd.PreclinicalSignals,
		EditorialSignals:          dd.EditorialSignals,
		MaxPerDomain:              maxPerDomain,
	}
}

// decodeTracks walks the classification_keywords mapping in document order
// so reasons come out in the order the config lists tracks. Each track's
// bonus is read from scoring["<name>_bonus"].
func decodeTracks(node *yaml.Node, scoring map[string]float64, def float64) ([]types.KeywordTrack, error) {
	groups, err := decodeGroups(node, "classification_keywords")
	if err != nil {
		return nil, err
	}
	var out []types.KeywordTrack
	for _, g := range groups {
		out = append(out, types.KeywordTrack{
			Name:     g.Name,
			Keywords: g.Keywords,
			Bonus:    weight(scoring, g.Name+"_bonus", def),
		})
	}
	return out, nil
}

// decodeGroups reads a name-to-keywords mapping in document order. Entries
// whose value is not a string list are skipped.
func decodeGroups(node *yaml.Node, key string) ([]types.KeywordGroup, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping", key)
	}
	var out []types.KeywordGroup
	for i := 0; i+1 < len(node.Content); i += 2 {
		var kws []string
		if err := node.Content[i+1].Decode(&kws); err != nil {
			continue
		}
		out = append(out, types.KeywordGroup{Name: node.Content[i].Value, Keywords: kws})
	}
	return out, nil
}

func weight(m map[string]float64, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func firstInt(ps ...*int) int {
	for _, p := range ps {
		if p != nil {
			return *p
		}
	}
	return 0
}

func firstList(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
