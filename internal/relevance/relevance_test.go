// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

func pubmedItem(title, journal, channel, text string) types.Item {
	it := types.Item{
		ID:      title,
		Source:  types.SourcePubMed,
		Channel: channel,
		Title:   title,
		Text:    text,
	}
	if journal != "" {
		it.PubMed = &types.PubMedMeta{Journal: journal}
	}
	return it
}

func TestNormalizeJournal(t *testing.T) {
	assert.Equal(t, "amjrespircritcaremed", NormalizeJournal("  Am. J. Respir. Crit. Care Med "))
	assert.Equal(t, NormalizeJournal("Critical Care Medicine"), NormalizeJournal("critical-care  medicine"))
	assert.Equal(t, "", NormalizeJournal("  ...  "))
}

func TestJournalCandidates_ChannelFallback(t *testing.T) {
	it := pubmedItem("t", "", "PubMed: Am J Respir Crit Care Med", "")
	assert.Equal(t, []string{"Am J Respir Crit Care Med"}, JournalCandidates(it))

	set := NewJournalSet([]string{"American Journal of Respiratory and Critical Care Medicine", "Am J Respir Crit Care Med"})
	assert.True(t, set.Matches(it))
}

func TestJournalCandidates_Order(t *testing.T) {
	it := types.Item{
		Channel: "pubmed:Lancet",
		PubMed:  &types.PubMedMeta{Journal: "The Lancet", ISOAbbrev: "Lancet", MedlineTA: "Lancet"},
	}
	assert.Equal(t, []string{"The Lancet", "Lancet", "Lancet", "Lancet"}, JournalCandidates(it))
}

func TestHaystack_BoundsText(t *testing.T) {
	it := pubmedItem("Title", "", "Chan", strings.Repeat("x", 3000)+"NEEDLE")
	hay := Haystack(it)
	assert.True(t, strings.HasPrefix(hay, "title\nchan\n"))
	assert.NotContains(t, hay, "needle")
}

func TestCompilePatterns_SkipsInvalid(t *testing.T) {
	res := CompilePatterns([]string{"erratum", "([bad", "", "^correction"}, nil)
	assert.Len(t, res, 2)
	assert.True(t, MatchesAny("ERRATUM to study", res))
	assert.False(t, MatchesAny("a correction", res))
}

func TestFormatWeight(t *testing.T) {
	assert.Equal(t, "-5.0", FormatWeight(-5))
	assert.Equal(t, "0.5", FormatWeight(0.5))
	assert.Equal(t, "2.0", FormatWeight(2))
}

func scoringConfig() types.SelectionConfig {
	cfg := types.DefaultSelectionConfig()
	cfg.MinAbstractChars = 20
	cfg.CoreJournals = []string{"Critical Care Medicine"}
	cfg.HighImpactJournals = []string{"N Engl J Med"}
	cfg.ExcludeTitleRegex = []string{`^(erratum|correction)`}
	cfg.Tracks = []types.KeywordTrack{
		{Name: "critical_care", Keywords: []string{"sepsis", "ICU"}, Bonus: 0.5},
		{Name: "anaesthesiology", Keywords: []string{"anaesthesia"}, Bonus: 0.5},
	}
	return cfg
}

func TestScore_AllTermsAndReasons(t *testing.T) {
	it := pubmedItem("Erratum: sepsis fluids", "Critical Care Medicine", "", "A long enough abstract about anaesthesia.")
	score, reasons := Score(it, scoringConfig())
	assert.InDelta(t, -5.0+1.0+2.0+0.5+0.5, score, 1e-9)
	assert.Equal(t, []string{
		"exclude_title_penalty(-5.0)",
		"abstract_len_bonus(+1.0)",
		"core_journal(+2.0)",
		"critical_care_signal(+0.5)",
		"anaesthesiology_signal(+0.5)",
	}, reasons)
}

func TestScore_NoSignals(t *testing.T) {
	score, reasons := Score(pubmedItem("Dermatology update", "", "", "short"), scoringConfig())
	assert.Zero(t, score)
	assert.Empty(t, reasons)
}

func TestScore_Deterministic(t *testing.T) {
	it := pubmedItem("ICU sedation trial", "N Engl J Med", "", strings.Repeat("abstract ", 10))
	s := NewScorer(scoringConfig(), nil)
	s1, r1 := s.Score(it)
	s2, r2 := s.Score(it)
	assert.Equal(t, s1, s2)
	assert.Equal(t, r1, r2)
	assert.Contains(t, r1, "high_impact_journal(+2.0)")
}

func TestParseSelectionConfig_JSONWithAliases(t *testing.T) {
	doc := `{
	"enabled": true,
	"selection": {
		"min_score_to_select": 3,
		"overview_max_per_run": 5,
		"deep_dive_max_per_run": 2,
		"min_abstract_chars": 200,
		"tiers": {"tier1_core_clinical": ["Anesthesiology"]},
		"hard_exclusion_patterns": ["veterinary"],
		"journal_allowlist_mode": "STRICT"
	},
	"scoring": {"exclude_title_penalty": -3, "critical_care_bonus": 1.5},
	"classification_keywords": {
		"critical_care": ["icu"],
		"anaesthesiology": ["anesthesia"]
	}
}`
	cfg, err := ParseSelectionConfig([]byte(doc))
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 3.0, cfg.MinScoreToSelect)
	assert.Equal(t, 3.0, cfg.MinScoreOverview)
	assert.Equal(t, 3.0, cfg.MinScoreDeepDive)
	assert.Equal(t, 5, cfg.MaxOverviewItems)
	assert.Equal(t, 2, cfg.MaxDeepDives)
	assert.Equal(t, []string{"Anesthesiology"}, cfg.CoreJournals)
	assert.Equal(t, []string{"veterinary"}, cfg.HardExcludeRegex)
	assert.Equal(t, types.AllowlistStrict, cfg.AllowlistMode)
	assert.Equal(t, -3.0, cfg.Scoring.ExcludeTitlePenalty)
	assert.Equal(t, 2.0, cfg.Scoring.CoreJournalBonus)
	require.Len(t, cfg.Tracks, 2)
	assert.Equal(t, "critical_care", cfg.Tracks[0].Name)
	assert.Equal(t, 1.5, cfg.Tracks[0].Bonus)
	assert.Equal(t, "anaesthesiology", cfg.Tracks[1].Name)
	assert.Equal(t, 0.5, cfg.Tracks[1].Bonus)
}

func TestParseSelectionConfig_YAMLDefaults(t *testing.T) {
	cfg, err := ParseSelectionConfig([]byte("enabled: true\nselection:\n  max_overview_items: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxOverviewItems, "zero falls back to the default")
	assert.Equal(t, 8, cfg.MaxDeepDives)
	assert.Equal(t, 2.0, cfg.MinScoreToSelect)
	assert.Equal(t, types.AllowlistPrefer, cfg.AllowlistMode)
}

func TestLoadSelectionConfig_FailuresDisable(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, LoadSelectionConfig(filepath.Join(dir, "missing.json"), nil).Enabled)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"enabled": true, "scoring": [`), 0o644))
	assert.False(t, LoadSelectionConfig(bad, nil).Enabled)

	off := filepath.Join(dir, "off.yaml")
	require.NoError(t, os.WriteFile(off, []byte("enabled: false\n"), 0o644))
	assert.False(t, LoadSelectionConfig(off, nil).Enabled)

	on := filepath.Join(dir, "on.yaml")
	require.NoError(t, os.WriteFile(on, []byte("enabled: true\n"), 0o644))
	cfg := LoadSelectionConfig(on, nil)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, on, cfg.Path)
}
