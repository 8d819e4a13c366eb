// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

func TestExtractSampleSize(t *testing.T) {
	cases := map[string]int{
		"prospective cohort (n = 2450)":   2450,
		"N: 80 enrolled":                  80,
		"we enrolled 312 patients":        312,
		"n=1234 across 40 patients":       1234,
		"7 patients":                      0,
		"no numbers in this abstract":     0,
		"a survey of 96 neonates in NICU": 96,
	}
	for text, want := range cases {
		assert.Equal(t, want, ExtractSampleSize(text), text)
	}
}

func deepDiveConfig() types.SelectionConfig {
	cfg := types.DefaultSelectionConfig()
	cfg.HighImpactJournals = []string{"Nature"}
	cfg.ExcludeTitleRegex = []string{"protocol"}
	cfg.PublicationTypeExclusions = []string{"Editorial"}
	cfg.DeepDive = types.DeepDiveScoring{
		Enabled:                true,
		Weights:                types.DefaultDeepDiveWeights(),
		PublicationTypeSignals: []string{"Randomized Controlled Trial", "Meta-Analysis"},
		PowerSignals:           []string{"powered"},
		PreclinicalSignals:     []string{"mice"},
	}
	return cfg
}

func TestDeepDiveScore_EvidenceTerms(t *testing.T) {
	it := pubmedItem("Trial", "Lancet", "", "A trial, n = 250, adequately powered.")
	it.PubMed.PublicationTypes = []string{"Meta-Analysis", "Randomized Controlled Trial"}

	s := NewScorer(deepDiveConfig(), nil)
	score, reasons := s.DeepDiveScore(it, Haystack(it), []string{"icu_ccm"})

	assert.InDelta(t, 2.5+0.5*1.2+1.5, score, 1e-9)
	assert.Equal(t, []string{
		"pubtype:randomized controlled trial",
		"n=250",
		"power_kw",
		"domain:icu_ccm",
	}, reasons, "the first configured publication type wins")
}

func TestDeepDiveScore_PowerHintWithoutSampleSize(t *testing.T) {
	it := pubmedItem("Powered trial", "Lancet", "", "")
	score, reasons := NewScorer(deepDiveConfig(), nil).DeepDiveScore(it, Haystack(it), nil)
	assert.InDelta(t, 1.5*0.5+1.5, score, 1e-9)
	assert.Equal(t, []string{"power_hint", "power_kw"}, reasons)
}

func TestDeepDiveScore_Penalties(t *testing.T) {
	it := pubmedItem("Protocol for a study in mice", "Nature", "", "")
	it.PubMed.PublicationTypes = []string{"editorial"}

	s := NewScorer(deepDiveConfig(), nil)
	score, reasons := s.DeepDiveScore(it, Haystack(it), nil)
	assert.InDelta(t, -1.5*1.2-1.5*0.8-1.5-1.0, score, 1e-9)
	assert.Equal(t, []string{
		"preclinical_penalty",
		"high_impact_preclinical_penalty",
		"deep_dive_penalty(-2.5)",
	}, reasons)

	_, overview := s.Score(it)
	assert.Contains(t, overview, "pubtype_penalty(-1.5)")
}

func tierConfig() types.SelectionConfig {
	cfg := types.DefaultSelectionConfig()
	cfg.CoreJournals = []string{"Critical Care Medicine"}
	cfg.Tier1Journals = []string{"Anesthesiology"}
	cfg.Tier2Journals = []string{"JAMA"}
	cfg.Tier3Journals = []string{"Pain"}
	cfg.DomainKeywords = []types.KeywordGroup{
		{Name: DomainICU, Keywords: []string{"sepsis"}},
		{Name: "airway", Keywords: []string{"intubation"}},
	}
	cfg.ClinicalIntentDesign = []string{"randomized"}
	cfg.PainKeywords = []string{"analgesia"}
	cfg.PainContextKeywords = []string{"opioid"}
	return cfg
}

func TestTier(t *testing.T) {
	s := NewScorer(tierConfig(), nil)
	assert.Equal(t, TierCore, s.Tier(pubmedItem("x", "Anesthesiology", "", "")))
	assert.Equal(t, TierHighImpact, s.Tier(pubmedItem("x", "JAMA", "", "")))
	assert.Equal(t, TierPain, s.Tier(pubmedItem("x", "Pain", "", "")))
	assert.Equal(t, TierCoreFallback, s.Tier(pubmedItem("x", "Critical Care Medicine", "", "")))
	assert.Equal(t, TierUnclassified, s.Tier(pubmedItem("x", "Derm Weekly", "", "")))
	assert.Less(t, TierPriority(TierCoreFallback), TierPriority(TierHighImpact))
	assert.Less(t, TierPriority(TierPain), TierPriority(TierUnclassified))
	assert.True(t, SkipsOverviewThreshold(TierCore))
	assert.False(t, SkipsOverviewThreshold(TierCoreFallback))
}

func TestAdmit(t *testing.T) {
	s := NewScorer(tierConfig(), nil)
	admit := func(title, journal string) (bool, []string) {
		it := pubmedItem(title, journal, "", "")
		hay := Haystack(it)
		return s.Admit(it, hay, s.Tier(it), s.Domains(hay))
	}

	ok, why := admit("Sepsis bundles", "JAMA")
	assert.True(t, ok)
	assert.Equal(t, []string{"tier2_domain_or_intent", "domain_signal"}, why)

	ok, why = admit("Intubation checklists", "JAMA")
	assert.False(t, ok, "a non-priority domain needs clinical intent on tier 2")
	assert.Equal(t, []string{"tier2_filtered"}, why)

	ok, _ = admit("Randomized intubation checklists", "JAMA")
	assert.True(t, ok)

	ok, why = admit("Analgesia after knee surgery", "Pain")
	assert.True(t, ok)
	assert.Equal(t, []string{"tier3_pain_signal", "pain_scope"}, why)

	ok, why = admit("Randomized opioid tapering", "Pain")
	assert.True(t, ok)
	assert.Equal(t, []string{"tier3_pain_signal", "clinical_intent", "pain_scope"}, why)

	ok, _ = admit("Chronic back complaints survey", "Pain")
	assert.False(t, ok)

	ok, why = admit("Sepsis in the ward", "Derm Weekly")
	assert.True(t, ok)
	assert.Equal(t, "untiered_domain", why[0])

	ok, _ = admit("Skin care", "Derm Weekly")
	assert.False(t, ok)
}

func TestAdmit_PainDomainContext(t *testing.T) {
	cfg := tierConfig()
	it := pubmedItem("Sepsis and chronic complaints", "Pain", "", "")
	hay := Haystack(it)

	s := NewScorer(cfg, nil)
	ok, _ := s.Admit(it, hay, TierPain, s.Domains(hay))
	assert.False(t, ok)

	cfg.PainAcceptsDomainContext = true
	s = NewScorer(cfg, nil)
	ok, _ = s.Admit(it, hay, TierPain, s.Domains(hay))
	assert.True(t, ok)
}

func TestQuotaDomain(t *testing.T) {
	assert.Equal(t, "general", QuotaDomain(nil))
	assert.Equal(t, "icu_ccm", QuotaDomain([]string{"icu_ccm", "airway"}))
}

func TestParseSelectionConfig_DeepDiveAndTiers(t *testing.T) {
	doc := `
enabled: true
selection:
  tiers:
    tier1_core: [Anesthesiology]
    tier2_high_impact: [JAMA]
    tier3_pain_strict: [Pain]
  domain_keywords:
    icu_ccm: [sepsis]
    anesthesia_periop: [anesthesia]
  clinical_intent_keywords:
    design: [randomized]
    clinical: [mortality]
  pain_strict_keywords: [analgesia]
  pain_requires_keywords: false
  publication_type_exclusions: [Editorial]
  max_per_domain_deep_dive: 2
scoring:
  publication_type_penalty: -2
deep_dive_scoring:
  weights:
    study_design: 4
  study_design_signals: [randomized]
  max_per_domain: 5
`
	cfg, err := ParseSelectionConfig([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"Anesthesiology"}, cfg.Tier1Journals)
	assert.Equal(t, []string{"Anesthesiology"}, cfg.CoreJournals)
	assert.Equal(t, []string{"JAMA"}, cfg.Tier2Journals)
	assert.Equal(t, []string{"Pain"}, cfg.Tier3Journals)
	require.Len(t, cfg.DomainKeywords, 2)
	assert.Equal(t, "icu_ccm", cfg.DomainKeywords[0].Name)
	assert.Equal(t, "anesthesia_periop", cfg.DomainKeywords[1].Name)
	assert.Equal(t, []string{"randomized"}, cfg.ClinicalIntentDesign)
	assert.Equal(t, []string{"mortality"}, cfg.ClinicalIntentClinical)
	assert.True(t, cfg.PainAcceptsDomainContext)
	assert.True(t, cfg.TierGating())

	assert.Equal(t, -2.0, cfg.Scoring.PublicationTypePenalty)
	assert.Equal(t, -1.5, cfg.Scoring.DeepDivePubTypePenalty)
	assert.Equal(t, -1.0, cfg.Scoring.DeepDiveTitlePenalty)

	assert.True(t, cfg.DeepDive.Enabled)
	assert.Equal(t, 4.0, cfg.DeepDive.Weights.StudyDesign)
	assert.Equal(t, 1.5, cfg.DeepDive.Weights.Power)
	assert.Equal(t, []string{"randomized"}, cfg.DeepDive.StudyDesignSignals)
	assert.Equal(t, 2, cfg.DeepDive.MaxPerDomain, "the selection-level cap wins")
}

func TestParseSelectionConfig_DeepDiveDefaults(t *testing.T) {
	cfg, err := ParseSelectionConfig([]byte("enabled: true\ndeep_dive_scoring: {}\n"))
	require.NoError(t, err)
	assert.True(t, cfg.DeepDive.Enabled)
	assert.Equal(t, 3, cfg.DeepDive.MaxPerDomain)
	assert.Equal(t, types.DefaultDeepDiveWeights(), cfg.DeepDive.Weights)

	cfg, err = ParseSelectionConfig([]byte("enabled: true\n"))
	require.NoError(t, err)
	assert.False(t, cfg.DeepDive.Enabled)
	assert.Zero(t, cfg.DeepDive.MaxPerDomain)
	assert.False(t, cfg.TierGating())
}
