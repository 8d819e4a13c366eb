// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

var (
	sampleSizeDirect = regexp.MustCompile(`(?i)\bn\s*[=:]\s*(\d{2,5})`)
	sampleSizeNoun   = regexp.MustCompile(`(?i)(\d{2,5})\s+(patients|participants|subjects|cases|adults|children|neonates|infants)`)
)

// sampleSizeCap bounds the sample-size term at 3x its weight (n >= 1500).
const sampleSizeCap = 3.0

// ExtractSampleSize finds a study size in text: "n=1234" or "n: 1234"
// first, then a number followed by a population noun ("850 patients").
// It returns 0 when neither appears.
func ExtractSampleSize(text string) int {
	for _, re := range []*regexp.Regexp{sampleSizeDirect, sampleSizeNoun} {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// DeepDiveScore rates how much an item deserves a detailed summary: study
// design, publication type, sample size, and clinical signals raise it;
// preclinical and editorial content lower it. hay is Haystack(it) and
// domains the item's domain signals, which only add reasons.
func (s *Scorer) DeepDiveScore(it types.Item, hay string, domains []string) (float64, []string) {
	var (
		score   float64
		reasons []string
	)
	d := s.cfg.DeepDive
	w := d.Weights

	if ContainsAnyKeyword(hay, d.StudyDesignSignals) {
		score += w.StudyDesign
		reasons = append(reasons, "design_signal")
	}

	if pt := matchPubType(it, d.PublicationTypeSignals); pt != "" {
		score += w.PublicationType
		reasons = append(reasons, "pubtype:"+pt)
	}

	n := ExtractSampleSize(hay)
	power := ContainsAnyKeyword(hay, d.PowerSignals)
	switch {
	case n > 0:
		score += math.Min(sampleSizeCap, float64(n)/500) * w.SampleSize
		reasons = append(reasons, "n="+strconv.Itoa(n))
	case power:
		score += w.Power * 0.5
		reasons = append(reasons, "power_hint")
	}
	if power {
		score += w.Power
		reasons = append(reasons, "power_kw")
	}

	if ContainsAnyKeyword(hay, d.PredictiveSignals) {
		score += w.Predictive
		reasons = append(reasons, "predictive_signal")
	}
	if ContainsAnyKeyword(hay, d.ClinicalRelevanceKeywords) {
		score += w.ClinicalRelevance
		reasons = append(reasons, "clinical_relevance")
	}
	if ContainsAnyKeyword(hay, d.DownrankSignals) {
		score += w.Downrank
		reasons = append(reasons, "downrank_signal")
	}
	preclinical := ContainsAnyKeyword(hay, d.PreclinicalSignals)
	if preclinical {
		score += w.Downrank * 1.2
		reasons = append(reasons, "preclinical_penalty")
	}
	if ContainsAnyKeyword(hay, d.EditorialSignals) {
		score += w.Downrank
		reasons = append(reasons, "editorial_penalty")
	}
	if preclinical && s.highImpact.Matches(it) {
		score += w.Downrank * 0.8
		reasons = append(reasons, "high_impact_preclinical_penalty")
	}

	for _, name := range domains {
		reasons = append(reasons, "domain:"+name)
	}

	var penalty float64
	if s.PubTypeExcluded(it) {
		penalty += s.cfg.Scoring.DeepDivePubTypePenalty
	}
	if MatchesAny(it.Title, s.exclude) {
		penalty += s.cfg.Scoring.DeepDiveTitlePenalty
	}
	if penalty != 0 {
		score += penalty
		reasons = append(reasons, fmt.Sprintf("deep_dive_penalty(%s)", FormatWeight(penalty)))
	}
	return score, reasons
}

// matchPubType returns the first signal, in config order, that names one of
// the item's publication types.
func matchPubType(it types.Item, signals []string) string {
	if it.PubMed == nil || len(it.PubMed.PublicationTypes) == 0 {
		return ""
	}
	have := make(map[string]struct{}, len(it.PubMed.PublicationTypes))
	for _, pt := range it.PubMed.PublicationTypes {
		have[strings.ToLower(strings.TrimSpace(pt))] = struct{}{}
	}
	for _, sig := range signals {
		sig = strings.ToLower(strings.TrimSpace(sig))
		if _, ok := have[sig]; ok && sig != "" {
			return sig
		}
	}
	return ""
}
