// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// Journal tiers assigned by Scorer.Tier.
const (
	TierCore               = "tier1_core"
	TierHighImpact         = "tier2_high_impact"
	TierPain               = "tier3_pain_strict"
	TierCoreFallback       = "tier1_core_fallback"
	TierHighImpactFallback = "tier2_high_impact_fallback"
	TierUnclassified       = "unclassified"
)

// Domain names with special meaning to the tier gate.
const (
	DomainAnesthesia = "anesthesia_periop"
	DomainICU        = "icu_ccm"
	DomainEmergency  = "emergency_resus"
)

// generalDomain is the quota key of items that raise no domain signal.
const generalDomain = "general"

// Tier places it in the first matching explicit tier list, then falls back
// to the core and high-impact allowlists.
func (s *Scorer) Tier(it types.Item) string {
	switch {
	case s.tier1.Matches(it):
		return TierCore
	case s.tier2.Matches(it):
		return TierHighImpact
	case s.tier3.Matches(it):
		return TierPain
	case s.core.Matches(it):
		return TierCoreFallback
	case s.highImpact.Matches(it):
		return TierHighImpactFallback
	}
	return TierUnclassified
}

// TierPriority orders tiers for the overview: tier 1 first, unclassified last.
func TierPriority(tier string) int {
	switch tier {
	case TierCore, TierCoreFallback:
		return 0
	case TierHighImpact, TierHighImpactFallback:
		return 1
	case TierPain:
		return 2
	}
	return 3
}

// SkipsOverviewThreshold reports whether items of tier are included
// regardless of their relevance score.
func SkipsOverviewThreshold(tier string) bool {
	return tier == TierCore
}

// Domains returns the names of the domain keyword groups hay matches, in
// config order.
func (s *Scorer) Domains(hay string) []string {
	var out []string
	for _, g := range s.cfg.DomainKeywords {
		if ContainsAnyKeyword(hay, g.Keywords) {
			out = append(out, g.Name)
		}
	}
	return out
}

// QuotaDomain is the deep-dive quota key for an item with domains.
func QuotaDomain(domains []string) string {
	if len(domains) == 0 {
		return generalDomain
	}
	return domains[0]
}

// ClinicalIntent reports whether hay names a study design or a clinical
// question.
func (s *Scorer) ClinicalIntent(hay string) bool {
	return ContainsAnyKeyword(hay, s.cfg.ClinicalIntentDesign) || ContainsAnyKeyword(hay, s.cfg.ClinicalIntentClinical)
}

// Admit applies the tier gate to an item. It returns whether the item may
// enter the overview and the reasons that decided it.
func (s *Scorer) Admit(it types.Item, hay, tier string, domains []string) (bool, []string) {
	intent := s.ClinicalIntent(hay)

	var (
		ok  bool
		why string
	)
	switch tier {
	case TierCore:
		ok, why = true, "tier1_core_default"
	case TierHighImpact, TierHighImpactFallback:
		priority := hasDomain(domains, DomainAnesthesia) || hasDomain(domains, DomainICU) || hasDomain(domains, DomainEmergency)
		ok = priority || (len(domains) > 0 && intent)
		why = pick(ok, "tier2_domain_or_intent", "tier2_filtered")
	case TierPain:
		ok = s.painScope(hay, domains, intent)
		why = pick(ok, "tier3_pain_signal", "tier3_filtered")
	default:
		ok = len(domains) > 0 || intent || s.core.Matches(it) || s.highImpact.Matches(it)
		why = pick(ok, "untiered_domain", "untiered_filtered")
	}

	reasons := []string{why}
	if !ok {
		return false, reasons
	}
	if len(domains) > 0 {
		reasons = append(reasons, "domain_signal")
	}
	if intent {
		reasons = append(reasons, "clinical_intent")
	}
	if tier == TierPain {
		reasons = append(reasons, "pain_scope")
	}
	return true, reasons
}

// painScope admits tier-3 items that name a pain topic, or that pair
// clinical intent with perioperative, ICU, or pain-context wording.
func (s *Scorer) painScope(hay string, domains []string, intent bool) bool {
	if ContainsAnyKeyword(hay, s.cfg.PainKeywords) {
		return true
	}
	periop := hasDomain(domains, DomainAnesthesia) || hasDomain(domains, DomainEmergency)
	icu := hasDomain(domains, DomainICU)
	if intent && (ContainsAnyKeyword(hay, s.cfg.PainContextKeywords) || periop || icu) {
		return true
	}
	if s.cfg.PainAcceptsDomainContext {
		return hasDomain(domains, DomainAnesthesia) || icu
	}
	return false
}

func hasDomain(domains []string, name string) bool {
	for _, d := range domains {
		if d == name {
			return true
		}
	}
	return false
}

func pick(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
