// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/relevance"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// offDomainPatterns flag promotional or housekeeping posts.
var offDomainPatterns = relevance.CompilePatterns([]string{
	`\b(job|jobs|career|vacancy)\b`,
	`sponsor`,
	`advertisement`,
	`promo`,
	`\b(ad|ads)\b`,
	`site update`,
	`tickets?`,
	`conference`,
	`course`,
	`webinar registration`,
	`merch`,
	`store`,
	`shop`,
	`newsletter`,
}, nil)

// domainKeywords are the clinical signal groups; each group that fires
// adds one point.
var domainKeywords = []struct {
	flag     string
	keywords []string
}{
	{"anesthesia_periop", []string{"anesthesia", "anaesthesia", "anesthesiology", "perioperative", "operating room", "or theater", "neuraxial", "epidural", "spinal", "block", "regional anesthesia"}},
	{"icu_ccm", []string{"icu", "intensive care", "critical care", "ventilator", "mechanical ventilation", "ards", "ecmo", "hemodynamic", "haemodynamic", "vasopressor", "norepinephrine", "sedation", "delirium", "crrt"}},
	{"emergency_resus", []string{"resuscitation", "cardiac arrest", "prehospital", "emergency department"}},
	{"airway_resp", []string{"airway", "intubation", "extubation", "ventilation", "respiratory", "oxygenation"}},
	{"infection_sepsis", []string{"sepsis", "infection", "antibiotic", "antimicrobial", "pneumonia"}},
	{"hemodynamics", []string{"shock", "blood pressure", "circulation", "hemodynamic", "haemodynamic", "vasopressor", "inotrope"}},
}

var (
	painKeywords        = []string{"pain", "analgesia", "opioid", "nerve block", "regional block", "fascial plane"}
	painContextKeywords = []string{"ultrasound-guided", "catheter", "perioperative", "postoperative", "perineural"}
	weakMedicalCues     = []string{"icu", "intensive care", "ventilation", "ventilator", "airway", "sepsis", "shock", "anesthesia", "anaesthesia", "analgesia", "block", "resuscitation", "ecmo", "sedation", "vasopressor", "perioperative", "trauma"}
)

const (
	flagPainRegional = "pain_regional"
	curatedBaseScore = 0.3
	defaultTopPicks  = 2
	defaultFoamedMax = 40
)

// FoamedOptions bounds the FOAMed overview.
type FoamedOptions struct {
	MaxOverview int
	MaxTopPicks int

	// CuratedSources lists trusted feed names; items from them are kept on
	// weak cues alone. Empty means every source seen in the input.
	CuratedSources []string

	Now time.Time
}

// FoamedStats are the counters of one FOAMed selection.
type FoamedStats struct {
	Screened            int  `json:"screened_candidates"`
	ExcludedOffDomain   int  `json:"excluded_offdomain"`
	ExcludedPainContext int  `json:"excluded_pain_context"`
	ExcludedNoSignal    int  `json:"foamed_excluded_no_signal"`
	Included            int  `json:"included_overview"`
	TopPicks            int  `json:"top_picks"`
	MaxOverview         int  `json:"max_overview_items"`
	MaxTopPicks         int  `json:"max_top_picks"`
	FallbackUsed        bool `json:"fallback_used"`
	FallbackCandidates  int  `json:"fallback_candidates"`
}

// FoamedResult holds the FOAMed overview and its top picks. TopPicks is a
// prefix of Overview.
type FoamedResult struct {
	Overview []types.Item
	TopPicks []types.Item
	Stats    FoamedStats
}

// domainSignals returns the number of signal groups that fired, the
// flags, and whether a pain mention lacked clinical context.
func domainSignals(hay string) (float64, []string, bool) {
	var (
		flags   []string
		context bool
	)
	for _, g := range domainKeywords {
		if relevance.ContainsAnyKeyword(hay, g.keywords) {
			flags = append(flags, g.flag)
			if g.flag != "infection_sepsis" {
				context = true
			}
		}
	}
	painHit := relevance.ContainsAnyKeyword(hay, painKeywords)
	context = context || relevance.ContainsAnyKeyword(hay, painContextKeywords)

	blocked := false
	if painHit {
		if context {
			flags = append(flags, flagPainRegional)
		} else {
			blocked = true
		}
	}
	return float64(len(flags)), flags, blocked
}

func recencyBonus(published, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	age := now.Sub(published)
	switch {
	case age < 6*time.Hour:
		return 0.6
	case age < 12*time.Hour:
		return 0.4
	case age < 24*time.Hour:
		return 0.2
	}
	return 0
}

// SelectFoamed keeps blog and podcast posts with any clinical signal,
// drops promotional posts and pain posts without clinical context, and
// ranks by signal count plus a recency bonus. When nothing has a signal
// the newest signal-less posts are used instead. The first MaxTopPicks
// overview items are marked as top picks.
func SelectFoamed(items []types.Item, opts FoamedOptions) FoamedResult {
	if opts.MaxOverview <= 0 {
		opts.MaxOverview = defaultFoamedMax
	}
	if opts.MaxTopPicks < 0 {
		opts.MaxTopPicks = defaultTopPicks
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	curated := make(map[string]bool)
	for _, n := range opts.CuratedSources {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			curated[n] = true
		}
	}
	if len(curated) == 0 {
		for _, it := range items {
			if n := strings.ToLower(strings.TrimSpace(it.Channel)); n != "" {
				curated[n] = true
			}
		}
	}

	stats := FoamedStats{
		Screened:    len(items),
		MaxOverview: opts.MaxOverview,
		MaxTopPicks: opts.MaxTopPicks,
	}
	var kept, fallback []types.Item

	for _, it := range items {
		hay := relevance.Haystack(it)
		if strings.TrimSpace(it.Text) == "" {
			hay = strings.ToLower(it.Title)
		}
		if relevance.MatchesAny(hay, offDomainPatterns) {
			stats.ExcludedOffDomain++
			continue
		}

		score, flags, painBlocked := domainSignals(hay)
		weak := relevance.ContainsAnyKeyword(hay, weakMedicalCues)
		defaultInclude := curated[strings.ToLower(strings.TrimSpace(it.Channel))] && weak

		if painBlocked && !defaultInclude {
			stats.ExcludedPainContext++
			stats.ExcludedNoSignal++
			continue
		}
		if score == 0 && !weak {
			stats.ExcludedNoSignal++
			fallback = append(fallback, it.Clone())
			continue
		}

		base := score
		if base == 0 && defaultInclude {
			base = curatedBaseScore
		}
		enriched := it.Clone()
		enriched.Score = math.Round((base+recencyBonus(it.PublishedAt, opts.Now))*1000) / 1000
		if enriched.Foamed == nil {
			enriched.Foamed = &types.FoamedMeta{}
		}
		enriched.Foamed.Flags = flags
		kept = append(kept, enriched)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].PublishedAt.After(kept[j].PublishedAt)
	})

	overview := kept
	if len(overview) > opts.MaxOverview {
		overview = overview[:opts.MaxOverview]
	}
	stats.FallbackCandidates = len(fallback)
	if len(overview) == 0 && len(fallback) > 0 {
		stats.FallbackUsed = true
		sort.SliceStable(fallback, func(i, j int) bool {
			return fallback[i].PublishedAt.After(fallback[j].PublishedAt)
		})
		overview = fallback
		if len(overview) > opts.MaxOverview {
			overview = overview[:opts.MaxOverview]
		}
	}

	var topPicks []types.Item
	for i := range overview {
		overview[i].Included = true
		overview[i].Rank = i + 1
		if i < opts.MaxTopPicks {
			overview[i].TopPick = true
			topPicks = append(topPicks, overview[i].Clone())
		}
	}

	stats.Included = len(overview)
	stats.TopPicks = len(topPicks)
	return FoamedResult{Overview: overview, TopPicks: topPicks, Stats: stats}
}
