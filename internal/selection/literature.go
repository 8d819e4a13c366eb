// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection turns scored candidates into the overview and deep-dive
// lists of a digest. Literature items go through the configurable policy
// in Select; blog and podcast items use the fixed heuristics of
// SelectFoamed.
package selection

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/relevance"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

const (
	topScoresShown   = 5
	reasonCountsKept = 8
)

// Stats are the non-sensitive counters of one literature selection. They
// carry no titles or URLs.
type Stats struct {
	Enabled       bool                `json:"enabled"`
	ConfigPath    string              `json:"config_path,omitempty"`
	AllowlistMode types.AllowlistMode `json:"journal_allowlist_mode,omitempty"`

	Candidates             int `json:"candidates"`
	ExcludedByAllowlist    int `json:"excluded_by_allowlist"`
	ExcludedOfftopic       int `json:"excluded_overview_offtopic"`
	BelowThresholdOverview int `json:"below_threshold_overview"`
	Included               int `json:"included"`
	IncludedCore           int `json:"included_core"`
	IncludedHighImpact     int `json:"included_high_impact"`
	DeepDives              int `json:"deep_dives"`
	DeepDiveHardExcluded   int `json:"deep_dive_hard_excluded"`
	BelowThresholdDeepDive int `json:"below_threshold_deep_dive"`
	DeepDiveQuotaSkipped   int `json:"deep_dive_quota_skipped"`

	MinScore         float64 `json:"min_score"`
	MinScoreOverview float64 `json:"min_score_overview"`
	MinScoreDeepDive float64 `json:"min_score_deep_dive"`
	MaxOverviewItems int     `json:"max_overview_items"`
	MaxDeepDives     int     `json:"max_deep_dives"`
	MaxPerDomain     int     `json:"max_per_domain_deep_dive,omitempty"`

	TopScores            []float64      `json:"top_scores,omitempty"`
	DeepDiveReasonCounts map[string]int `json:"deep_dive_reason_counts,omitempty"`
}

// Result is the outcome of Select. DeepDives is always a subset of
// Included, and both are in rank order. Which included items become deep
// dives follows their deep-dive score when deep-dive scoring is configured.
type Result struct {
	Included  []types.Item
	DeepDives []types.Item
	Stats     Stats
}

// Select applies cfg to literature candidates. Input items are not
// modified; returned items are enriched copies carrying Score, Rank,
// Included, DeepDive, and Reasons. With the policy disabled every
// candidate is returned unchanged as both included and deep dive.
func Select(candidates []types.Item, cfg types.SelectionConfig, log logrus.FieldLogger) Result {
	log = logging.OrDiscard(log)

	if !cfg.Enabled {
		n := len(candidates)
		return Result{
			Included:  types.CloneItems(candidates),
			DeepDives: types.CloneItems(candidates),
			Stats: Stats{
				Enabled:          false,
				ConfigPath:       cfg.Path,
				Candidates:       n,
				Included:         n,
				DeepDives:        n,
				MaxOverviewItems: n,
				MaxDeepDives:     n,
			},
		}
	}

	scorer := relevance.NewScorer(cfg, log)
	hardExclude := relevance.CompilePatterns(cfg.HardExcludeRegex, log)
	hardExcludeDeep := relevance.CompilePatterns(cfg.HardExcludeDeepDiveRegex, log)
	gated := cfg.TierGating()
	deepScoring := cfg.DeepDive.Enabled
	overviewMin := cfg.OverviewThreshold()
	deepMin := cfg.DeepDiveThreshold()

	stats := Stats{
		Enabled:          true,
		ConfigPath:       cfg.Path,
		AllowlistMode:    cfg.AllowlistMode,
		Candidates:       len(candidates),
		MinScore:         cfg.MinScoreToSelect,
		MinScoreOverview: overviewMin,
		MinScoreDeepDive: deepMin,
		MaxOverviewItems: cfg.MaxOverviewItems,
		MaxDeepDives:     cfg.MaxDeepDives,
		MaxPerDomain:     cfg.DeepDive.MaxPerDomain,
	}

	strict := cfg.AllowlistMode == types.AllowlistStrict && len(scorer.Core()) > 0

	pool := make([]scored, 0, len(candidates))
	for _, it := range candidates {
		hay := relevance.Haystack(it)
		if relevance.MatchesAny(hay, hardExclude) {
			stats.ExcludedOfftopic++
			continue
		}
		if strict && !scorer.Core().Matches(it) {
			stats.ExcludedByAllowlist++
			continue
		}

		score, reasons := scorer.Score(it)
		domains := scorer.Domains(hay)

		tier := ""
		if gated {
			tier = scorer.Tier(it)
			ok, why := scorer.Admit(it, hay, tier, domains)
			if !ok {
				stats.ExcludedOfftopic++
				continue
			}
			reasons = append(reasons, why...)
		}
		if !relevance.SkipsOverviewThreshold(tier) && score < overviewMin {
			stats.BelowThresholdOverview++
			continue
		}

		c := scored{
			item:     it.Clone(),
			domain:   relevance.QuotaDomain(domains),
			hardDeep: relevance.MatchesAny(hay, hardExcludeDeep),
		}
		c.item.Score = score
		c.item.Reasons = reasons
		c.item.Tier = tier
		if deepScoring {
			c.deep, c.deepReasons = scorer.DeepDiveScore(it, hay, domains)
			c.item.DeepDiveScore = c.deep
		}
		pool = append(pool, c)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if gated {
			if pa, pb := relevance.TierPriority(a.item.Tier), relevance.TierPriority(b.item.Tier); pa != pb {
				return pa < pb
			}
		}
		if a.item.Score != b.item.Score {
			return a.item.Score > b.item.Score
		}
		return a.deep > b.deep
	})

	stats.TopScores = topScores(pool, topScoresShown)

	limit := cfg.MaxOverviewItems
	if limit > len(pool) {
		limit = len(pool)
	}
	if limit < 0 {
		limit = 0
	}
	overview := pool[:limit]
	for i := range overview {
		overview[i].item.Rank = i + 1
		overview[i].item.Included = true
		if scorer.Core().Matches(overview[i].item) {
			stats.IncludedCore++
		}
		if scorer.HighImpact().Matches(overview[i].item) {
			stats.IncludedHighImpact++
		}
	}

	reasonCounts := make(map[string]int)
	perDomain := make(map[string]int)
	picked := 0
	for _, idx := range deepDiveOrder(overview, deepScoring) {
		if picked >= cfg.MaxDeepDives {
			break
		}
		c := &overview[idx]
		if c.hardDeep {
			stats.DeepDiveHardExcluded++
			continue
		}
		value := c.item.Score
		if deepScoring {
			value = c.deep
		}
		if value < deepMin {
			stats.BelowThresholdDeepDive++
			continue
		}
		if q := cfg.DeepDive.MaxPerDomain; q > 0 && perDomain[c.domain] >= q {
			stats.DeepDiveQuotaSkipped++
			continue
		}
		perDomain[c.domain]++
		picked++
		c.item.DeepDive = true
		for _, r := range c.item.Reasons {
			reasonCounts[r]++
		}
		for _, r := range c.deepReasons {
			reasonCounts[r]++
		}
	}

	included := make([]types.Item, 0, limit)
	var deepDives []types.Item
	for _, c := range overview {
		included = append(included, c.item)
		if c.item.DeepDive {
			deepDives = append(deepDives, c.item.Clone())
		}
	}

	stats.Included = len(included)
	stats.DeepDives = len(deepDives)
	stats.DeepDiveReasonCounts = topReasons(reasonCounts, reasonCountsKept)

	log.WithFields(logrus.Fields{
		"candidates": stats.Candidates,
		"included":   stats.Included,
		"deep_dives": stats.DeepDives,
	}).Debug("literature selection done")

	return Result{Included: included, DeepDives: deepDives, Stats: stats}
}

// scored is a candidate that passed the overview gates.
type scored struct {
	item        types.Item
	deep        float64
	deepReasons []string
	domain      string
	hardDeep    bool
}

// deepDiveOrder returns the indexes of overview in the order deep dives are
// considered: rank order, or deep-dive score then relevance score when deep
// scoring is on.
func deepDiveOrder(overview []scored, deepScoring bool) []int {
	order := make([]int, len(overview))
	for i := range order {
		order[i] = i
	}
	if deepScoring {
		sort.SliceStable(order, func(i, j int) bool {
			a, b := overview[order[i]], overview[order[j]]
			if a.deep != b.deep {
				return a.deep > b.deep
			}
			return a.item.Score > b.item.Score
		})
	}
	return order
}

// topScores returns the n highest scores in pool, rounded to two decimals.
func topScores(pool []scored, n int) []float64 {
	all := make([]float64, len(pool))
	for i, c := range pool {
		all[i] = c.item.Score
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(all)))
	if len(all) > n {
		all = all[:n]
	}
	var out []float64
	for _, v := range all {
		out = append(out, math.Round(v*100)/100)
	}
	return out
}

// topReasons keeps the n most frequent reasons, ties broken by name.
func topReasons(counts map[string]int, n int) map[string]int {
	if len(counts) == 0 {
		return nil
	}
	type kv struct {
		k string
		v int
	}
	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].v != all[j].v {
			return all[i].v > all[j].v
		}
		return all[i].k < all[j].k
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make(map[string]int, len(all))
	for _, e := range all {
		out[e.k] = e.v
	}
	return out
}
