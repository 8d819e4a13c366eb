// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup normalizes raw collector output, merges duplicates, and
// drops items the ledger says were already delivered.
package dedup

import (
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/state"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// trackingParams are query parameters stripped from item URLs.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
}

// Stats counts what each stage removed.
type Stats struct {
	Input             int `json:"input"`
	Invalid           int `json:"invalid"`
	DuplicatesByID    int `json:"duplicates_by_id"`
	DuplicatesByTitle int `json:"duplicates_by_title"`
	AlreadyProcessed  int `json:"already_processed"`
	CooldownSkipped   int `json:"cooldown_skipped"`
	Output            int `json:"output"`
}

// Removed returns the total number of dropped items.
func (s Stats) Removed() int {
	return s.Invalid + s.DuplicatesByID + s.DuplicatesByTitle + s.AlreadyProcessed + s.CooldownSkipped
}

// CleanURL drops the fragment and tracking query parameters (utm_* and
// common click IDs). Unparsable input is returned trimmed.
func CleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	u.Fragment = ""
	q := u.Query()
	changed := false
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(k)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// NormalizeTitle lowercases, keeps letters, digits, and spaces, and
// collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Normalize trims text fields, cleans URLs, and converts timestamps to
// UTC. Items with an unknown source, or with neither an ID nor a URL, are
// dropped. An item without an ID takes its cleaned URL as ID.
func Normalize(items []types.Item) ([]types.Item, int) {
	out := make([]types.Item, 0, len(items))
	dropped := 0
	for _, it := range items {
		n := it.Clone()
		n.ID = strings.TrimSpace(n.ID)
		n.Title = strings.Join(strings.Fields(n.Title), " ")
		n.Channel = strings.TrimSpace(n.Channel)
		n.URL = CleanURL(n.URL)
		n.Text = strings.TrimSpace(n.Text)
		if !n.PublishedAt.IsZero() {
			n.PublishedAt = n.PublishedAt.UTC()
		}
		if n.ID == "" {
			n.ID = n.URL
		}
		if !n.Source.Valid() || n.ID == "" {
			dropped++
			continue
		}
		out = append(out, n)
	}
	return out, dropped
}

func idKey(it types.Item) string {
	return "id:" + it.Key()
}

func titleKey(it types.Item) string {
	t := NormalizeTitle(it.Title)
	if t == "" {
		return ""
	}
	return "title:" + t + "|" + strings.ToLower(it.Channel)
}

func doiKey(it types.Item) string {
	if d := strings.ToLower(strings.TrimSpace(it.DOI())); d != "" {
		return "doi:" + d
	}
	return ""
}

// Deduplicate merges items sharing (source, id), a DOI, or a normalized
// (title, channel) pair. The first occurrence wins and absorbs missing
// fields from later ones; the keys of absorbed items then resolve to it too.
func Deduplicate(items []types.Item) ([]types.Item, Stats) {
	stats := Stats{Input: len(items)}
	seen := make(map[string]int)
	var deduped []types.Item

	for _, it := range items {
		keys := []string{idKey(it), doiKey(it)}
		tk := titleKey(it)

		idx, ok := lookup(seen, keys)
		if ok {
			stats.DuplicatesByID++
		} else if idx, ok = lookup(seen, []string{tk}); ok {
			stats.DuplicatesByTitle++
		}
		if ok {
			mergeInto(&deduped[idx], it)
			merged := deduped[idx]
			register(seen, idx, idKey(merged), doiKey(merged), titleKey(merged))
		} else {
			idx = len(deduped)
			deduped = append(deduped, it.Clone())
		}
		register(seen, idx, append(keys, tk)...)
	}
	stats.Output = len(deduped)
	return deduped, stats
}

// register points unclaimed non-empty keys at idx.
func register(seen map[string]int, idx int, keys ...string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, taken := seen[k]; !taken {
			seen[k] = idx
		}
	}
}

func lookup(seen map[string]int, keys []string) (int, bool) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if idx, ok := seen[k]; ok {
			return idx, true
		}
	}
	return 0, false
}

// mergeInto fills empty fields of dst from src and keeps the earliest
// publication time.
func mergeInto(dst *types.Item, src types.Item) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if len(src.Text) > len(dst.Text) {
		dst.Text = src.Text
	}
	if dst.PublishedAt.IsZero() || (!src.PublishedAt.IsZero() && src.PublishedAt.Before(dst.PublishedAt)) {
		dst.PublishedAt = src.PublishedAt
	}
	if dst.PubMed == nil && src.PubMed != nil {
		pm := *src.PubMed
		dst.PubMed = &pm
	}
	if dst.YouTube == nil && src.YouTube != nil {
		yt := *src.YouTube
		dst.YouTube = &yt
	}
	if dst.Foamed == nil && src.Foamed != nil {
		fm := *src.Foamed
		dst.Foamed = &fm
	}
}

// FilterOptions controls FilterProcessed.
type FilterOptions struct {
	ReportKey string
	Now       time.Time

	// LiteratureCooldown switches literature items from plain
	// already-processed filtering to the sent-overview cooldown.
	LiteratureCooldown    bool
	OverviewCooldownHours int
	ReconsiderUnsentHours int
}

// FilterProcessed drops items the ledger has already recorded for the
// report. It returns the kept items and the per-reason counts.
func FilterProcessed(items []types.Item, l *state.Ledger, opts FilterOptions) ([]types.Item, Stats) {
	stats := Stats{Input: len(items)}
	out := make([]types.Item, 0, len(items))
	for _, it := range items {
		if it.Source == types.SourcePubMed && opts.LiteratureCooldown {
			if skip, _ := l.ShouldSkipPubMed(opts.ReportKey, it.ID, opts.Now, opts.OverviewCooldownHours, opts.ReconsiderUnsentHours); skip {
				stats.CooldownSkipped++
				continue
			}
			out = append(out, it)
			continue
		}
		if l.IsProcessed(opts.ReportKey, string(it.Source), it.ID) {
			stats.AlreadyProcessed++
			continue
		}
		out = append(out, it)
	}
	stats.Output = len(out)
	return out, stats
}

// Pipeline runs Normalize, Deduplicate, and FilterProcessed and merges
// their counters.
func Pipeline(items []types.Item, l *state.Ledger, opts FilterOptions) ([]types.Item, Stats) {
	normalized, invalid := Normalize(items)
	deduped, ds := Deduplicate(normalized)
	kept, fs := FilterProcessed(deduped, l, opts)
	return kept, Stats{
		Input:             len(items),
		Invalid:           invalid,
		DuplicatesByID:    ds.DuplicatesByID,
		DuplicatesByTitle: ds.DuplicatesByTitle,
		AlreadyProcessed:  fs.AlreadyProcessed,
		CooldownSkipped:   fs.CooldownSkipped,
		Output:            fs.Output,
	}
}

// SortNewestFirst orders items by publication time, newest first, keeping
// input order on ties.
func SortNewestFirst(items []types.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
