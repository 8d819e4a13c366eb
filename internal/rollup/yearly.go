// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rollup

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/archive"
)

const (
	yearlyTopItems      = 10
	monthBullets        = 3
	coverageNoteMinimum = 6
)

func monthLabel(month string, year int) string {
	if t, ok := parseMonth(month); ok {
		return t.Format("January 2006")
	}
	if month != "" {
		return month
	}
	return fmt.Sprint(year)
}

// NormalizedSummary returns an entry's summary as it should be displayed.
func NormalizedSummary(e Entry) []string {
	return SanitizeSummary(e.ExecutiveSummary, FallbackSummary(e.TopItems))
}

// RenderYearly renders the year-in-review markdown from a year's monthly
// rollups: an executive summary line per month, the ten top items (top
// picks first), and up to three bullets per month.
func RenderYearly(title string, year int, entries []Entry, now time.Time) string {
	sorted := append([]Entry(nil), entries...)
	sortEntries(sorted)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "*%s UTC*\n\n", now.UTC().Format("2006-01-02 15:04"))

	if len(sorted) < coverageNoteMinimum {
		fmt.Fprintf(&b, "Coverage note: only %d monthly editions were available for this year.\n\n", len(sorted))
	}

	b.WriteString("## Executive Summary\n")
	if len(sorted) == 0 {
		b.WriteString("- No monthly rollups were found for this year.\n")
	} else {
		b.WriteString("\n")
		for _, e := range sorted {
			fmt.Fprintf(&b, "- %s: %s\n", monthLabel(e.Month, year), strings.Join(NormalizedSummary(e), "; "))
		}
	}
	b.WriteString("\n## Top 10 items\n\n")

	type ranked struct {
		Item
		label string
	}
	var starred, others []ranked
	for _, e := range sorted {
		label := monthLabel(e.Month, year)
		for _, it := range e.TopItems {
			r := ranked{Item: it, label: label}
			if strings.TrimSpace(r.Title) == "" {
				r.Title = "(untitled)"
			}
			if it.TopPick {
				starred = append(starred, r)
			} else {
				others = append(others, r)
			}
		}
	}
	top := append(starred, others...)
	if len(top) > yearlyTopItems {
		top = top[:yearlyTopItems]
	}
	if len(top) == 0 {
		b.WriteString("- No monthly highlights were captured.\n")
	}
	for _, it := range top {
		prefix := ""
		if it.TopPick {
			prefix = "⭐ "
		}
		var meta []string
		for _, p := range []string{it.Channel, it.Date, it.label} {
			if p != "" {
				meta = append(meta, p)
			}
		}
		suffix := ""
		if len(meta) > 0 {
			suffix = " (" + strings.Join(meta, " · ") + ")"
		}
		if it.URL != "" {
			fmt.Fprintf(&b, "- %s[%s](%s)%s\n", prefix, it.Title, it.URL, suffix)
		} else {
			fmt.Fprintf(&b, "- %s%s%s\n", prefix, it.Title, suffix)
		}
	}

	b.WriteString("\n## By month\n")
	for _, e := range sorted {
		fmt.Fprintf(&b, "### %s\n\n", monthLabel(e.Month, year))
		bullets := NormalizedSummary(e)
		if len(bullets) > monthBullets {
			bullets = bullets[:monthBullets]
		}
		for _, it := range e.TopItems {
			if len(bullets) >= monthBullets {
				break
			}
			bullets = append(bullets, itemBullet(it))
		}
		for _, bl := range bullets {
			fmt.Fprintf(&b, "- %s\n", bl)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func itemBullet(it Item) string {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		title = "(untitled)"
	}
	var parts []string
	for _, p := range []string{strings.TrimSpace(it.Channel), strings.TrimSpace(it.Date)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		title = fmt.Sprintf("%s (%s)", title, strings.Join(parts, ", "))
	}
	if url := strings.TrimSpace(it.URL); url != "" {
		return fmt.Sprintf("[%s](%s)", title, url)
	}
	return title
}

// ItemsFromArchive converts archived deliveries into rollup items, dated by
// publication or, failing that, delivery.
func ItemsFromArchive(entries []archive.Entry) []Item {
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		date := e.PublishedAt
		if date.IsZero() {
			date = e.DeliveredAt
		}
		it := Item{
			Channel: e.Channel,
			Source:  string(e.Source),
			Title:   e.Title,
			TopPick: e.TopPick,
			URL:     e.URL,
		}
		if !date.IsZero() {
			it.Date = date.UTC().Format("2006-01-02")
		}
		out = append(out, it)
	}
	return out
}

// ExportYAML writes the rollups of one report as YAML, oldest month first.
func ExportYAML(w io.Writer, rk string, l *Ledger) error {
	entries := append([]Entry(nil), l.Reports[reportKey(rk)]...)
	sort.SliceStable(entries, func(i, j int) bool { return monthLess(entries[i].Month, entries[j].Month) })

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"report_key": reportKey(rk), "rollups": entries}); err != nil {
		return fmt.Errorf("encoding rollups: %w", err)
	}
	return enc.Close()
}
