// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest holds the result of a curation run and writes it out as
// a console table, JSON, or markdown. Rendering the final newsletter is
// left to downstream tools; the markdown here is the plain record a
// rollup can summarize.
package digest

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/budget"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/dedup"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/fileutil"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/health"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/selection"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/state"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// NoContent is rendered for a run that delivered nothing.
const NoContent = "No new content."

const summaryBullets = 5

// Diagnostics gathers the stats every stage of a run reported.
type Diagnostics struct {
	Collected    int                           `json:"collected"`
	Dedup        dedup.Stats                   `json:"dedup"`
	Literature   *selection.Stats              `json:"literature,omitempty"`
	Foamed       *selection.FoamedStats        `json:"foamed,omitempty"`
	Budget       *budget.Diagnostics           `json:"budget,omitempty"`
	HealthFilter health.FilterStats            `json:"health_filter"`
	HealthUpdate health.UpdateStats            `json:"health_update"`
	Outcomes     map[string]types.FetchOutcome `json:"outcomes,omitempty"`
	Prune        state.PruneStats              `json:"prune"`
	StateSaved   bool                          `json:"state_saved"`
	ReadOnly     bool                          `json:"read_only,omitempty"`
	Warnings     []string                      `json:"warnings,omitempty"`
}

// Digest is the outcome of one run.
type Digest struct {
	ReportKey   string           `json:"report_key"`
	Mode        types.ReportMode `json:"mode"`
	GeneratedAt time.Time        `json:"generated_at"`
	Since       time.Time        `json:"since"`

	// Overview lists every item of the run in delivery order.
	Overview []types.Item `json:"overview"`

	// DeepDives is the subset chosen for long-form treatment.
	DeepDives []types.Item `json:"deep_dives"`

	Diagnostics Diagnostics `json:"diagnostics"`
}

// Empty reports whether the run delivered nothing.
func (d Digest) Empty() bool {
	return len(d.Overview) == 0 && len(d.DeepDives) == 0
}

// Delivered returns the overview plus any deep dive missing from it.
func (d Digest) Delivered() []types.Item {
	out := append([]types.Item(nil), d.Overview...)
	seen := make(map[string]bool, len(out))
	for _, it := range out {
		seen[it.Key()] = true
	}
	for _, it := range d.DeepDives {
		if !seen[it.Key()] {
			out = append(out, it)
			seen[it.Key()] = true
		}
	}
	return out
}

// FormatTable writes a fixed-width summary of the digest to w.
func FormatTable(d Digest, w io.Writer) {
	if d.Empty() {
		fmt.Fprintln(w, NoContent)
		return
	}

	fmt.Fprintf(w, "%-4s  %-8s  %-60s  %-24s  %-6s  %s\n",
		"Rank", "Source", "Title", "Channel", "Score", "Flags")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, it := range d.Delivered() {
		fmt.Fprintf(w, "%-4d  %-8s  %-60s  %-24s  %-6.2f  %s\n",
			i+1, it.Source, truncate(it.Title, 60), truncate(it.Channel, 24), it.Score, flags(it))
	}

	fmt.Fprintf(w, "\n%d items, %d deep dives", len(d.Delivered()), len(d.DeepDives))
	if removed := d.Diagnostics.Dedup.Removed(); removed > 0 {
		fmt.Fprintf(w, " (%d filtered before selection)", removed)
	}
	fmt.Fprintln(w)
}

func flags(it types.Item) string {
	var f []string
	if it.DeepDive {
		f = append(f, "deep-dive")
	}
	if it.TopPick {
		f = append(f, "top-pick")
	}
	return strings.Join(f, ",")
}

// FormatJSON writes the digest as indented JSON to w.
func FormatJSON(d Digest, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// Title returns the heading used for the digest.
func (d Digest) Title() string {
	return fmt.Sprintf("%s %s digest, %s", d.ReportKey, d.Mode, d.GeneratedAt.UTC().Format("2006-01-02"))
}

// FormatMarkdown writes the digest as markdown: an executive summary of
// the deep dives and top picks, then the deep dives and the overview
// grouped by source.
func FormatMarkdown(d Digest, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title())
	if d.Empty() {
		b.WriteString(NoContent + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("## Executive Summary\n")
	for _, it := range summaryItems(d) {
		fmt.Fprintf(&b, "- %s\n", it.Title)
	}

	if len(d.DeepDives) > 0 {
		b.WriteString("\n## Deep dives\n")
		for _, it := range d.DeepDives {
			fmt.Fprintf(&b, "\n### %s\n\n", it.Title)
			fmt.Fprintf(&b, "%s\n", meta(it))
			if text := excerpt(it.Text, 600); text != "" {
				fmt.Fprintf(&b, "\n%s\n", text)
			}
		}
	}

	b.WriteString("\n## Overview\n")
	for _, src := range []types.Source{types.SourcePubMed, types.SourceYouTube, types.SourceFoamed} {
		var items []types.Item
		for _, it := range d.Overview {
			if it.Source == src {
				items = append(items, it)
			}
		}
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", sourceHeading(src))
		for _, it := range items {
			star := ""
			if it.TopPick {
				star = "⭐ "
			}
			fmt.Fprintf(&b, "- %s%s (%s)\n", star, link(it), it.Channel)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// summaryItems picks the headline items: top picks, then deep dives, then
// overview order.
func summaryItems(d Digest) []types.Item {
	var out []types.Item
	seen := make(map[string]bool)
	add := func(it types.Item) {
		if len(out) < summaryBullets && !seen[it.Key()] {
			seen[it.Key()] = true
			out = append(out, it)
		}
	}
	for _, it := range d.Overview {
		if it.TopPick {
			add(it)
		}
	}
	for _, it := range d.DeepDives {
		add(it)
	}
	for _, it := range d.Overview {
		add(it)
	}
	return out
}

func sourceHeading(s types.Source) string {
	switch s {
	case types.SourcePubMed:
		return "Literature"
	case types.SourceYouTube:
		return "Videos"
	default:
		return "FOAMed"
	}
}

func link(it types.Item) string {
	if it.URL == "" {
		return it.Title
	}
	return fmt.Sprintf("[%s](%s)", it.Title, it.URL)
}

func meta(it types.Item) string {
	parts := []string{link(it)}
	if it.Channel != "" {
		parts = append(parts, it.Channel)
	}
	if j := it.Journal(); j != "" && j != it.Channel {
		parts = append(parts, j)
	}
	if !it.PublishedAt.IsZero() {
		parts = append(parts, it.PublishedAt.UTC().Format("2006-01-02"))
	}
	return strings.Join(parts, " · ")
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// BaseName returns the file stem for the digest: report-mode-date.
func (d Digest) BaseName() string {
	return fmt.Sprintf("%s-%s-%s", d.ReportKey, d.Mode, d.GeneratedAt.UTC().Format("2006-01-02"))
}

// WriteFiles writes the markdown and JSON renderings into dir atomically
// and returns their paths.
func WriteFiles(dir string, d Digest) (mdPath, jsonPath string, err error) {
	var md, js strings.Builder
	if err := FormatMarkdown(d, &md); err != nil {
		return "", "", fmt.Errorf("rendering markdown: %w", err)
	}
	if err := FormatJSON(d, &js); err != nil {
		return "", "", fmt.Errorf("rendering JSON: %w", err)
	}
	mdPath = filepath.Join(dir, d.BaseName()+".md")
	jsonPath = filepath.Join(dir, d.BaseName()+".json")
	if err := fileutil.WriteAtomic(mdPath, []byte(md.String())); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", mdPath, err)
	}
	if err := fileutil.WriteAtomic(jsonPath, []byte(js.String())); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", jsonPath, err)
	}
	return mdPath, jsonPath, nil
}
