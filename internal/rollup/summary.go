// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rollup

import (
	"sort"
	"strings"
)

const (
	fallbackHeadline = "Highlights derived from top items."
	noSummary        = "(no summary captured)"

	// sentenceFlushChars flushes a pooled paragraph into a bullet once it
	// grows past this length.
	sentenceFlushChars = 240
)

// forbiddenSummaryTerms mark run-metadata lines that must never reach a
// rollup summary.
var forbiddenSummaryTerms = []string{
	"metadata",
	"run metadata",
	"attached",
	"lookback window",
	"foamed source health",
	"pubmed items",
	"foamed items",
}

func cleanSummary(lines []string) []string {
	var out []string
	for _, raw := range lines {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "- ") || strings.HasPrefix(text, "* ") {
			text = strings.TrimLeft(text[2:], " \t")
		}
		for text != "" && (text[0] == '*' || text[0] == '_') {
			text = strings.TrimLeft(text[1:], " \t")
		}
		for text != "" && (text[len(text)-1] == '*' || text[len(text)-1] == '_') {
			text = strings.TrimRight(text[:len(text)-1], " \t")
		}
		text = strings.TrimSpace(strings.ReplaceAll(text, "**", ""))
		if text == "" || containsAny(strings.ToLower(text), forbiddenSummaryTerms) {
			continue
		}
		out = append(out, text)
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// SanitizeSummary strips bullet markers and emphasis and drops lines that
// look like run metadata. When nothing survives it returns the cleaned
// fallback, or a generic headline. The result is never empty.
func SanitizeSummary(lines, fallback []string) []string {
	if cleaned := cleanSummary(lines); len(cleaned) > 0 {
		return cleaned
	}
	if fallback == nil {
		fallback = []string{fallbackHeadline}
	}
	if cleaned := cleanSummary(fallback); len(cleaned) > 0 {
		return cleaned
	}
	return []string{fallbackHeadline}
}

// FallbackSummary builds a summary from item titles, top picks first: a
// headline followed by up to two titles.
func FallbackSummary(items []Item) []string {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].TopPick && !items[idx[b]].TopPick
	})
	var titles []string
	for _, i := range idx {
		if t := strings.TrimSpace(items[i].Title); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		return []string{noSummary}
	}
	return append([]string{fallbackHeadline}, titles[:min(2, len(titles))]...)
}

func isExecHeader(header string) bool {
	h := strings.ToLower(header)
	return strings.HasPrefix(h, "executive summary") || strings.HasPrefix(h, "kurzüberblick")
}

// ExtractSummaryBullets pulls up to maxBullets bullets from a digest's
// markdown. Bullets under an "Executive Summary" heading win; otherwise,
// unless requireExec is set, the first bullets or sentence of the
// document are used.
func ExtractSummaryBullets(markdown string, maxBullets int, requireExec bool) []string {
	text := strings.TrimSpace(markdown)
	if maxBullets <= 0 || text == "" {
		return nil
	}

	var (
		bullets   []string
		pool      []string
		inExec    bool
		execFound bool
	)
	flush := func() {
		if len(bullets) > 0 || len(pool) == 0 {
			return
		}
		if s := strings.TrimSpace(strings.Join(pool, " ")); s != "" {
			bullets = append(bullets, s)
		}
	}

scan:
	for _, ln := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(ln)
		if stripped == "" {
			continue
		}
		lower := strings.ToLower(stripped)
		switch {
		case strings.HasPrefix(lower, "## "):
			if isExecHeader(strings.TrimSpace(stripped[3:])) {
				execFound, inExec = true, true
				bullets, pool = nil, nil
				continue
			}
			flush()
			if inExec {
				break scan
			}
			pool = nil
			continue
		case strings.HasPrefix(lower, "### "):
			if inExec {
				flush()
				break scan
			}
			continue
		}
		if !inExec && (requireExec || len(bullets) > 0) {
			continue
		}
		if strings.HasPrefix(stripped, "-") || strings.HasPrefix(stripped, "*") {
			if b := strings.TrimSpace(strings.TrimLeft(stripped, "-* ")); b != "" {
				bullets = append(bullets, b)
				if len(bullets) >= maxBullets {
					break scan
				}
			}
			continue
		}
		pool = append(pool, stripped)
		if len(strings.Join(pool, " ")) > sentenceFlushChars || strings.HasSuffix(stripped, ".") {
			flush()
			pool = nil
			if len(bullets) >= maxBullets {
				break scan
			}
		}
	}
	flush()

	if requireExec && !execFound {
		return nil
	}
	if len(bullets) > maxBullets {
		bullets = bullets[:maxBullets]
	}
	return bullets
}

// DeriveMonthlySummary builds a month's executive summary from the digest
// markdown, falling back to item titles when the digest has no usable
// summary section.
func DeriveMonthlySummary(markdown string, items []Item, maxBullets int) []string {
	exec := ExtractSummaryBullets(markdown, maxBullets, true)
	summary := SanitizeSummary(exec, FallbackSummary(items))
	if maxBullets > 0 && len(summary) > maxBullets {
		summary = summary[:maxBullets]
	}
	if len(summary) == 0 {
		return []string{noSummary}
	}
	return summary
}
