// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rollup keeps the monthly digest rollups each report accumulates
// and renders the yearly review from them. The rollup file follows the
// same load and save rules as the processed-items ledger: loading never
// fails, and unreadable files are renamed aside.
package rollup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/fileutil"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

const (
	// MaxSummaryBullets bounds the executive summary kept per month.
	MaxSummaryBullets = 8

	maxBottomLine    = 600
	defaultReportKey = "default"
)

var (
	// ErrEmptyPath is returned by Save when no path is configured.
	ErrEmptyPath = errors.New("rollup path is empty")

	// ErrNoMonth is returned by Upsert without a month.
	ErrNoMonth = errors.New("month is required for a monthly rollup")
)

// Item is one highlighted item of a month. Fields are listed in key order.
type Item struct {
	BottomLine string `json:"bottom_line,omitempty" yaml:"bottom_line,omitempty"`
	Channel    string `json:"channel" yaml:"channel"`
	Date       string `json:"date" yaml:"date"`
	Source     string `json:"source" yaml:"source"`
	Title      string `json:"title" yaml:"title"`
	TopPick    bool   `json:"top_pick" yaml:"top_pick"`
	URL        string `json:"url" yaml:"url"`
}

// Entry is the rollup of one report month.
type Entry struct {
	ExecutiveSummary []string `json:"executive_summary" yaml:"executive_summary"`
	GeneratedAt      string   `json:"generated_at" yaml:"generated_at"`
	Month            string   `json:"month" yaml:"month"`
	TopItems         []Item   `json:"top_items" yaml:"top_items"`
}

// Ledger is the persisted rollup document.
type Ledger struct {
	Reports   map[string][]Entry `json:"reports"`
	UpdatedAt string             `json:"updated_at_utc"`
	Version   int                `json:"version"`
}

// New returns an empty rollup ledger.
func New(now time.Time) *Ledger {
	return &Ledger{Reports: make(map[string][]Entry), UpdatedAt: types.FormatUTC(now), Version: 1}
}

func reportKey(rk string) string {
	if rk = strings.TrimSpace(rk); rk != "" {
		return rk
	}
	return defaultReportKey
}

// Load reads the rollup ledger at path. Missing or empty files give a fresh
// ledger; unreadable ones are quarantined first. Loaded entries are
// sanitized, and a ledger that changed in the process is saved back.
func Load(path string, now time.Time, log logrus.FieldLogger) *Ledger {
	log = logging.OrDiscard(log).WithField("rollups", path)
	if path == "" {
		log.Warn("empty rollup path, starting fresh")
		return New(now)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("no rollup file found, starting fresh")
		return New(now)
	}
	if err == nil && len(bytes.TrimSpace(data)) == 0 {
		log.Warn("rollup file is empty, starting fresh")
		return New(now)
	}

	var l Ledger
	if err == nil {
		err = decode(data, &l)
	}
	if err != nil {
		corrupt, qerr := fileutil.Quarantine(path, now)
		if qerr != nil {
			log.WithError(err).WithField("rename_error", qerr).Error("unreadable rollup file could not be renamed, starting fresh")
		} else {
			log.WithError(err).WithField("moved_to", corrupt).Error("unreadable rollup file renamed, starting fresh")
		}
		return New(now)
	}

	if l.sanitize() {
		if err := Save(path, &l, now); err != nil {
			log.WithError(err).Warn("failed to rewrite sanitized rollups")
		}
	}
	return &l
}

// decode accepts only an object root. Report values that are not lists
// become empty lists; list members that are not objects are dropped.
func decode(data []byte, l *Ledger) error {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}
	if root == nil {
		return errors.New("rollup root is null")
	}
	*l = Ledger{Reports: make(map[string][]Entry), Version: 1}
	_ = json.Unmarshal(root["updated_at_utc"], &l.UpdatedAt)
	if json.Unmarshal(root["version"], &l.Version) != nil || l.Version <= 0 {
		l.Version = 1
	}
	var reports map[string]json.RawMessage
	if json.Unmarshal(root["reports"], &reports) != nil {
		return nil
	}
	for rk, raw := range reports {
		var members []json.RawMessage
		if json.Unmarshal(raw, &members) != nil {
			l.Reports[rk] = []Entry{}
			continue
		}
		entries := make([]Entry, 0, len(members))
		for _, m := range members {
			var e Entry
			if json.Unmarshal(m, &e) == nil {
				entries = append(entries, e)
			}
		}
		l.Reports[rk] = entries
	}
	return nil
}

// sanitize normalizes every entry in place and reports whether anything
// changed.
func (l *Ledger) sanitize() bool {
	changed := false
	for rk, entries := range l.Reports {
		for i, e := range entries {
			clean := sanitizeEntry(e)
			if !entryEqual(clean, e) {
				entries[i] = clean
				changed = true
			}
		}
		l.Reports[rk] = entries
	}
	return changed
}

func sanitizeEntry(e Entry) Entry {
	items := make([]Item, 0, len(e.TopItems))
	for _, it := range e.TopItems {
		items = append(items, SanitizeItem(it))
	}
	summary := SanitizeSummary(e.ExecutiveSummary, FallbackSummary(items))
	if len(summary) > MaxSummaryBullets {
		summary = summary[:MaxSummaryBullets]
	}
	return Entry{
		ExecutiveSummary: summary,
		GeneratedAt:      e.GeneratedAt,
		Month:            strings.TrimSpace(e.Month),
		TopItems:         items,
	}
}

func entryEqual(a, b Entry) bool {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return bytes.Equal(ja, jb)
}

// Save writes the ledger atomically with sorted keys and two-space indent.
func Save(path string, l *Ledger, now time.Time) error {
	if path == "" {
		return ErrEmptyPath
	}
	if l == nil {
		return errors.New("nil rollup ledger")
	}
	l.UpdatedAt = types.FormatUTC(now)
	if l.Reports == nil {
		l.Reports = make(map[string][]Entry)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rollups: %w", err)
	}
	if err := fileutil.WriteAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("writing rollups: %w", err)
	}
	return nil
}

// SanitizeItem trims fields, reduces the date to YYYY-MM-DD when it
// parses, and bounds the bottom line.
func SanitizeItem(it Item) Item {
	out := Item{
		Channel: strings.TrimSpace(it.Channel),
		Source:  strings.TrimSpace(it.Source),
		Title:   strings.TrimSpace(it.Title),
		TopPick: it.TopPick,
		URL:     strings.TrimSpace(it.URL),
		Date:    strings.TrimSpace(it.Date),
	}
	if t, ok := types.ParseUTC(out.Date); ok {
		out.Date = t.Format("2006-01-02")
	}
	if bl := strings.Join(strings.Fields(it.BottomLine), " "); bl != "" {
		if r := []rune(bl); len(r) > maxBottomLine {
			bl = string(r[:maxBottomLine])
		}
		out.BottomLine = bl
	}
	return out
}

// parseMonth reports whether m is a valid YYYY-MM month.
func parseMonth(m string) (time.Time, bool) {
	t, err := time.Parse("2006-01", strings.TrimSpace(m))
	return t, err == nil
}

// monthLess orders valid months chronologically before invalid ones,
// which sort lexically.
func monthLess(a, b string) bool {
	ta, okA := parseMonth(a)
	tb, okB := parseMonth(b)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return monthLess(entries[i].Month, entries[j].Month) })
}

// Upsert replaces or adds the rollup of month for a report and keeps the
// report's entries in month order.
func (l *Ledger) Upsert(rk, month, generatedAt string, summary []string, items []Item, now time.Time) (Entry, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return Entry{}, ErrNoMonth
	}
	rk = reportKey(rk)
	if l.Reports == nil {
		l.Reports = make(map[string][]Entry)
	}

	clean := make([]Item, 0, len(items))
	for _, it := range items {
		if it == (Item{}) {
			continue
		}
		clean = append(clean, SanitizeItem(it))
	}
	exec := SanitizeSummary(summary, FallbackSummary(clean))
	if len(exec) > MaxSummaryBullets {
		exec = exec[:MaxSummaryBullets]
	}
	entry := Entry{ExecutiveSummary: exec, GeneratedAt: generatedAt, Month: month, TopItems: clean}

	entries := l.Reports[rk]
	replaced := false
	for i := range entries {
		if entries[i].Month == month {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	sortEntries(entries)
	l.Reports[rk] = entries
	l.UpdatedAt = types.FormatUTC(now)
	return entry, nil
}

// Prune keeps the newest maxMonths distinct months of a report plus
// keepMonth. Entries without a month are kept at the end. maxMonths <= 0
// disables pruning.
func (l *Ledger) Prune(rk string, maxMonths int, keepMonth string) int {
	if l == nil || maxMonths <= 0 {
		return 0
	}
	rk = reportKey(rk)
	entries := l.Reports[rk]
	if len(entries) == 0 {
		return 0
	}

	var dated, undated []Entry
	for _, e := range entries {
		if strings.TrimSpace(e.Month) != "" {
			dated = append(dated, e)
		} else {
			undated = append(undated, e)
		}
	}
	sortEntries(dated)

	var order []string
	seen := make(map[string]bool)
	for _, e := range dated {
		m := strings.TrimSpace(e.Month)
		if !seen[m] {
			seen[m] = true
			order = append(order, m)
		}
	}
	keep := make(map[string]bool)
	for _, m := range order[max(0, len(order)-maxMonths):] {
		keep[m] = true
	}
	if km := strings.TrimSpace(keepMonth); km != "" {
		keep[km] = true
	}

	kept := make([]Entry, 0, len(entries))
	for _, e := range dated {
		if keep[strings.TrimSpace(e.Month)] {
			kept = append(kept, e)
		}
	}
	kept = append(kept, undated...)
	removed := len(entries) - len(kept)
	l.Reports[rk] = kept
	return removed
}

// ForYear returns a report's entries whose month falls in year, in month
// order.
func (l *Ledger) ForYear(rk string, year int) []Entry {
	if l == nil {
		return nil
	}
	prefix := fmt.Sprintf("%04d-", year)
	var out []Entry
	for _, e := range l.Reports[rk] {
		if strings.HasPrefix(e.Month, prefix) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
