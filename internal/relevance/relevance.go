// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relevance scores literature items against a selection policy:
// title penalties, an abstract-length bonus, journal allowlist bonuses, and
// keyword-track bonuses. Scoring is pure and deterministic; every term
// that fires leaves a human-readable reason.
package relevance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// haystackTextLimit bounds how much body text enters keyword matching.
const haystackTextLimit = 2000

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeJournal lowercases a journal name and strips everything but
// ASCII letters and digits, so "Am J Respir Crit Care Med" and
// "am. j. respir. crit. care med." compare equal.
func NormalizeJournal(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// JournalCandidates returns the names an item may be matched on, in
// order: journal title, ISO abbreviation, MEDLINE abbreviation, then the
// channel with any "PubMed:" prefix removed.
func JournalCandidates(it types.Item) []string {
	var out []string
	if it.PubMed != nil {
		for _, v := range []string{it.PubMed.Journal, it.PubMed.ISOAbbrev, it.PubMed.MedlineTA} {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	ch := strings.TrimSpace(it.Channel)
	if len(ch) >= len("pubmed:") && strings.EqualFold(ch[:len("pubmed:")], "pubmed:") {
		ch = strings.TrimSpace(ch[len("pubmed:"):])
	}
	if ch != "" {
		out = append(out, ch)
	}
	return out
}

// JournalSet is a normalized journal allowlist.
type JournalSet map[string]struct{}

// NewJournalSet normalizes names into a set, dropping empties.
func NewJournalSet(names []string) JournalSet {
	set := make(JournalSet, len(names))
	for _, n := range names {
		if k := NormalizeJournal(n); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// Matches reports whether any journal candidate of it is in the set.
func (s JournalSet) Matches(it types.Item) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range JournalCandidates(it) {
		if _, ok := s[NormalizeJournal(c)]; ok {
			return true
		}
	}
	return false
}

// Haystack builds the lowercased text keyword tracks match against: title,
// journal (or channel), and the first 2000 characters of the body.
func Haystack(it types.Item) string {
	journal := it.Journal()
	if journal == "" {
		journal = it.Channel
	}
	text := it.Text
	if utf8.RuneCountInString(text) > haystackTextLimit {
		text = string([]rune(text)[:haystackTextLimit])
	}
	return strings.ToLower(it.Title + "\n" + journal + "\n" + text)
}

// ContainsAnyKeyword reports whether any non-blank keyword occurs in text,
// case-insensitively, as a substring.
func ContainsAnyKeyword(text string, keywords []string) bool {
	t := strings.ToLower(text)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// CompilePatterns compiles case-insensitive regular expressions. Invalid
// patterns are logged and skipped.
func CompilePatterns(patterns []string, log logrus.FieldLogger) []*regexp.Regexp {
	log = logging.OrDiscard(log)
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			log.WithError(err).WithField("pattern", p).Warn("skipping invalid pattern")
			continue
		}
		out = append(out, re)
	}
	return out
}

// MatchesAny reports whether any pattern matches text.
func MatchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// FormatWeight renders a weight the way reasons show it: always with a
// decimal point, e.g. "-5.0", "0.5", "2.25".
func FormatWeight(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

type track struct {
	name     string
	keywords []string
	bonus    float64
}

// Scorer scores items against one compiled policy. It is safe for
// concurrent use.
type Scorer struct {
	cfg        types.SelectionConfig
	exclude    []*regexp.Regexp
	core       JournalSet
	highImpact JournalSet
	tracks     []track

	tier1, tier2, tier3 JournalSet
	excludedPubTypes    map[string]struct{}
}

// NewScorer compiles cfg. Invalid title patterns are skipped with a warning.
func NewScorer(cfg types.SelectionConfig, log logrus.FieldLogger) *Scorer {
	s := &Scorer{
		cfg:        cfg,
		exclude:    CompilePatterns(cfg.ExcludeTitleRegex, log),
		core:       NewJournalSet(cfg.CoreJournals),
		highImpact: NewJournalSet(cfg.HighImpactJournals),
		tier1:      NewJournalSet(cfg.Tier1Journals),
		tier2:      NewJournalSet(cfg.Tier2Journals),
		tier3:      NewJournalSet(cfg.Tier3Journals),
	}
	if len(cfg.PublicationTypeExclusions) > 0 {
		s.excludedPubTypes = make(map[string]struct{}, len(cfg.PublicationTypeExclusions))
		for _, pt := range cfg.PublicationTypeExclusions {
			if pt = strings.ToLower(strings.TrimSpace(pt)); pt != "" {
				s.excludedPubTypes[pt] = struct{}{}
			}
		}
	}
	for _, t := range cfg.Tracks {
		s.tracks = append(s.tracks, track{name: t.Name, keywords: t.Keywords, bonus: t.Bonus})
	}
	return s
}

// Core returns the normalized core journal set.
func (s *Scorer) Core() JournalSet { return s.core }

// HighImpact returns the normalized high-impact journal set.
func (s *Scorer) HighImpact() JournalSet { return s.highImpact }

// Score returns the relevance score of it and the reasons behind it. Terms
// are evaluated in a fixed order so reasons are stable.
func (s *Scorer) Score(it types.Item) (float64, []string) {
	var (
		score   float64
		reasons []string
	)
	w := s.cfg.Scoring

	if MatchesAny(it.Title, s.exclude) {
		score += w.ExcludeTitlePenalty
		reasons = append(reasons, fmt.Sprintf("exclude_title_penalty(%s)", FormatWeight(w.ExcludeTitlePenalty)))
	}

	if minChars := s.cfg.MinAbstractChars; minChars > 0 && utf8.RuneCountInString(strings.TrimSpace(it.Text)) >= minChars {
		score += w.ReasonableAbstractBonus
		reasons = append(reasons, fmt.Sprintf("abstract_len_bonus(+%s)", FormatWeight(w.ReasonableAbstractBonus)))
	}

	if s.core.Matches(it) {
		score += w.CoreJournalBonus
		reasons = append(reasons, fmt.Sprintf("core_journal(+%s)", FormatWeight(w.CoreJournalBonus)))
	}
	if s.highImpact.Matches(it) {
		score += w.HighImpactJournalBonus
		reasons = append(reasons, fmt.Sprintf("high_impact_journal(+%s)", FormatWeight(w.HighImpactJournalBonus)))
	}

	if len(s.tracks) > 0 {
		hay := Haystack(it)
		for _, t := range s.tracks {
			if ContainsAnyKeyword(hay, t.keywords) {
				score += t.bonus
				reasons = append(reasons, fmt.Sprintf("%s_signal(+%s)", t.name, FormatWeight(t.bonus)))
			}
		}
	}

	if s.PubTypeExcluded(it) {
		score += w.PublicationTypePenalty
		reasons = append(reasons, fmt.Sprintf("pubtype_penalty(%s)", FormatWeight(w.PublicationTypePenalty)))
	}
	return score, reasons
}

// PubTypeExcluded reports whether it carries a publication type listed in
// the policy's exclusions.
func (s *Scorer) PubTypeExcluded(it types.Item) bool {
	if len(s.excludedPubTypes) == 0 || it.PubMed == nil {
		return false
	}
	for _, pt := range it.PubMed.PublicationTypes {
		if _, ok := s.excludedPubTypes[strings.ToLower(strings.TrimSpace(pt))]; ok {
			return true
		}
	}
	return false
}

// Score is a convenience wrapper for one-off scoring.
func Score(it types.Item, cfg types.SelectionConfig) (float64, []string) {
	return NewScorer(cfg, nil).Score(it)
}
