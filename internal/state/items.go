// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"encoding/json"
	"time"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// Skip reasons returned by ShouldSkipPubMed.
const (
	ReasonNew                = "new"
	ReasonSentOverviewRecent = "sent_overview_recent"
	ReasonSentOverviewStale  = "sent_overview_stale"
	ReasonScreenedRecent     = "screened_only_recent"
	ReasonScreenedStale      = "screened_only_stale"
	ReasonNoMeta             = "no_meta"
)

func (l *Ledger) bucket(reportKey, source string) *Bucket {
	if l == nil || l.Reports == nil {
		return nil
	}
	return l.Reports[reportKey][source]
}

func (l *Ledger) ensureBucket(reportKey, source string) *Bucket {
	if l.Reports == nil {
		l.Reports = make(map[string]map[string]*Bucket)
	}
	rep := l.Reports[reportKey]
	if rep == nil {
		rep = make(map[string]*Bucket)
		l.Reports[reportKey] = rep
	}
	b := rep[source]
	if b == nil {
		b = newBucket()
		rep[source] = b
	}
	if b.Processed == nil {
		b.Processed = make(map[string]Record)
	}
	return b
}

// IsProcessed reports whether itemID has been recorded for the report and
// source. A nil ledger has processed nothing.
func (l *Ledger) IsProcessed(reportKey, source, itemID string) bool {
	if itemID == "" {
		return false
	}
	b := l.bucket(reportKey, source)
	if b == nil {
		return false
	}
	_, ok := b.Processed[itemID]
	return ok
}

// Record returns the stored metadata for an item.
func (l *Ledger) Record(reportKey, source, itemID string) (Record, bool) {
	b := l.bucket(reportKey, source)
	if b == nil {
		return Record{}, false
	}
	r, ok := b.Processed[itemID]
	return r, ok
}

// MarkProcessed records itemID, merging meta over any existing record.
// An existing ProcessedAt is kept; otherwise meta's or now is used.
func (l *Ledger) MarkProcessed(reportKey, source, itemID string, meta Record, now time.Time) {
	if l == nil || itemID == "" {
		return
	}
	b := l.ensureBucket(reportKey, source)
	existing := b.Processed[itemID]
	merged := existing
	for _, f := range recordFields {
		if v := *f.get(&meta); v != "" {
			*f.get(&merged) = v
		}
	}
	for k, v := range meta.Extra {
		if merged.Extra == nil {
			merged.Extra = make(map[string]json.RawMessage)
		}
		merged.Extra[k] = v
	}
	switch {
	case existing.ProcessedAt != "":
		merged.ProcessedAt = existing.ProcessedAt
	case meta.ProcessedAt != "":
		merged.ProcessedAt = meta.ProcessedAt
	default:
		merged.ProcessedAt = types.FormatUTC(now)
	}
	b.Processed[itemID] = merged
}

// MarkScreened records that an item was considered but not necessarily sent.
func (l *Ledger) MarkScreened(reportKey, source, itemID string, meta Record, now time.Time) {
	if meta.ScreenedAt == "" {
		meta.ScreenedAt = types.FormatUTC(now)
	}
	l.MarkProcessed(reportKey, source, itemID, meta, now)
}

// MarkSent records that an item went out in the overview, a deep dive, or
// both.
func (l *Ledger) MarkSent(reportKey, source, itemID string, overview, deepDive bool, meta Record, now time.Time) {
	ts := types.FormatUTC(now)
	if existing, ok := l.Record(reportKey, source, itemID); ok && existing.ScreenedAt != "" {
		meta.ScreenedAt = existing.ScreenedAt
	} else if meta.ScreenedAt == "" {
		meta.ScreenedAt = ts
	}
	if overview {
		meta.SentOverviewAt = ts
	}
	if deepDive {
		meta.SentDeepDiveAt = ts
	}
	l.MarkProcessed(reportKey, source, itemID, meta, now)
}

// ShouldSkipPubMed decides whether a literature item should be left out of
// this run. Only items sent in the overview within cooldownHours are
// skipped; screened-but-unsent items are always reconsidered.
func (l *Ledger) ShouldSkipPubMed(reportKey, itemID string, now time.Time, cooldownHours, reconsiderHours int) (bool, string) {
	rec, ok := l.Record(reportKey, string(types.SourcePubMed), itemID)
	if !ok || rec.IsEmpty() {
		return false, ReasonNew
	}

	if sent, ok := types.ParseUTC(rec.SentOverviewAt); ok {
		if cooldownHours > 0 && now.Sub(sent) < time.Duration(cooldownHours)*time.Hour {
			return true, ReasonSentOverviewRecent
		}
		return false, ReasonSentOverviewStale
	}

	screenedAt := rec.ScreenedAt
	if screenedAt == "" {
		screenedAt = rec.ProcessedAt
	}
	if screened, ok := types.ParseUTC(screenedAt); ok {
		if reconsiderHours > 0 && now.Sub(screened) < time.Duration(reconsiderHours)*time.Hour {
			return false, ReasonScreenedRecent
		}
		return false, ReasonScreenedStale
	}
	return false, ReasonNoMeta
}

// lastRunKey joins report key and mode for LastRuns.
func lastRunKey(reportKey string, mode types.ReportMode) string {
	return reportKey + itemKeyDelim + string(mode)
}

// SetLastSuccessfulRun stamps the completion time of a run.
func (l *Ledger) SetLastSuccessfulRun(reportKey string, mode types.ReportMode, now time.Time) {
	if l == nil {
		return
	}
	if l.LastRuns == nil {
		l.LastRuns = make(map[string]string)
	}
	l.LastRuns[lastRunKey(reportKey, mode)] = types.FormatUTC(now)
}

// LastSuccessfulRun returns the last completion time of a run, if any.
func (l *Ledger) LastSuccessfulRun(reportKey string, mode types.ReportMode) (time.Time, bool) {
	if l == nil {
		return time.Time{}, false
	}
	return types.ParseUTC(l.LastRuns[lastRunKey(reportKey, mode)])
}

// Counts returns the number of records per "report/source" bucket.
func (l *Ledger) Counts() map[string]int {
	out := make(map[string]int)
	if l == nil {
		return out
	}
	for rk, rep := range l.Reports {
		for src, b := range rep {
			out[rk+"/"+src] = len(b.Processed)
		}
	}
	return out
}
