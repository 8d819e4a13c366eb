// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state keeps the durable record of which items each report has
// already delivered, plus per-source feed health. The ledger is a single
// JSON document loaded at the start of a run and saved atomically at the
// end. Loading never fails: missing, empty, or unreadable files yield a
// fresh ledger, and unreadable files are renamed aside first.
package state

import (
	"encoding/json"
	"time"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// CurrentVersion is the ledger schema version written by this package.
const CurrentVersion = 1

// JSON keys of the ledger root.
const (
	keyVersion      = "version"
	keyUpdatedAt    = "updated_at_utc"
	keyReports      = "reports"
	keySourceHealth = "foamed_source_health"
	keyLastRuns     = "last_successful_run_utc"
)

// Record is the metadata kept for one processed item. Timestamps are
// stored as strings so unparsable values survive a round trip; they are
// treated as the oldest possible time when pruning.
type Record struct {
	Channel        string
	ProcessedAt    string
	ScreenedAt     string
	SentDeepDiveAt string
	SentOverviewAt string
	Title          string
	URL            string

	// Extra preserves keys this package does not interpret.
	Extra map[string]json.RawMessage
}

var recordFields = []struct {
	key string
	get func(*Record) *string
}{
	{"channel", func(r *Record) *string { return &r.Channel }},
	{"processed_at_utc", func(r *Record) *string { return &r.ProcessedAt }},
	{"screened_at_utc", func(r *Record) *string { return &r.ScreenedAt }},
	{"sent_deep_dive_at_utc", func(r *Record) *string { return &r.SentDeepDiveAt }},
	{"sent_overview_at_utc", func(r *Record) *string { return &r.SentOverviewAt }},
	{"title", func(r *Record) *string { return &r.Title }},
	{"url", func(r *Record) *string { return &r.URL }},
}

// IsEmpty reports whether the record carries no metadata at all.
func (r Record) IsEmpty() bool {
	for _, f := range recordFields {
		if *f.get(&r) != "" {
			return false
		}
	}
	return len(r.Extra) == 0
}

// ProcessedTime parses ProcessedAt.
func (r Record) ProcessedTime() (time.Time, bool) {
	return types.ParseUTC(r.ProcessedAt)
}

// MarshalJSON writes known fields and Extra as one flat object.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(recordFields)+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = v
	}
	for _, f := range recordFields {
		if v := *f.get(&r); v != "" {
			out[f.key] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat object. Known keys holding non-strings are
// ignored. A non-object value yields an empty record rather than an error.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	for _, f := range recordFields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		delete(raw, f.key)
		var s string
		if json.Unmarshal(v, &s) == nil {
			*f.get(r) = s
		}
	}
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// Bucket holds the processed records of one report and source.
type Bucket struct {
	Processed map[string]Record `json:"processed"`
}

func newBucket() *Bucket {
	return &Bucket{Processed: make(map[string]Record)}
}

// Ledger is the whole persisted state document.
type Ledger struct {
	Version   int
	UpdatedAt string

	// Reports maps report key to source to bucket.
	Reports map[string]map[string]*Bucket

	// SourceHealth maps feed source name to its health record.
	SourceHealth map[string]*types.SourceHealth

	// LastRuns maps "report||mode" to the last successful run time.
	LastRuns map[string]string

	extra map[string]json.RawMessage
}

// New returns an empty ledger stamped with now.
func New(now time.Time) *Ledger {
	return &Ledger{
		Version:      CurrentVersion,
		UpdatedAt:    types.FormatUTC(now),
		Reports:      make(map[string]map[string]*Bucket),
		SourceHealth: make(map[string]*types.SourceHealth),
		LastRuns:     make(map[string]string),
	}
}

// MarshalJSON writes the ledger root. encoding/json sorts map keys, so the
// output is stable across saves.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.extra)+5)
	for k, v := range l.extra {
		out[k] = v
	}
	out[keyVersion] = l.Version
	out[keyUpdatedAt] = l.UpdatedAt
	reports := l.Reports
	if reports == nil {
		reports = map[string]map[string]*Bucket{}
	}
	out[keyReports] = reports
	if len(l.SourceHealth) > 0 {
		out[keySourceHealth] = l.SourceHealth
	}
	if len(l.LastRuns) > 0 {
		out[keyLastRuns] = l.LastRuns
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a ledger root. Only a non-object root is an error;
// any nested value of the wrong shape is dropped so the rest of the
// document still loads.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}
	if root == nil {
		return errNullRoot
	}

	fresh := New(time.Time{})
	fresh.UpdatedAt = ""
	*l = *fresh

	for k, v := range root {
		switch k {
		case keyVersion:
			if json.Unmarshal(v, &l.Version) != nil || l.Version <= 0 {
				l.Version = CurrentVersion
			}
		case keyUpdatedAt:
			_ = json.Unmarshal(v, &l.UpdatedAt)
		case keyReports:
			l.Reports = decodeReports(v)
		case keySourceHealth:
			l.SourceHealth = decodeHealth(v)
		case keyLastRuns:
			l.LastRuns = decodeLastRuns(v)
		default:
			if l.extra == nil {
				l.extra = make(map[string]json.RawMessage)
			}
			l.extra[k] = v
		}
	}
	return nil
}

func decodeReports(data json.RawMessage) map[string]map[string]*Bucket {
	out := make(map[string]map[string]*Bucket)
	var reports map[string]json.RawMessage
	if json.Unmarshal(data, &reports) != nil {
		return out
	}
	for reportKey, rv := range reports {
		var sources map[string]json.RawMessage
		if json.Unmarshal(rv, &sources) != nil {
			continue
		}
		rep := make(map[string]*Bucket, len(sources))
		for source, sv := range sources {
			var raw struct {
				Processed map[string]json.RawMessage `json:"processed"`
			}
			if json.Unmarshal(sv, &raw) != nil {
				continue
			}
			b := newBucket()
			for id, recRaw := range raw.Processed {
				var rec Record
				_ = rec.UnmarshalJSON(recRaw)
				b.Processed[id] = rec
			}
			rep[source] = b
		}
		out[reportKey] = rep
	}
	return out
}

func decodeHealth(data json.RawMessage) map[string]*types.SourceHealth {
	out := make(map[string]*types.SourceHealth)
	var entries map[string]json.RawMessage
	if json.Unmarshal(data, &entries) != nil {
		return out
	}
	for name, raw := range entries {
		var h types.SourceHealth
		if json.Unmarshal(raw, &h) != nil {
			continue
		}
		out[name] = &h
	}
	return out
}

func decodeLastRuns(data json.RawMessage) map[string]string {
	out := make(map[string]string)
	var entries map[string]json.RawMessage
	if json.Unmarshal(data, &entries) != nil {
		return out
	}
	for k, raw := range entries {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out[k] = s
		}
	}
	return out
}
