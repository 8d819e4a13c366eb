// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"sort"
	"time"
)

// PruneStats reports how many records a prune removed.
type PruneStats struct {
	RemovedByAge int `json:"removed_by_age"`
	RemovedByCap int `json:"removed_by_cap"`
}

// Total returns the number of removed records.
func (s PruneStats) Total() int {
	return s.RemovedByAge + s.RemovedByCap
}

// Prune drops records processed more than retentionDays ago and then caps
// every bucket at maxEntries, removing the oldest first. Records with a
// missing or unparsable timestamp survive the age pass but are the first
// to go in the cap pass. Non-positive limits disable their pass.
func (l *Ledger) Prune(retentionDays, maxEntries int, now time.Time) PruneStats {
	var stats PruneStats
	if l == nil || (retentionDays <= 0 && maxEntries <= 0) {
		return stats
	}
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	for _, rep := range l.Reports {
		for _, b := range rep {
			if b == nil {
				continue
			}
			if retentionDays > 0 {
				for id, rec := range b.Processed {
					ts, ok := rec.ProcessedTime()
					if !ok {
						continue
					}
					if ts.Before(cutoff) {
						delete(b.Processed, id)
						stats.RemovedByAge++
					}
				}
			}
			if maxEntries > 0 && len(b.Processed) > maxEntries {
				stats.RemovedByCap += capBucket(b, maxEntries)
			}
		}
	}
	return stats
}

func capBucket(b *Bucket, maxEntries int) int {
	type entry struct {
		id string
		ts time.Time
	}
	entries := make([]entry, 0, len(b.Processed))
	for id, rec := range b.Processed {
		ts, _ := rec.ProcessedTime()
		entries = append(entries, entry{id: id, ts: ts})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ts.Equal(entries[j].ts) {
			return entries[i].ts.Before(entries[j].ts)
		}
		return entries[i].id < entries[j].id
	})
	excess := len(entries) - maxEntries
	for _, e := range entries[:excess] {
		delete(b.Processed, e.id)
	}
	return excess
}
