// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package health tracks per-source fetch outcomes and temporarily disables
// feed sources that keep returning 403 or 404.
//
// A source moves from healthy to degrading on its first failure, stays
// degrading while failures of the same kind repeat, and becomes disabled
// once the count for that kind reaches its threshold. Any successful fetch
// returns it to healthy. A disabled source re-enters collection on its own
// once its window has passed.
package health

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/state"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// Classify maps an HTTP status and transport error to a health status.
func Classify(statusCode int, err error) types.HealthStatus {
	if err != nil && statusCode == 0 {
		return types.HealthOtherError
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return types.HealthOKRSS
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized || statusCode == http.StatusPaymentRequired:
		return types.HealthBlocked403
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return types.HealthBlocked404
	default:
		return types.HealthOtherError
	}
}

// Outcome builds a FetchOutcome from a status code and error.
func Outcome(statusCode int, err error) types.FetchOutcome {
	out := types.FetchOutcome{Health: Classify(statusCode, err), StatusCode: statusCode}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// IsDisabled reports whether entry has an active disable window at now.
func IsDisabled(entry *types.SourceHealth, now time.Time) bool {
	return entry != nil && !entry.DisabledUntil.IsZero() && now.Before(entry.DisabledUntil)
}

// UpdateStats summarizes one Update call.
type UpdateStats struct {
	Updated       int      `json:"updated"`
	Recovered     int      `json:"recovered"`
	NewlyDisabled []string `json:"newly_disabled,omitempty"`
}

// Update folds one run's outcomes into the ledger's source health. Counters
// are always maintained; disable windows are only opened when
// cfg.AutoDisable is set. A non-positive threshold or window never
// disables for that failure kind.
func Update(l *state.Ledger, outcomes map[string]types.FetchOutcome, now time.Time, cfg types.HealthConfig) UpdateStats {
	var stats UpdateStats
	if l == nil {
		return stats
	}
	if l.SourceHealth == nil {
		l.SourceHealth = make(map[string]*types.SourceHealth)
	}

	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		outcome := outcomes[name]
		entry := l.SourceHealth[name]
		if entry == nil {
			entry = &types.SourceHealth{}
			l.SourceHealth[name] = entry
		}
		stats.Updated++
		entry.LastCheckedAt = now

		if outcome.Health.IsOK() {
			if entry.ConsecutiveFailures > 0 || !entry.DisabledUntil.IsZero() {
				stats.Recovered++
			}
			entry.ConsecutiveFailures = 0
			entry.DisabledUntil = time.Time{}
			entry.LastHealth = outcome.Health
			entry.LastOKAt = now
			continue
		}

		if entry.LastHealth == outcome.Health {
			entry.ConsecutiveFailures++
		} else {
			entry.ConsecutiveFailures = 1
		}
		entry.LastHealth = outcome.Health

		threshold, days := thresholds(outcome.Health, cfg)
		if !cfg.AutoDisable || threshold <= 0 || days <= 0 {
			continue
		}
		if entry.ConsecutiveFailures >= threshold {
			wasDisabled := IsDisabled(entry, now)
			entry.DisabledUntil = now.Add(time.Duration(days) * 24 * time.Hour)
			if !wasDisabled {
				stats.NewlyDisabled = append(stats.NewlyDisabled, name)
			}
		}
	}
	return stats
}

func thresholds(h types.HealthStatus, cfg types.HealthConfig) (after, days int) {
	switch h {
	case types.HealthBlocked403:
		return cfg.DisableAfter403, cfg.DisableDays403
	case types.HealthBlocked404:
		return cfg.DisableAfter404, cfg.DisableDays404
	}
	return 0, 0
}

// FilterStats reports what FilterDisabled removed.
type FilterStats struct {
	SkippedDisabled int      `json:"skipped_disabled_count"`
	DisabledActive  int      `json:"disabled_active_count"`
	Skipped         []string `json:"skipped,omitempty"`
}

// ErrNoSources is returned by RequireSources when filtering left nothing.
var ErrNoSources = errors.New("health: every source is disabled")

// FilterDisabled drops sources whose disable window is active at now.
// With enabled false the input is returned unchanged but DisabledActive is
// still counted.
func FilterDisabled(sources []types.ChannelSource, l *state.Ledger, now time.Time, enabled bool) ([]types.ChannelSource, FilterStats) {
	var stats FilterStats
	if l != nil {
		for _, entry := range l.SourceHealth {
			if IsDisabled(entry, now) {
				stats.DisabledActive++
			}
		}
	}
	if !enabled || l == nil {
		return append([]types.ChannelSource(nil), sources...), stats
	}

	out := make([]types.ChannelSource, 0, len(sources))
	for _, src := range sources {
		if IsDisabled(l.SourceHealth[src.Name], now) {
			stats.SkippedDisabled++
			stats.Skipped = append(stats.Skipped, src.Name)
			continue
		}
		out = append(out, src)
	}
	return out, stats
}

// RequireSources returns ErrNoSources when all of a non-empty source list
// was filtered out.
func RequireSources(before, after []types.ChannelSource) error {
	if len(before) > 0 && len(after) == 0 {
		return ErrNoSources
	}
	return nil
}

// Status is one row of a health report.
type Status struct {
	Name                string             `json:"name"`
	LastHealth          types.HealthStatus `json:"last_health"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	Disabled            bool               `json:"disabled"`
	DisabledUntil       time.Time          `json:"disabled_until,omitzero"`
	LastOKAt            time.Time          `json:"last_ok,omitzero"`
}

// Summarize lists every tracked source, disabled ones first, then by name.
func Summarize(l *state.Ledger, now time.Time) []Status {
	if l == nil {
		return nil
	}
	out := make([]Status, 0, len(l.SourceHealth))
	for name, entry := range l.SourceHealth {
		if entry == nil {
			continue
		}
		out = append(out, Status{
			Name:                name,
			LastHealth:          entry.LastHealth,
			ConsecutiveFailures: entry.ConsecutiveFailures,
			Disabled:            IsDisabled(entry, now),
			DisabledUntil:       entry.DisabledUntil,
			LastOKAt:            entry.LastOKAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Disabled != out[j].Disabled {
			return out[i].Disabled
		}
		return out[i].Name < out[j].Name
	})
	return out
}
