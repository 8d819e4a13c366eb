// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"strings"
	"time"
)

// HealthStatus is the classified outcome of one fetch attempt.
type HealthStatus string

const (
	HealthOKRSS      HealthStatus = "ok_rss"
	HealthOKHTML     HealthStatus = "ok_html"
	HealthBlocked403 HealthStatus = "blocked_403"
	HealthBlocked404 HealthStatus = "blocked_404"
	HealthOtherError HealthStatus = "other_error"
)

// IsOK reports whether the status counts as a successful fetch.
func (h HealthStatus) IsOK() bool {
	return strings.HasPrefix(string(h), "ok")
}

// FetchOutcome is what a collector reports per source after a fetch.
type FetchOutcome struct {
	Health     HealthStatus `json:"health"`
	StatusCode int          `json:"status_code,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// SourceHealth is the persisted health record of one source. Timestamps
// are zero when unset.
type SourceHealth struct {
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastHealth          HealthStatus `json:"last_health,omitempty"`
	LastCheckedAt       time.Time    `json:"-"`
	LastOKAt            time.Time    `json:"-"`
	DisabledUntil       time.Time    `json:"-"`
}

// sourceHealthJSON lists fields in key order so saved ledgers diff cleanly.
type sourceHealthJSON struct {
	ConsecutiveFailures int          `json:"consecutive_failures"`
	DisabledUntil       string       `json:"disabled_until_utc"`
	LastCheckedAt       string       `json:"last_checked_utc,omitempty"`
	LastHealth          HealthStatus `json:"last_health,omitempty"`
	LastOKAt            string       `json:"last_ok_utc,omitempty"`
}

// MarshalJSON writes timestamps as RFC 3339 strings. A cleared disable
// window is written as "".
func (h SourceHealth) MarshalJSON() ([]byte, error) {
	return json.Marshal(sourceHealthJSON{
		ConsecutiveFailures: h.ConsecutiveFailures,
		LastHealth:          h.LastHealth,
		LastCheckedAt:       FormatUTC(h.LastCheckedAt),
		LastOKAt:            FormatUTC(h.LastOKAt),
		DisabledUntil:       FormatUTC(h.DisabledUntil),
	})
}

// UnmarshalJSON accepts any timestamp ParseUTC understands. Unparsable
// timestamps are dropped rather than failing the whole record.
func (h *SourceHealth) UnmarshalJSON(data []byte) error {
	var raw sourceHealthJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = SourceHealth{
		ConsecutiveFailures: raw.ConsecutiveFailures,
		LastHealth:          raw.LastHealth,
	}
	h.LastCheckedAt, _ = ParseUTC(raw.LastCheckedAt)
	h.LastOKAt, _ = ParseUTC(raw.LastOKAt)
	h.DisabledUntil, _ = ParseUTC(raw.DisabledUntil)
	return nil
}
