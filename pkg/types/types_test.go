// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUTC(t *testing.T) {
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in string
		ok bool
	}{
		{"2026-01-02T03:04:05Z", true},
		{"2026-01-02T03:04:05z", true},
		{"2026-01-02T04:04:05+01:00", true},
		{"2026-01-02T03:04:05", true},
		{"2026-01-02 03:04:05", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseUTC(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(want), got.String())
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestParseFeedTime(t *testing.T) {
	got, ok := ParseFeedTime("Fri, 02 Jan 2026 03:04:05 +0000")
	require.True(t, ok)
	assert.Equal(t, "2026-01-02T03:04:05Z", FormatUTC(got))

	got, ok = ParseFeedTime("Fri, 2 Jan 2026 05:04:05 +0200")
	require.True(t, ok)
	assert.Equal(t, "2026-01-02T03:04:05Z", FormatUTC(got))

	_, ok = ParseFeedTime("not a date")
	assert.False(t, ok)
}

func TestFormatUTCAndMonthKey(t *testing.T) {
	assert.Equal(t, "", FormatUTC(time.Time{}))
	ts := time.Date(2026, 3, 31, 23, 30, 0, 500, time.FixedZone("x", -2*3600))
	assert.Equal(t, "2026-04-01T01:30:00Z", FormatUTC(ts))
	assert.Equal(t, "2026-04", MonthKey(ts))
}

func TestParseSource(t *testing.T) {
	src, ok := ParseSource(" PubMed ")
	assert.True(t, ok)
	assert.Equal(t, SourcePubMed, src)

	_, ok = ParseSource("rss")
	assert.False(t, ok)
}

func TestReportModeDefaults(t *testing.T) {
	assert.Equal(t, 24*time.Hour, ModeDaily.Lookback())
	assert.Equal(t, 8, DefaultDetailItems(ModeDaily))
	assert.Equal(t, 16, DefaultDetailItems(ModeMonthly))
	assert.Equal(t, 15, DefaultFoamedMaxOverview(ModeMonthly))
	assert.False(t, ReportMode("hourly").Valid())

	cfg := DefaultRunConfig()
	assert.Equal(t, 24*time.Hour, cfg.EffectiveLookback())
	cfg.Lookback = 3 * time.Hour
	assert.Equal(t, 3*time.Hour, cfg.EffectiveLookback())
}

func TestItemClone_IsDeep(t *testing.T) {
	it := Item{
		ID: "1", Source: SourceFoamed,
		Reasons: []string{"a"},
		Foamed:  &FoamedMeta{Flags: []string{"icu_ccm"}},
	}
	c := it.Clone()
	c.Reasons[0] = "b"
	c.Foamed.Flags[0] = "x"
	assert.Equal(t, "a", it.Reasons[0])
	assert.Equal(t, "icu_ccm", it.Foamed.Flags[0])
	assert.Equal(t, "foamed:1", it.Key())
	assert.Nil(t, CloneItems(nil))
}

func TestSourceHealthJSON(t *testing.T) {
	h := SourceHealth{
		ConsecutiveFailures: 2,
		LastHealth:          HealthBlocked404,
		LastCheckedAt:       time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.JSONEq(t, `{"consecutive_failures":2,"disabled_until_utc":"","last_checked_utc":"2026-01-02T00:00:00Z","last_health":"blocked_404"}`, string(data))

	var back SourceHealth
	require.NoError(t, json.Unmarshal([]byte(`{"consecutive_failures":1,"disabled_until_utc":"garbage","last_ok_utc":"2026-01-01"}`), &back))
	assert.Equal(t, 1, back.ConsecutiveFailures)
	assert.True(t, back.DisabledUntil.IsZero())
	assert.Equal(t, "2026-01-01T00:00:00Z", FormatUTC(back.LastOKAt))
	assert.True(t, HealthOKHTML.IsOK())
	assert.False(t, HealthOtherError.IsOK())
}
