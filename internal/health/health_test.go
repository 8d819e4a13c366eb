// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package health

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/state"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig(after403 int) types.HealthConfig {
	return types.HealthConfig{
		AutoDisable:     true,
		DisableAfter403: after403,
		DisableDays403:  7,
		DisableAfter404: 2,
		DisableDays404:  30,
	}
}

func blocked(h types.HealthStatus) map[string]types.FetchOutcome {
	return map[string]types.FetchOutcome{"source1": {Health: h}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   types.HealthStatus
	}{
		{200, nil, types.HealthOKRSS},
		{403, nil, types.HealthBlocked403},
		{401, nil, types.HealthBlocked403},
		{404, nil, types.HealthBlocked404},
		{410, nil, types.HealthBlocked404},
		{500, nil, types.HealthOtherError},
		{0, errors.New("dial tcp: timeout"), types.HealthOtherError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status, tt.err), "status %d", tt.status)
	}
}

func TestUpdate_ReachesThresholdThenDisables(t *testing.T) {
	l := state.New(now)
	cfg := testConfig(2)

	Update(l, blocked(types.HealthBlocked403), now, cfg)
	entry := l.SourceHealth["source1"]
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.ConsecutiveFailures)
	assert.False(t, IsDisabled(entry, now))

	stats := Update(l, blocked(types.HealthBlocked403), now, cfg)
	assert.True(t, IsDisabled(entry, now))
	assert.True(t, entry.DisabledUntil.After(now))
	assert.Equal(t, now.Add(7*24*time.Hour), entry.DisabledUntil)
	assert.Equal(t, []string{"source1"}, stats.NewlyDisabled)
}

func TestUpdate_NConsecutiveFailuresOfEachKind(t *testing.T) {
	for _, tc := range []struct {
		kind types.HealthStatus
		n    int
		days int
	}{
		{types.HealthBlocked403, 3, 7},
		{types.HealthBlocked404, 2, 30},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			l := state.New(now)
			cfg := testConfig(3)
			for i := 1; i < tc.n; i++ {
				Update(l, blocked(tc.kind), now, cfg)
				assert.False(t, IsDisabled(l.SourceHealth["source1"], now), "failure %d", i)
			}
			Update(l, blocked(tc.kind), now, cfg)
			entry := l.SourceHealth["source1"]
			assert.True(t, IsDisabled(entry, now))
			assert.Equal(t, now.Add(time.Duration(tc.days)*24*time.Hour), entry.DisabledUntil)
			assert.False(t, IsDisabled(entry, entry.DisabledUntil), "window ends at disabled_until")
		})
	}
}

func TestUpdate_KindChangeRestartsCount(t *testing.T) {
	l := state.New(now)
	cfg := testConfig(2)
	Update(l, blocked(types.HealthBlocked403), now, cfg)
	Update(l, blocked(types.HealthBlocked404), now, cfg)
	entry := l.SourceHealth["source1"]
	assert.Equal(t, 1, entry.ConsecutiveFailures)
	assert.False(t, IsDisabled(entry, now))
}

func TestUpdate_OtherErrorsNeverDisable(t *testing.T) {
	l := state.New(now)
	for i := 0; i < 10; i++ {
		Update(l, blocked(types.HealthOtherError), now, testConfig(1))
	}
	entry := l.SourceHealth["source1"]
	assert.Equal(t, 10, entry.ConsecutiveFailures)
	assert.False(t, IsDisabled(entry, now))
}

func TestUpdate_AutoDisableOffOnlyCounts(t *testing.T) {
	l := state.New(now)
	cfg := testConfig(1)
	cfg.AutoDisable = false
	Update(l, blocked(types.HealthBlocked403), now, cfg)
	entry := l.SourceHealth["source1"]
	assert.Equal(t, 1, entry.ConsecutiveFailures)
	assert.False(t, IsDisabled(entry, now))
}

func TestUpdate_OKResetsFailureAndClearsDisable(t *testing.T) {
	l := state.New(now)
	l.SourceHealth["healme"] = &types.SourceHealth{
		ConsecutiveFailures: 4,
		DisabledUntil:       now.Add(10 * 24 * time.Hour),
		LastHealth:          types.HealthBlocked403,
	}

	stats := Update(l, map[string]types.FetchOutcome{"healme": {Health: types.HealthOKRSS}}, now, testConfig(3))
	assert.Equal(t, 1, stats.Recovered)

	entry := l.SourceHealth["healme"]
	assert.Equal(t, 0, entry.ConsecutiveFailures)
	assert.True(t, entry.DisabledUntil.IsZero())
	assert.Equal(t, types.HealthOKRSS, entry.LastHealth)
	assert.Equal(t, now, entry.LastOKAt)
	assert.False(t, IsDisabled(entry, now))

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"disabled_until_utc":""`)
}

func TestFilterDisabled(t *testing.T) {
	l := state.New(now)
	l.SourceHealth["skipme"] = &types.SourceHealth{
		ConsecutiveFailures: 3,
		DisabledUntil:       now.Add(5 * 24 * time.Hour),
	}
	sources := []types.ChannelSource{{Name: "skipme", FeedURL: "http://example.com"}}

	filtered, stats := FilterDisabled(sources, l, now, true)
	assert.Empty(t, filtered)
	assert.Equal(t, 1, stats.SkippedDisabled)
	assert.Equal(t, 1, stats.DisabledActive)
	assert.ErrorIs(t, RequireSources(sources, filtered), ErrNoSources)

	filtered, stats = FilterDisabled(sources, l, now, false)
	assert.Len(t, filtered, 1)
	assert.Equal(t, 0, stats.SkippedDisabled)

	later := now.Add(6 * 24 * time.Hour)
	filtered, _ = FilterDisabled(sources, l, later, true)
	assert.Len(t, filtered, 1, "expired windows re-enable the source")
}

func TestSummarize_DisabledFirst(t *testing.T) {
	l := state.New(now)
	l.SourceHealth["b"] = &types.SourceHealth{LastHealth: types.HealthOKRSS}
	l.SourceHealth["a"] = &types.SourceHealth{LastHealth: types.HealthOKRSS}
	l.SourceHealth["z"] = &types.SourceHealth{DisabledUntil: now.Add(time.Hour)}

	rows := Summarize(l, now)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"z", "a", "b"}, []string{rows[0].Name, rows[1].Name, rows[2].Name})
	assert.True(t, rows[0].Disabled)
}
