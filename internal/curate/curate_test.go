// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package curate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/archive"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/collect"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/digest"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/rollup"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/state"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

var runNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeCollector struct {
	mu    sync.Mutex
	seen  []string
	batch collect.Batch
	err   error
}

func (f *fakeCollector) Name() string { return "fake" }

func (f *fakeCollector) Collect(ctx context.Context, sources []types.ChannelSource, since time.Time) (collect.Batch, error) {
	f.mu.Lock()
	for _, s := range sources {
		f.seen = append(f.seen, s.Name)
	}
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return collect.Batch{}, err
	}
	return f.batch, f.err
}

func testChannels() Channels {
	return Channels{
		Sources: []types.ChannelSource{
			{Name: "Crit Care Feed", URL: "https://pubmed.example/rss", Source: types.SourcePubMed},
			{Name: "ICU Talks", URL: "https://yt.example/feed", Source: types.SourceYouTube},
			{Name: "Resus Blog", URL: "https://blog.example/feed", Source: types.SourceFoamed},
			{Name: "Blocked Blog", URL: "https://blocked.example/feed", Source: types.SourceFoamed},
		},
		ChannelTopics: map[string][]string{"ICU Talks": {"icu"}},
		TopicWeights:  map[string]float64{"icu": 1},
	}
}

func testBatch() collect.Batch {
	published := runNow.Add(-2 * time.Hour)
	return collect.Batch{
		Items: []types.Item{
			{
				ID: "111", Source: types.SourcePubMed, Channel: "Crit Care Feed",
				Title: "Fluid strategy in septic shock", URL: "https://pubmed.example/111",
				PublishedAt: published, Text: "A randomized trial.",
				PubMed: &types.PubMedMeta{PMID: "111", Journal: "Crit Care Med"},
			},
			{
				ID: "222", Source: types.SourcePubMed, Channel: "Crit Care Feed",
				Title: "Dermatology outcomes", URL: "https://pubmed.example/222",
				PublishedAt: published, Text: "Skin.",
				PubMed: &types.PubMedMeta{PMID: "222", Journal: "Skin Journal"},
			},
			{
				ID: "vid1", Source: types.SourceYouTube, Channel: "ICU Talks",
				Title: "Ventilator weaning", URL: "https://yt.example/watch?v=vid1",
				PublishedAt: published,
				YouTube:     &types.YouTubeMeta{VideoID: "vid1", Description: "Weaning tips."},
			},
			{
				ID: "vid2", Source: types.SourceYouTube, Channel: "ICU Talks",
				Title: "Silent upload", URL: "https://yt.example/watch?v=vid2",
				PublishedAt: published,
				YouTube:     &types.YouTubeMeta{VideoID: "vid2"},
			},
			{
				ID: "https://blog.example/post", Source: types.SourceFoamed, Channel: "Resus Blog",
				Title: "Vasopressor timing in septic shock", URL: "https://blog.example/post",
				PublishedAt: published, Text: "Early norepinephrine in the ICU.",
				Foamed: &types.FoamedMeta{FeedURL: "https://blog.example/feed"},
			},
		},
		Outcomes: map[string]types.FetchOutcome{
			"Crit Care Feed": {Health: types.HealthOKRSS, StatusCode: 200},
			"ICU Talks":      {Health: types.HealthOKRSS, StatusCode: 200},
			"Resus Blog":     {Health: types.HealthOKRSS, StatusCode: 200},
			"Blocked Blog":   {Health: types.HealthBlocked403, StatusCode: 403},
		},
	}
}

func newRunner(t *testing.T, dir string, c Collector) *Runner {
	t.Helper()
	cfg := types.DefaultRunConfig()
	cfg.ReportKey = "icu"
	cfg.State.Path = filepath.Join(dir, "state.json")
	cfg.RollupPath = filepath.Join(dir, "rollups.json")

	sel := types.DefaultSelectionConfig()
	sel.CoreJournals = []string{"Crit Care Med"}

	return &Runner{
		Config:     cfg,
		Selection:  sel,
		Channels:   testChannels(),
		Collectors: []Collector{c},
		Now:        func() time.Time { return runNow },
	}
}

func keys(items []types.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key())
	}
	return out
}

func TestRun_SelectsRecordsAndArchives(t *testing.T) {
	dir := t.TempDir()
	store, err := archive.Open(filepath.Join(dir, "archive.db"))
	require.NoError(t, err)
	defer store.Close()

	var out bytes.Buffer
	r := newRunner(t, dir, &fakeCollector{batch: testBatch()})
	r.Archive = store
	r.Out = &out

	d, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"pubmed:111", "youtube:vid1", "foamed:https://blog.example/post"}, keys(d.Overview))
	assert.ElementsMatch(t, []string{"pubmed:111", "youtube:vid1"}, keys(d.DeepDives))
	assert.Equal(t, 5, d.Diagnostics.Collected)
	assert.True(t, d.Diagnostics.StateSaved)
	assert.Contains(t, out.String(), "collected 5")

	l := state.Load(r.Config.State.Path, runNow, nil)
	rec, ok := l.Record("icu", "pubmed", "111")
	require.True(t, ok)
	assert.NotEmpty(t, rec.SentOverviewAt)
	assert.NotEmpty(t, rec.SentDeepDiveAt)

	screened, ok := l.Record("icu", "pubmed", "222")
	require.True(t, ok)
	assert.NotEmpty(t, screened.ScreenedAt)
	assert.Empty(t, screened.SentOverviewAt)

	assert.True(t, l.IsProcessed("icu", "youtube", "vid1"))
	assert.False(t, l.IsProcessed("icu", "youtube", "vid2"))

	require.Contains(t, l.SourceHealth, "Blocked Blog")
	assert.Equal(t, 1, l.SourceHealth["Blocked Blog"].ConsecutiveFailures)
	assert.Equal(t, types.HealthOKRSS, l.SourceHealth["Resus Blog"].LastHealth)

	last, ok := l.LastSuccessfulRun("icu", types.ModeDaily)
	require.True(t, ok)
	assert.True(t, last.Equal(runNow))

	runs, err := store.Runs(context.Background(), "icu", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Overview)
}

func TestRun_SecondRunDeliversNothingNew(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, &fakeCollector{batch: testBatch()})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	r.Now = func() time.Time { return runNow.Add(time.Hour) }
	d, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Empty())
	assert.Empty(t, d.Overview)

	var md bytes.Buffer
	require.NoError(t, digest.FormatMarkdown(d, &md))
	assert.Contains(t, md.String(), digest.NoContent)
}

func TestRun_ReadOnlyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, &fakeCollector{batch: testBatch()})
	r.Config.State.ReadOnly = true
	r.Config.Mode = types.ModeMonthly

	d, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, d.Overview)
	assert.True(t, d.Diagnostics.ReadOnly)
	assert.False(t, d.Diagnostics.StateSaved)

	_, err = os.Stat(r.Config.State.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(r.Config.RollupPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_SkipsDisabledSources(t *testing.T) {
	dir := t.TempDir()
	l := state.New(runNow)
	l.SourceHealth["Blocked Blog"] = &types.SourceHealth{
		ConsecutiveFailures: 3,
		LastHealth:          types.HealthBlocked403,
		DisabledUntil:       runNow.Add(48 * time.Hour),
	}
	require.NoError(t, state.Save(filepath.Join(dir, "state.json"), l, runNow))

	fc := &fakeCollector{batch: testBatch()}
	delete(fc.batch.Outcomes, "Blocked Blog")
	var out bytes.Buffer
	r := newRunner(t, dir, fc)
	r.Out = &out

	d, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, fc.seen, "Blocked Blog")
	assert.Equal(t, 1, d.Diagnostics.HealthFilter.SkippedDisabled)
	assert.Contains(t, out.String(), "skipped: Blocked Blog (disabled)")
}

func TestRun_DisablesAfterRepeatedFailures(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := newRunner(t, dir, &fakeCollector{batch: testBatch()})
	r.Out = &out

	for i := 0; i < 3; i++ {
		at := runNow.Add(time.Duration(i) * time.Hour)
		r.Now = func() time.Time { return at }
		_, err := r.Run(context.Background())
		require.NoError(t, err)
	}
	assert.Contains(t, out.String(), "disabled: Blocked Blog")

	l := state.Load(r.Config.State.Path, runNow, nil)
	assert.True(t, l.SourceHealth["Blocked Blog"].DisabledUntil.After(runNow))
}

func TestRun_MonthlyUpdatesRollup(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t, dir, &fakeCollector{batch: testBatch()})
	r.Config.Mode = types.ModeMonthly

	d, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, d.Diagnostics.Warnings)

	l := rollup.Load(r.Config.RollupPath, runNow, nil)
	entries := l.Reports["icu"]
	require.Len(t, entries, 1)
	assert.Equal(t, RollupMonth(runNow, types.ModeMonthly.Lookback()), entries[0].Month)
	assert.NotEmpty(t, entries[0].ExecutiveSummary)
	assert.NotEmpty(t, entries[0].TopItems)
}

func TestRun_MonthlyRollupReadsArchivedMonth(t *testing.T) {
	dir := t.TempDir()
	store, err := archive.Open(filepath.Join(dir, "archive.db"))
	require.NoError(t, err)
	defer store.Close()

	daily := newRunner(t, dir, &fakeCollector{batch: testBatch()})
	daily.Archive = store
	_, err = daily.Run(context.Background())
	require.NoError(t, err)

	monthEnd := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	monthly := newRunner(t, dir, &fakeCollector{})
	monthly.Archive = store
	monthly.Config.Mode = types.ModeMonthly
	monthly.Now = func() time.Time { return monthEnd }
	d, err := monthly.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, d.Overview)

	l := rollup.Load(monthly.Config.RollupPath, monthEnd, nil)
	entries := l.Reports["icu"]
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-03", entries[0].Month)
	var titles []string
	for _, it := range entries[0].TopItems {
		titles = append(titles, it.Title)
	}
	assert.Contains(t, titles, "Fluid strategy in septic shock", "March deliveries feed the March rollup")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(t, t.TempDir(), &fakeCollector{batch: testBatch()})
	_, err := r.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRollupMonth(t *testing.T) {
	now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03", RollupMonth(now, 31*24*time.Hour))
	assert.Equal(t, "2026-03", RollupMonth(now, 24*time.Hour))
}

func TestParseChannels(t *testing.T) {
	data := []byte(`
topic_buckets:
  - name: icu
    weight: 2
    channels:
      - name: ICU Talks
        url: https://yt.example/icu
  - name: airway
    channels:
      - name: ICU Talks
        url: https://yt.example/icu
      - name: Airway Cam
        url: https://yt.example/airway
sources:
  - name: Resus Blog
    feed_url: https://blog.example/feed
    source: foamed
topic_weights:
  airway: 0.5
`)
	c, err := ParseChannels(data)
	require.NoError(t, err)
	require.Len(t, c.Sources, 3)
	assert.Equal(t, types.SourceYouTube, c.Sources[0].Source)
	assert.Equal(t, []string{"icu", "airway"}, c.ChannelTopics["ICU Talks"])
	assert.Equal(t, 2.0, c.TopicWeights["icu"])
	assert.Equal(t, 0.5, c.TopicWeights["airway"])
	assert.Equal(t, []string{"Resus Blog"}, c.Curated())
}

func TestParseChannels_JSONWithTabs(t *testing.T) {
	data := []byte("{\n\t\"sources\": [\n\t\t{\"name\": \"Feed\", \"url\": \"https://x.example\", \"source\": \"pubmed\"}\n\t]\n}")
	c, err := ParseChannels(data)
	require.NoError(t, err)
	require.Len(t, c.Sources, 1)
	assert.Equal(t, types.SourcePubMed, c.Sources[0].Source)
}

func TestParseChannels_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown source", "sources:\n  - name: X\n    url: https://x.example\n    source: rss\n"},
		{"missing url", "sources:\n  - name: X\n    source: foamed\n"},
		{"missing name", "sources:\n  - url: https://x.example\n    source: foamed\n"},
		{"bad yaml", "sources: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChannels([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadChannels_Missing(t *testing.T) {
	_, err := LoadChannels(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
