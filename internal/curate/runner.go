// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package curate runs one digest: it loads the ledger, collects from
// healthy sources, filters what was already sent, selects and budgets the
// rest, and records what went out.
package curate

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/archive"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/budget"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/collect"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/dedup"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/digest"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/health"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/rollup"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/selection"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/state"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// rollupTopItems bounds the items kept in a monthly rollup.
const rollupTopItems = 10

// Collector fetches one kind of source.
type Collector interface {
	Name() string
	Collect(ctx context.Context, sources []types.ChannelSource, since time.Time) (collect.Batch, error)
}

// Runner holds everything one run needs. Archive is optional.
type Runner struct {
	Config     types.RunConfig
	Selection  types.SelectionConfig
	Channels   Channels
	Collectors []Collector
	Archive    *archive.Store

	Log logrus.FieldLogger

	// Out receives human-readable progress lines.
	Out io.Writer

	// Now defaults to time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return io.Discard
	}
	return r.Out
}

// Run executes one curation run and returns its digest. Collection,
// ledger, archive, and rollup failures degrade to warnings; only a
// cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context) (digest.Digest, error) {
	cfg := r.Config
	now := r.now()
	log := logging.OrDiscard(r.Log).WithFields(logrus.Fields{"report": cfg.ReportKey, "mode": cfg.Mode})
	w := r.out()

	d := digest.Digest{
		ReportKey:   cfg.ReportKey,
		Mode:        cfg.Mode,
		GeneratedAt: now,
		Since:       now.Add(-cfg.EffectiveLookback()),
		Overview:    []types.Item{},
		DeepDives:   []types.Item{},
	}
	diag := &d.Diagnostics
	diag.ReadOnly = cfg.State.ReadOnly

	ledger := state.Load(cfg.State.Path, now, log)
	diag.Prune = ledger.Prune(cfg.State.RetentionDays, cfg.State.MaxEntriesPerBucket, now)
	if n := diag.Prune.Total(); n > 0 {
		log.WithFields(logrus.Fields{"by_age": diag.Prune.RemovedByAge, "by_cap": diag.Prune.RemovedByCap}).Info("pruned ledger")
	}

	sources, fstats := health.FilterDisabled(r.Channels.Sources, ledger, now, cfg.Health.AutoDisable)
	diag.HealthFilter = fstats
	for _, name := range fstats.Skipped {
		fmt.Fprintf(w, "skipped: %s (disabled)\n", name)
	}
	if err := health.RequireSources(r.Channels.Sources, sources); err != nil {
		log.Warn("every source is disabled")
		diag.Warnings = append(diag.Warnings, err.Error())
	}

	items, outcomes, err := r.collect(ctx, sources, d.Since, log)
	if err != nil {
		return d, err
	}
	diag.Collected = len(items)
	diag.Outcomes = outcomes
	diag.HealthUpdate = health.Update(ledger, outcomes, now, cfg.Health)
	for _, name := range diag.HealthUpdate.NewlyDisabled {
		fmt.Fprintf(w, "disabled: %s\n", name)
		log.WithField("source", name).Warn("source disabled after repeated failures")
	}

	fresh, dstats := dedup.Pipeline(items, ledger, dedup.FilterOptions{
		ReportKey:             cfg.ReportKey,
		Now:                   now,
		LiteratureCooldown:    true,
		OverviewCooldownHours: cfg.State.OverviewCooldownHours,
		ReconsiderUnsentHours: cfg.State.ReconsiderUnsentHours,
	})
	diag.Dedup = dstats

	literature, videos, posts := partition(fresh)
	videos = dropEmptyVideos(videos, log)

	lit := selection.Select(literature, r.Selection, log)
	diag.Literature = &lit.Stats

	foamed := selection.SelectFoamed(posts, selection.FoamedOptions{
		MaxOverview:    cfg.FoamedMaxOverview,
		MaxTopPicks:    cfg.FoamedTopPicks,
		CuratedSources: r.Channels.Curated(),
		Now:            now,
	})
	diag.Foamed = &foamed.Stats

	dedup.SortNewestFirst(videos)
	detail, bdiag := budget.Allocate(budget.Request{
		Items:         videos,
		ChannelTopics: r.Channels.ChannelTopics,
		TopicWeights:  r.Channels.TopicWeights,
		TotalBudget:   cfg.Budget.DetailItems,
		PerChannelCap: cfg.Budget.PerChannelCap,
	}, log)
	diag.Budget = &bdiag
	diag.Warnings = append(diag.Warnings, bdiag.Warnings...)

	detailKeys := make(map[string]bool, len(detail))
	for _, it := range detail {
		detailKeys[it.Key()] = true
	}
	for i := range videos {
		videos[i].DeepDive = detailKeys[videos[i].Key()]
	}

	d.Overview = append(d.Overview, lit.Included...)
	d.Overview = append(d.Overview, videos...)
	d.Overview = append(d.Overview, foamed.Overview...)
	d.DeepDives = append(d.DeepDives, lit.DeepDives...)
	for _, it := range videos {
		if it.DeepDive {
			d.DeepDives = append(d.DeepDives, it)
		}
	}

	fmt.Fprintf(w, "collected %d, new %d, overview %d, deep dives %d\n",
		diag.Collected, len(fresh), len(d.Overview), len(d.DeepDives))

	if cfg.State.ReadOnly {
		log.Info("read-only run, ledger, archive, and rollups left untouched")
		return d, nil
	}

	recordLedger(ledger, cfg.ReportKey, literature, d, now)
	ledger.SetLastSuccessfulRun(cfg.ReportKey, cfg.Mode, now)
	diag.StateSaved = state.SaveBestEffort(cfg.State.Path, ledger, now, log)

	if r.Archive != nil {
		_, err := r.Archive.RecordRun(ctx, archive.Run{
			ReportKey:  cfg.ReportKey,
			Mode:       cfg.Mode,
			StartedAt:  now,
			FinishedAt: r.now(),
			Candidates: len(fresh),
			Overview:   len(d.Overview),
			DeepDives:  len(d.DeepDives),
			Month:      RollupMonth(now, cfg.EffectiveLookback()),
		}, d.Delivered())
		if err != nil {
			log.WithError(err).Warn("archive write failed")
			diag.Warnings = append(diag.Warnings, "archive: "+err.Error())
		}
	}

	if cfg.Mode == types.ModeMonthly {
		if err := r.updateRollup(ctx, d, log); err != nil {
			log.WithError(err).Warn("rollup update failed")
			diag.Warnings = append(diag.Warnings, "rollup: "+err.Error())
		}
	}
	return d, nil
}

type collected struct {
	name  string
	batch collect.Batch
	err   error
}

// collect runs every collector concurrently and merges their output in
// collector order.
func (r *Runner) collect(ctx context.Context, sources []types.ChannelSource, since time.Time, log logrus.FieldLogger) ([]types.Item, map[string]types.FetchOutcome, error) {
	results := make([]collected, len(r.Collectors))
	var wg sync.WaitGroup
	for i, c := range r.Collectors {
		wg.Add(1)
		go func(i int, c Collector) {
			defer wg.Done()
			batch, err := c.Collect(ctx, sources, since)
			results[i] = collected{name: c.Name(), batch: batch, err: err}
		}(i, c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("collecting: %w", err)
	}

	var items []types.Item
	outcomes := make(map[string]types.FetchOutcome)
	for _, res := range results {
		if res.err != nil {
			log.WithError(res.err).WithField("collector", res.name).Warn("collector failed")
			continue
		}
		items = append(items, res.batch.Items...)
		for name, o := range res.batch.Outcomes {
			outcomes[name] = o
		}
	}
	return items, outcomes, nil
}

func partition(items []types.Item) (literature, videos, posts []types.Item) {
	for _, it := range items {
		switch it.Source {
		case types.SourcePubMed:
			literature = append(literature, it)
		case types.SourceYouTube:
			videos = append(videos, it)
		case types.SourceFoamed:
			posts = append(posts, it)
		}
	}
	return literature, videos, posts
}

// dropEmptyVideos removes videos with neither transcript nor description.
func dropEmptyVideos(videos []types.Item, log logrus.FieldLogger) []types.Item {
	out := videos[:0]
	for _, it := range videos {
		desc := ""
		if it.YouTube != nil {
			desc = it.YouTube.Description
		}
		if strings.TrimSpace(it.Text) == "" && strings.TrimSpace(desc) == "" {
			log.WithField("video", it.ID).Debug("skipping video without text")
			continue
		}
		out = append(out, it)
	}
	return out
}

func recordOf(it types.Item) state.Record {
	return state.Record{Channel: it.Channel, Title: it.Title, URL: it.URL}
}

// recordLedger marks every literature candidate screened and every
// delivered item sent.
func recordLedger(l *state.Ledger, reportKey string, literature []types.Item, d digest.Digest, now time.Time) {
	for _, it := range literature {
		l.MarkScreened(reportKey, string(it.Source), it.ID, recordOf(it), now)
	}
	inOverview := make(map[string]bool, len(d.Overview))
	for _, it := range d.Overview {
		inOverview[it.Key()] = true
	}
	deep := make(map[string]bool, len(d.DeepDives))
	for _, it := range d.DeepDives {
		deep[it.Key()] = true
	}
	for _, it := range d.Delivered() {
		l.MarkSent(reportKey, string(it.Source), it.ID, inOverview[it.Key()], deep[it.Key()], recordOf(it), now)
	}
}

// RollupMonth returns the month a run reports on: the month of the middle
// of its window.
func RollupMonth(now time.Time, lookback time.Duration) string {
	return types.MonthKey(now.Add(-lookback / 2))
}

func (r *Runner) updateRollup(ctx context.Context, d digest.Digest, log logrus.FieldLogger) error {
	cfg := r.Config
	if cfg.RollupPath == "" {
		return nil
	}
	month := RollupMonth(d.GeneratedAt, cfg.EffectiveLookback())

	var items []rollup.Item
	if r.Archive != nil {
		top, err := r.Archive.TopItems(ctx, cfg.ReportKey, month, rollupTopItems)
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		items = rollup.ItemsFromArchive(top)
	} else {
		items = topFromDigest(d)
	}

	var md strings.Builder
	if err := digest.FormatMarkdown(d, &md); err != nil {
		return fmt.Errorf("rendering digest: %w", err)
	}
	summary := rollup.DeriveMonthlySummary(md.String(), items, rollup.MaxSummaryBullets)

	l := rollup.Load(cfg.RollupPath, d.GeneratedAt, log)
	if _, err := l.Upsert(cfg.ReportKey, month, types.FormatUTC(d.GeneratedAt), summary, items, d.GeneratedAt); err != nil {
		return err
	}
	if removed := l.Prune(cfg.ReportKey, cfg.RollupMaxMonths, month); removed > 0 {
		log.WithField("removed", removed).Info("pruned rollups")
	}
	return rollup.Save(cfg.RollupPath, l, d.GeneratedAt)
}

// topFromDigest ranks delivered items like the archive does: top picks,
// then deep dives, then score.
func topFromDigest(d digest.Digest) []rollup.Item {
	delivered := d.Delivered()
	sort.SliceStable(delivered, func(i, j int) bool {
		a, b := delivered[i], delivered[j]
		if a.TopPick != b.TopPick {
			return a.TopPick
		}
		if a.DeepDive != b.DeepDive {
			return a.DeepDive
		}
		return a.Score > b.Score
	})
	if len(delivered) > rollupTopItems {
		delivered = delivered[:rollupTopItems]
	}
	out := make([]rollup.Item, 0, len(delivered))
	for _, it := range delivered {
		ri := rollup.Item{Channel: it.Channel, Source: string(it.Source), Title: it.Title, TopPick: it.TopPick, URL: it.URL}
		if !it.PublishedAt.IsZero() {
			ri.Date = it.PublishedAt.UTC().Format("2006-01-02")
		}
		out = append(out, ri)
	}
	return out
}
