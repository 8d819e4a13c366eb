// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect fetches RSS and Atom feeds for YouTube channels, PubMed
// searches, and FOAMed blogs, and turns their entries into Items. Each
// source also yields a FetchOutcome for the health tracker.
package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/health"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/httputil"
	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

const (
	defaultConcurrency  = 4
	defaultMinTextChars = 400
)

// Batch is what one collector returns for a run.
type Batch struct {
	Items []types.Item

	// Outcomes maps source name to its fetch outcome.
	Outcomes map[string]types.FetchOutcome
}

// Options configures a FeedCollector.
type Options struct {
	// Source is the item source this collector produces.
	Source types.Source

	HTTP types.HTTPConfig

	// Concurrency bounds parallel source fetches (default 4).
	Concurrency int

	// FetchArticles fetches the linked page for FOAMed entries whose feed
	// text is shorter than MinTextChars.
	FetchArticles bool
	MinTextChars  int

	// MaxItemsPerSource keeps only the newest N entries per source (0 = all).
	MaxItemsPerSource int
}

// FeedCollector collects one source kind from RSS/Atom feeds.
type FeedCollector struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// NewFeedCollector builds a collector. A nil client gets one with the
// configured timeout. RequestsPerMinute <= 0 disables rate limiting.
func NewFeedCollector(client *http.Client, opts Options, log logrus.FieldLogger) *FeedCollector {
	if client == nil {
		client = &http.Client{Timeout: opts.HTTP.Timeout}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MinTextChars <= 0 {
		opts.MinTextChars = defaultMinTextChars
	}
	limit := rate.Inf
	if opts.HTTP.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.HTTP.RequestsPerMinute) / 60.0)
	}
	return &FeedCollector{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, max(1, opts.Concurrency)),
		log:     logging.OrDiscard(log).WithField("collector", string(opts.Source)),
	}
}

// Name returns the source kind.
func (c *FeedCollector) Name() string {
	return string(c.opts.Source)
}

type sourceResult struct {
	items   []types.Item
	outcome types.FetchOutcome
}

// Collect fetches every source of this collector's kind and returns the
// entries published at or after since, in source order. Per-source
// failures are reported in Outcomes; only context cancellation is an error.
func (c *FeedCollector) Collect(ctx context.Context, sources []types.ChannelSource, since time.Time) (Batch, error) {
	var mine []types.ChannelSource
	for _, src := range sources {
		if src.Source == "" || src.Source == c.opts.Source {
			mine = append(mine, src)
		}
	}

	results := make([]sourceResult, len(mine))
	sem := make(chan struct{}, c.opts.Concurrency)
	var wg sync.WaitGroup
	for i, src := range mine {
		wg.Add(1)
		go func(i int, src types.ChannelSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			items, outcome := c.collectSource(ctx, src, since)
			results[i] = sourceResult{items: items, outcome: outcome}
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Batch{}, fmt.Errorf("collecting %s: %w", c.Name(), err)
	}

	batch := Batch{Outcomes: make(map[string]types.FetchOutcome, len(mine))}
	for i, src := range mine {
		batch.Items = append(batch.Items, results[i].items...)
		batch.Outcomes[src.Name] = results[i].outcome
	}
	return batch, nil
}

func (c *FeedCollector) fetch(ctx context.Context, url string) (*httputil.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return httputil.Fetch(ctx, c.client, url, c.opts.HTTP.UserAgent, c.opts.HTTP.MaxRetries, c.log)
}

func failure(resp *httputil.Response, err error) types.FetchOutcome {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return health.Outcome(status, err)
}

func (c *FeedCollector) collectSource(ctx context.Context, src types.ChannelSource, since time.Time) ([]types.Item, types.FetchOutcome) {
	log := c.log.WithField("source", src.Name)
	endpoint := src.Endpoint()
	if endpoint == "" {
		log.Warn("source has no URL")
		return nil, types.FetchOutcome{Health: types.HealthOtherError, Error: "no url configured"}
	}

	resp, err := c.fetch(ctx, endpoint)
	if err != nil {
		log.WithError(err).Warn("fetch failed")
		return nil, failure(resp, err)
	}
	status := types.HealthOKRSS
	feedURL := endpoint

	_, entries, err := parseFeed(resp.Body)
	if errors.Is(err, ErrNotFeed) && looksLikeHTML(resp.ContentType, resp.Body) {
		discovered := discoverFeed(resp.Body, resp.FinalURL)
		if discovered == "" {
			log.Warn("page has no feed link")
			return nil, types.FetchOutcome{Health: types.HealthOtherError, StatusCode: resp.StatusCode, Error: "no feed link on page"}
		}
		log.WithField("feed", discovered).Debug("discovered feed on page")
		resp, err = c.fetch(ctx, discovered)
		if err != nil {
			log.WithError(err).Warn("discovered feed fetch failed")
			return nil, failure(resp, err)
		}
		_, entries, err = parseFeed(resp.Body)
		status = types.HealthOKHTML
		feedURL = discovered
	}
	if err != nil {
		log.WithError(err).Warn("feed parse failed")
		return nil, types.FetchOutcome{Health: types.HealthOtherError, StatusCode: resp.StatusCode, Error: err.Error()}
	}

	var items []types.Item
	undated := 0
	for _, e := range entries {
		if e.Published.IsZero() {
			undated++
			continue
		}
		if !since.IsZero() && e.Published.Before(since) {
			continue
		}
		items = append(items, c.toItem(src, feedURL, e))
	}
	if undated > 0 {
		log.WithField("count", undated).Debug("skipped undated entries")
	}
	if n := c.opts.MaxItemsPerSource; n > 0 && len(items) > n {
		items = items[:n]
	}
	if c.opts.Source == types.SourceFoamed && c.opts.FetchArticles {
		c.enrichArticles(ctx, items, log)
	}

	log.WithFields(logrus.Fields{"entries": len(entries), "kept": len(items), "health": status}).Info("collected")
	return items, types.FetchOutcome{Health: status, StatusCode: resp.StatusCode}
}

func (c *FeedCollector) toItem(src types.ChannelSource, feedURL string, e entry) types.Item {
	text := htmlToText(e.HTML)
	it := types.Item{
		ID:          e.ID,
		Source:      c.opts.Source,
		Channel:     src.Name,
		Title:       collapse(e.Title),
		URL:         e.Link,
		PublishedAt: e.Published,
		Text:        text,
	}
	switch c.opts.Source {
	case types.SourceYouTube:
		videoID := e.VideoID
		if videoID == "" {
			videoID = strings.TrimPrefix(e.ID, "yt:video:")
		}
		it.ID = videoID
		it.YouTube = &types.YouTubeMeta{VideoID: videoID, Description: text}
	case types.SourcePubMed:
		if e.PMID != "" {
			it.ID = e.PMID
		}
		it.PubMed = &types.PubMedMeta{PMID: e.PMID, Journal: e.Journal, DOI: e.DOI}
	case types.SourceFoamed:
		if it.ID == "" {
			it.ID = e.Link
		}
		it.Foamed = &types.FoamedMeta{FeedURL: feedURL, Excerpt: htmlToText(e.Summary)}
	}
	if it.ID == "" {
		it.ID = e.Link
	}
	return it
}

// enrichArticles replaces short feed text with the readable text of the
// linked page. Failures keep the feed text.
func (c *FeedCollector) enrichArticles(ctx context.Context, items []types.Item, log logrus.FieldLogger) {
	for i := range items {
		if len([]rune(items[i].Text)) >= c.opts.MinTextChars || items[i].URL == "" {
			continue
		}
		resp, err := c.fetch(ctx, items[i].URL)
		if err != nil {
			log.WithError(err).WithField("url", items[i].URL).Debug("article fetch failed")
			continue
		}
		text, err := articleText(resp.Body, resp.FinalURL)
		if err != nil {
			log.WithError(err).WithField("url", items[i].URL).Debug("article extraction failed")
			continue
		}
		if len(text) > len(items[i].Text) {
			items[i].Text = text
		}
	}
}
