// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Source identifies which upstream produced an item.
type Source string

const (
	SourceYouTube Source = "youtube"
	SourcePubMed  Source = "pubmed"
	SourceFoamed  Source = "foamed"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceYouTube, SourcePubMed, SourceFoamed:
		return true
	}
	return false
}

// ParseSource maps a free-form source label onto a Source. Unknown labels
// return false.
func ParseSource(s string) (Source, bool) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	return src, src.Valid()
}

// PubMedMeta carries literature-only fields.
type PubMedMeta struct {
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// Journal is the full journal title.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// ISOAbbrev is the ISO journal abbreviation (e.g. "Am J Respir Crit Care Med").
	ISOAbbrev string `json:"journal_iso_abbrev,omitempty" yaml:"journal_iso_abbrev,omitempty"`

	// MedlineTA is the MEDLINE title abbreviation.
	MedlineTA string `json:"journal_medline_ta,omitempty" yaml:"journal_medline_ta,omitempty"`

	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	PublicationTypes []string `json:"publication_types,omitempty" yaml:"publication_types,omitempty"`
}

// YouTubeMeta carries video-only fields.
type YouTubeMeta struct {
	VideoID       string `json:"video_id,omitempty" yaml:"video_id,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	HasTranscript bool   `json:"has_transcript,omitempty" yaml:"has_transcript,omitempty"`
}

// FoamedMeta carries blog and podcast feed fields.
type FoamedMeta struct {
	// FeedURL is the feed the item was read from.
	FeedURL string `json:"feed_url,omitempty" yaml:"feed_url,omitempty"`

	// Excerpt is the feed-provided summary before any article fetch.
	Excerpt string `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`

	// Flags lists the domain signals detected by the FOAMed selector.
	Flags []string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// Item is a single candidate content unit flowing through a run. The core
// fields are shared by every source; exactly one of the source-specific
// blocks is set for items produced by a collector.
type Item struct {
	// ID is unique within Source (video ID, PMID, or canonical URL).
	ID string `json:"id" yaml:"id"`

	Source Source `json:"source" yaml:"source"`

	// Channel is the display name of the channel, journal feed, or blog.
	Channel string `json:"channel" yaml:"channel"`

	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`

	PublishedAt time.Time `json:"published_at" yaml:"published_at"`

	// Text is the transcript, abstract, or article body.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	PubMed  *PubMedMeta  `json:"pubmed,omitempty" yaml:"pubmed,omitempty"`
	YouTube *YouTubeMeta `json:"youtube,omitempty" yaml:"youtube,omitempty"`
	Foamed  *FoamedMeta  `json:"foamed,omitempty" yaml:"foamed,omitempty"`

	// Enrichment set by the selectors. Zero values mean "not scored".
	Score    float64  `json:"score,omitempty" yaml:"score,omitempty"`
	Rank     int      `json:"rank,omitempty" yaml:"rank,omitempty"`
	Included bool     `json:"included,omitempty" yaml:"included,omitempty"`
	DeepDive bool     `json:"deep_dive,omitempty" yaml:"deep_dive,omitempty"`
	TopPick  bool     `json:"top_pick,omitempty" yaml:"top_pick,omitempty"`
	Reasons  []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`

	// Literature-only enrichment, set when tier gating or deep-dive scoring
	// is configured.
	Tier          string  `json:"tier,omitempty" yaml:"tier,omitempty"`
	DeepDiveScore float64 `json:"deep_dive_score,omitempty" yaml:"deep_dive_score,omitempty"`
}

// Key returns "source:id", unique across all sources.
func (it Item) Key() string {
	return string(it.Source) + ":" + it.ID
}

// Journal returns the full journal title for literature items.
func (it Item) Journal() string {
	if it.PubMed == nil {
		return ""
	}
	return it.PubMed.Journal
}

// DOI returns the DOI for literature items.
func (it Item) DOI() string {
	if it.PubMed == nil {
		return ""
	}
	return it.PubMed.DOI
}

// Clone returns a deep copy so selectors can enrich items without
// mutating the caller's slice.
func (it Item) Clone() Item {
	out := it
	out.Reasons = cloneStrings(it.Reasons)
	if it.PubMed != nil {
		pm := *it.PubMed
		pm.PublicationTypes = cloneStrings(it.PubMed.PublicationTypes)
		out.PubMed = &pm
	}
	if it.YouTube != nil {
		yt := *it.YouTube
		out.YouTube = &yt
	}
	if it.Foamed != nil {
		fm := *it.Foamed
		fm.Flags = cloneStrings(it.Foamed.Flags)
		out.Foamed = &fm
	}
	return out
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
