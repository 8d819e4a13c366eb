// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// rssDoc covers RSS 2.0 plus the Dublin Core and content extensions PubMed
// and most blogs emit.
type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description string   `xml:"description"`
	Content     string   `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	DCDate      string   `xml:"http://purl.org/dc/elements/1.1/ date"`
	DCSource    string   `xml:"http://purl.org/dc/elements/1.1/ source"`
	DCIDs       []string `xml:"http://purl.org/dc/elements/1.1/ identifier"`
}

// atomDoc covers Atom 1.0 and the YouTube media extensions.
type atomDoc struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	VideoID   string     `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	MediaDesc string     `xml:"http://search.yahoo.com/mrss/ group>description"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

// entry is a feed record before it is mapped onto an Item.
type entry struct {
	ID        string
	Title     string
	Link      string
	Published time.Time
	HTML      string
	Summary   string
	Journal   string
	PMID      string
	DOI       string
	VideoID   string
}

// ErrNotFeed is returned by parseFeed when the document is neither RSS nor
// Atom.
var ErrNotFeed = errors.New("document is not an RSS or Atom feed")

// parseFeed decodes an RSS or Atom document into entries and returns the
// feed title.
func parseFeed(data []byte) (string, []entry, error) {
	root, err := rootElement(data)
	if err != nil {
		return "", nil, ErrNotFeed
	}
	switch root {
	case "rss":
		var doc rssDoc
		if err := xml.Unmarshal(data, &doc); err != nil {
			return "", nil, fmt.Errorf("parsing RSS: %w", err)
		}
		out := make([]entry, 0, len(doc.Channel.Items))
		for _, it := range doc.Channel.Items {
			out = append(out, rssEntry(it))
		}
		return strings.TrimSpace(doc.Channel.Title), out, nil
	case "feed":
		var doc atomDoc
		if err := xml.Unmarshal(data, &doc); err != nil {
			return "", nil, fmt.Errorf("parsing Atom: %w", err)
		}
		out := make([]entry, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			out = append(out, atomToEntry(e))
		}
		return strings.TrimSpace(doc.Title), out, nil
	default:
		return "", nil, ErrNotFeed
	}
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func rssEntry(it rssItem) entry {
	e := entry{
		ID:      strings.TrimSpace(it.GUID),
		Title:   strings.TrimSpace(it.Title),
		Link:    strings.TrimSpace(it.Link),
		HTML:    it.Content,
		Summary: it.Description,
		Journal: strings.TrimSpace(it.DCSource),
	}
	if e.HTML == "" {
		e.HTML = it.Description
	}
	for _, raw := range []string{it.PubDate, it.DCDate} {
		if t, ok := types.ParseFeedTime(raw); ok {
			e.Published = t
			break
		}
	}
	for _, id := range it.DCIDs {
		id = strings.TrimSpace(id)
		switch {
		case strings.HasPrefix(id, "pmid:"):
			e.PMID = strings.TrimPrefix(id, "pmid:")
		case strings.HasPrefix(id, "doi:"):
			e.DOI = strings.TrimPrefix(id, "doi:")
		}
	}
	if e.PMID == "" && strings.HasPrefix(e.ID, "pubmed:") {
		e.PMID = strings.TrimPrefix(e.ID, "pubmed:")
	}
	return e
}

func atomToEntry(a atomEntry) entry {
	e := entry{
		ID:      strings.TrimSpace(a.ID),
		Title:   strings.TrimSpace(a.Title),
		Link:    strings.TrimSpace(a.link()),
		HTML:    a.Content,
		Summary: a.Summary,
		VideoID: strings.TrimSpace(a.VideoID),
	}
	if a.MediaDesc != "" {
		e.Summary = a.MediaDesc
	}
	if e.HTML == "" {
		e.HTML = e.Summary
	}
	for _, raw := range []string{a.Published, a.Updated} {
		if t, ok := types.ParseFeedTime(raw); ok {
			e.Published = t
			break
		}
	}
	return e
}
