// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// htmlToText flattens an HTML fragment to whitespace-collapsed text. Script
// and style elements are dropped. Plain text passes through unchanged
// apart from whitespace collapsing.
func htmlToText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("p, br, li, h1, h2, h3, h4, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// discoverFeed looks for <link rel="alternate"> RSS or Atom references in an
// HTML page and returns the first one resolved against base.
func discoverFeed(page []byte, base string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	var found string
	doc.Find(`link[rel="alternate"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ, _ := s.Attr("type")
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		if !strings.Contains(typ, "rss") && !strings.Contains(typ, "atom") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		found = baseURL.ResolveReference(ref).String()
		return false
	})
	return found
}

// articleText extracts the main readable text of an article page.
func articleText(page []byte, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(bytes.NewReader(page), u)
	if err != nil {
		return "", err
	}
	return collapse(article.TextContent), nil
}

// looksLikeHTML reports whether a response should be treated as an HTML
// page rather than a feed.
func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<!doctype html") || strings.Contains(head, "<html")
}
