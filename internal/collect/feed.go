package collect

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/wrestlepulse/internal/database"
)

const (
	defaultMaxPerFeed = 50
	maxSnippetRunes   = 1000
)

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedParser parses RSS/Atom feeds into news items.
type FeedParser struct {
	maxPerFeed int
	userAgent  string
	client     *http.Client
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser(maxPerFeed int, userAgent string) *FeedParser {
	if maxPerFeed <= 0 {
		maxPerFeed = defaultMaxPerFeed
	}
	return &FeedParser{
		maxPerFeed: maxPerFeed,
		userAgent:  userAgent,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Parse fetches one feed and returns the entries published at or after
// cutoff. Entries without a date are kept.
func (fp *FeedParser) Parse(ctx context.Context, fc FeedConfig, cutoff time.Time) ([]database.ContentItem, error) {
	name := fc.Name
	if name == "" {
		name = extractSourceName(fc.URL)
	}

	parser := gofeed.NewParser()
	parser.Client = fp.client
	if fp.userAgent != "" {
		parser.UserAgent = fp.userAgent
	}

	feed, err := parser.ParseURLWithContext(fc.URL, ctx)
	if err != nil {
		return nil, err
	}

	var items []database.ContentItem
	for _, entry := range feed.Items {
		if len(items) >= fp.maxPerFeed {
			break
		}
		it, ok := parseItem(entry, name)
		if !ok {
			continue
		}
		if !it.PublishedAt.IsZero() && it.PublishedAt.Before(cutoff) {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func parseItem(entry *gofeed.Item, source string) (database.ContentItem, bool) {
	link := entry.Link
	if link == "" {
		link = entry.GUID
	}
	title := strings.TrimSpace(entry.Title)
	if link == "" || title == "" {
		return database.ContentItem{}, false
	}

	it := database.ContentItem{
		Link:   link,
		Title:  stripHTML(title),
		Source: source,
		Kind:   database.KindNews,
	}

	switch {
	case entry.PublishedParsed != nil:
		it.PublishedAt = entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		it.PublishedAt = entry.UpdatedParsed.UTC()
	}

	if entry.Description != "" {
		it.Snippet = truncate(stripHTML(entry.Description), maxSnippetRunes)
	} else if entry.Content != "" {
		it.Snippet = truncate(stripHTML(entry.Content), maxSnippetRunes)
	}
	return it, true
}

// stripHTML returns the text content of an HTML fragment with whitespace
// collapsed.
func stripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
