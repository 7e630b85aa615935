package discovery

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/threat-comb/app/article"
)

// FeedParser turns RSS/Atom payloads into candidate items
type FeedParser struct {
	gofeedParser *gofeed.Parser
}

func NewFeedParser() *FeedParser {
	return &FeedParser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Parse returns the feed's items with resolvable URLs, deduplicated by URL
// in feed order.
func (p *FeedParser) Parse(data []byte, feedURL string) ([]item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	seen := make(map[string]bool, len(feed.Items))
	items := make([]item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		normalized, ok := p.normalizeItem(entry, feedURL)
		if !ok || seen[normalized.URL] {
			continue
		}
		seen[normalized.URL] = true
		items = append(items, normalized)
	}
	return items, nil
}

func (p *FeedParser) normalizeItem(entry *gofeed.Item, feedURL string) (item, bool) {
	link := p.coalesce(entry.Link, p.firstHTTP(entry.Links))
	if link == "" && article.IsHTTP(entry.GUID) {
		link = entry.GUID
	}
	link = canonical(feedURL, link)
	if link == "" {
		return item{}, false
	}

	normalized := item{
		URL:      link,
		Title:    strings.TrimSpace(entry.Title),
		Author:   extractAuthor(entry),
		Summary:  strings.TrimSpace(entry.Description),
		FromFeed: true,
	}

	switch {
	case entry.PublishedParsed != nil:
		normalized.PublishedAt = article.FormatTime(*entry.PublishedParsed)
	case entry.UpdatedParsed != nil:
		normalized.PublishedAt = article.FormatTime(*entry.UpdatedParsed)
	default:
		for _, raw := range []string{entry.Published, entry.Updated} {
			if iso, ok := article.NormalizeDate(raw); ok {
				normalized.PublishedAt = iso
				break
			}
		}
	}

	return normalized, true
}

func extractAuthor(entry *gofeed.Item) string {
	if entry.Author != nil && strings.TrimSpace(entry.Author.Name) != "" {
		return strings.TrimSpace(entry.Author.Name)
	}
	for _, a := range entry.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	return ""
}

func (p *FeedParser) firstHTTP(links []string) string {
	for _, l := range links {
		if article.IsHTTP(strings.TrimSpace(l)) || strings.HasPrefix(strings.TrimSpace(l), "/") {
			return strings.TrimSpace(l)
		}
	}
	return ""
}

// coalesce returns the first non-empty string from the provided values
func (p *FeedParser) coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
