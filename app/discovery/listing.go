package discovery

import (
	"bytes"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/threat-comb/app/article"
)

const (
	maxFeedCandidates = 50
	maxFeedProbes     = 15
)

// listingLinks returns same-domain anchors from a listing page that look
// like articles, in page order without duplicates.
func listingLinks(data []byte, pageURL string, allowUnknown bool) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		link := canonical(pageURL, s.AttrOr("href", ""))
		if link == "" || seen[link] {
			return
		}
		if !article.SameDomain(pageURL, link) {
			return
		}
		if !IsProbablyArticleURL(link, pageURL, allowUnknown) {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}

// feedLinks finds feed URLs advertised on a directory page: alternate link
// tags first, then anchors that mention rss, feed or atom. Same-domain
// candidates come first and the list is capped.
func feedLinks(data []byte, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	var found []string
	seen := make(map[string]bool)
	add := func(href string) {
		link := canonical(pageURL, href)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		found = append(found, link)
	}

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		typ := strings.ToLower(s.AttrOr("type", ""))
		if strings.Contains(rel, "alternate") &&
			(strings.Contains(typ, "rss") || strings.Contains(typ, "atom") || strings.Contains(typ, "xml")) {
			add(s.AttrOr("href", ""))
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		lower := strings.ToLower(href)
		for _, marker := range []string{"rss", "feed", "atom", ".xml", ".rss"} {
			if strings.Contains(lower, marker) {
				add(href)
				return
			}
		}
	})

	same := make([]string, 0, len(found))
	other := make([]string, 0, len(found))
	for _, link := range found {
		if article.SameDomain(pageURL, link) {
			same = append(same, link)
		} else {
			other = append(other, link)
		}
	}
	ordered := append(same, other...)
	if len(ordered) > maxFeedCandidates {
		ordered = ordered[:maxFeedCandidates]
	}
	return ordered
}

// rankFeedLinks orders candidates for probing: same domain, then URLs that
// name a feed, then shorter URLs.
func rankFeedLinks(links []string, pageURL string) []string {
	type scored struct {
		link      string
		same, rss int
	}
	ranked := make([]scored, len(links))
	for i, link := range links {
		ranked[i] = scored{link: link}
		if article.SameDomain(pageURL, link) {
			ranked[i].same = 1
		}
		lower := strings.ToLower(link)
		if strings.Contains(lower, "rss") || strings.Contains(lower, "feed") || strings.Contains(lower, "atom") {
			ranked[i].rss = 1
		}
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		if a.same != b.same {
			return b.same - a.same
		}
		if a.rss != b.rss {
			return b.rss - a.rss
		}
		return len(a.link) - len(b.link)
	})

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.link
	}
	return out
}
