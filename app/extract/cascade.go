package extract

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/pagemeta"
)

const (
	minJSONLDBody   = 200
	minNextDataBody = 250
	minDOMBody      = 120
	minContainer    = 200
	minParagraph    = 40
	maxNextDataHits = 6
)

var nextDataKeys = []string{
	"articlebody", "body", "content", "text", "description",
	"html", "longdescription", "story", "storybody", "maincontent",
}

var containerSelectors = []string{
	"div.article-body",
	"div.story-body",
	"div.story",
	"div#story",
	"div#article",
	"div[itemprop='articleBody']",
	"section.article",
	"main",
}

// cascade holds the partial result while each strategy fills the gaps the
// previous ones left.
type cascade struct {
	raw     string
	pageURL string
	doc     *goquery.Document

	title       string
	author      string
	publishedAt string
	text        string
	notes       []string

	readabilityDate string
}

func newCascade(raw, pageURL string) *cascade {
	c := &cascade{raw: raw, pageURL: pageURL}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
		c.doc = doc
	}
	return c
}

func (c *cascade) short() bool {
	return utf8.RuneCountInString(c.text) < shortText
}

func (c *cascade) mainText() {
	var base *url.URL
	if u, err := url.Parse(c.pageURL); err == nil && u.Host != "" {
		base = u
	}

	parsed, err := readability.FromReader(strings.NewReader(c.raw), base)
	if err != nil {
		return
	}
	if text := strings.TrimSpace(parsed.TextContent); text != "" {
		c.text = article.NormalizeSpace(text)
	}
	if c.title == "" {
		c.title = cleanTitle(parsed.Title)
	}
	if c.author == "" {
		c.author = cleanAuthor(parsed.Byline)
	}
	if parsed.PublishedTime != nil && !parsed.PublishedTime.IsZero() {
		c.readabilityDate = article.FormatTime(*parsed.PublishedTime)
	}
}

func (c *cascade) structured() {
	if c.doc == nil {
		return
	}

	meta := pagemeta.Meta(c.doc)
	if c.title == "" {
		c.title = cleanTitle(meta["og:title"])
	}
	if c.title == "" {
		c.title = cleanTitle(c.doc.Find("title").First().Text())
	}
	if c.publishedAt == "" {
		for _, key := range pagemeta.DateMetaKeys {
			if iso, ok := article.NormalizeDate(meta[key]); ok {
				c.publishedAt = iso
				break
			}
		}
	}
	if c.author == "" {
		c.author = cleanAuthor(pagemeta.First(meta, pagemeta.AuthorMetaKeys))
	}

	objects := pagemeta.JSONLD(c.doc)
	if len(objects) == 0 {
		return
	}
	if c.publishedAt == "" {
		for _, v := range pagemeta.JSONLDDates(objects) {
			if iso, ok := article.NormalizeDate(v); ok {
				c.publishedAt = iso
				break
			}
		}
	}
	if c.author == "" {
		c.author = cleanAuthor(pagemeta.JSONLDAuthor(objects))
	}
	if c.short() {
		body := textFromHTMLish(pagemeta.JSONLDArticleBody(objects))
		if utf8.RuneCountInString(body) > minJSONLDBody {
			c.text = body
			c.notes = append(c.notes, "text from JSON-LD articleBody")
		}
	}
}

// lateDate uses the readability date only when page metadata and JSON-LD
// had none.
func (c *cascade) lateDate() {
	if c.publishedAt != "" || c.readabilityDate == "" {
		return
	}
	if iso, ok := article.NormalizeDate(c.readabilityDate); ok {
		c.publishedAt = iso
	}
}

// nextData searches a Next.js __NEXT_DATA__ blob for body-like fields.
func (c *cascade) nextData() {
	if c.doc == nil || !c.short() {
		return
	}
	blob := strings.TrimSpace(c.doc.Find("script#__NEXT_DATA__").First().Text())
	if blob == "" {
		return
	}
	var state map[string]any
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return
	}

	best := ""
	for _, candidate := range deepFindText(state, nextDataKeys, maxNextDataHits) {
		if utf8.RuneCountInString(candidate) > utf8.RuneCountInString(best) {
			best = candidate
		}
	}
	if utf8.RuneCountInString(best) >= minNextDataBody {
		c.text = best
		c.notes = append(c.notes, "text from __NEXT_DATA__ (deep search)")
	}
}

func (c *cascade) domFallback() {
	if c.doc == nil || !c.short() {
		return
	}
	if text := domText(c.doc); utf8.RuneCountInString(text) > minDOMBody {
		c.text = text
		c.notes = append(c.notes, "text from DOM fallback")
	}
}

func domText(doc *goquery.Document) string {
	if node := doc.Find("article").First(); node.Length() > 0 {
		if text := visibleText(node); utf8.RuneCountInString(text) > minContainer {
			return text
		}
	}
	for _, sel := range containerSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := visibleText(node); utf8.RuneCountInString(text) > minContainer {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := visibleText(s); utf8.RuneCountInString(text) >= minParagraph {
			paragraphs = append(paragraphs, text)
		}
	})
	return article.NormalizeSpace(strings.Join(paragraphs, " "))
}

// visibleText joins the text nodes under sel with spaces, skipping scripts
// and styles.
func visibleText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return article.NormalizeSpace(strings.Join(parts, " "))
}

// deepFindText walks decoded JSON looking for string fields whose key ends
// with one of keys. Long strings and long joined string lists qualify.
// Results are deduplicated and capped at maxHits.
func deepFindText(root any, keys []string, maxHits int) []string {
	var hits []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		hits = append(hits, s)
	}

	var walk func(v any)
	walk = func(v any) {
		if len(hits) >= maxHits {
			return
		}
		switch node := v.(type) {
		case map[string]any:
			names := make([]string, 0, len(node))
			for k := range node {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, k := range names {
				if len(hits) >= maxHits {
					return
				}
				child := node[k]
				if keyMatches(strings.ToLower(k), keys) {
					switch value := child.(type) {
					case string:
						if utf8.RuneCountInString(strings.TrimSpace(value)) >= 120 {
							add(textFromHTMLish(value))
						}
					case []any:
						var parts []string
						for _, it := range value {
							if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
								parts = append(parts, textFromHTMLish(s))
							}
						}
						if joined := article.NormalizeSpace(strings.Join(parts, " ")); utf8.RuneCountInString(joined) >= 200 {
							add(joined)
						}
					}
				}
				walk(child)
			}
		case []any:
			for _, it := range node {
				if len(hits) >= maxHits {
					return
				}
				walk(it)
			}
		}
	}
	walk(root)
	return hits
}

func keyMatches(key string, keys []string) bool {
	for _, k := range keys {
		if key == k || strings.HasSuffix(key, k) {
			return true
		}
	}
	return false
}
