// Package pagemeta reads publication metadata from HTML documents: meta tags
// and JSON-LD blocks.
package pagemeta

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/threat-comb/app/article"
)

// DateMetaKeys are examined in this order.
var DateMetaKeys = []string{
	"article:published_time",
	"article:modified_time",
	"og:updated_time",
	"publish_date",
	"published_time",
	"date",
	"datePublished",
	"dateModified",
	"parsely-pub-date",
}

var AuthorMetaKeys = []string{
	"author",
	"article:author",
	"parsely-author",
	"byline",
	"dc.creator",
}

var jsonLDDateKeys = []string{"datePublished", "dateModified", "uploadDate", "dateCreated"}

// Meta maps each meta property or name to its content. The first
// occurrence of a key wins.
func Meta(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := strings.TrimSpace(s.AttrOr("property", ""))
		if key == "" {
			key = strings.TrimSpace(s.AttrOr("name", ""))
		}
		value := strings.TrimSpace(s.AttrOr("content", ""))
		if key == "" || value == "" {
			return
		}
		if _, ok := meta[key]; !ok {
			meta[key] = value
		}
	})
	return meta
}

// First returns the first non-empty value among keys.
func First(meta map[string]string, keys []string) string {
	for _, k := range keys {
		if v := meta[k]; v != "" {
			return v
		}
	}
	return ""
}

// JSONLD returns every object found in ld+json script blocks, flattening
// top-level arrays and @graph members. Blocks that fail to parse are skipped.
func JSONLD(doc *goquery.Document) []map[string]any {
	var objects []map[string]any
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if !strings.Contains(strings.ToLower(s.AttrOr("type", "")), "ld+json") {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		var payload any
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return
		}

		switch v := payload.(type) {
		case map[string]any:
			objects = append(objects, v)
			objects = append(objects, graph(v)...)
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					objects = append(objects, obj)
				}
			}
		}
	})
	return objects
}

func graph(obj map[string]any) []map[string]any {
	members, ok := obj["@graph"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(members))
	for _, m := range members {
		if child, ok := m.(map[string]any); ok {
			out = append(out, child)
		}
	}
	return out
}

// JSONLDDates lists date strings from the objects in key priority order
// per object.
func JSONLDDates(objects []map[string]any) []string {
	var dates []string
	for _, obj := range objects {
		for _, key := range jsonLDDateKeys {
			if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
				dates = append(dates, strings.TrimSpace(v))
			}
		}
	}
	return dates
}

// JSONLDAuthor returns author.name, or the name (or string) of the first
// author list element.
func JSONLDAuthor(objects []map[string]any) string {
	for _, obj := range objects {
		switch a := obj["author"].(type) {
		case map[string]any:
			if name, ok := a["name"].(string); ok && strings.TrimSpace(name) != "" {
				return strings.TrimSpace(name)
			}
		case []any:
			if len(a) == 0 {
				continue
			}
			switch first := a[0].(type) {
			case map[string]any:
				if name, ok := first["name"].(string); ok && strings.TrimSpace(name) != "" {
					return strings.TrimSpace(name)
				}
			case string:
				if strings.TrimSpace(first) != "" {
					return strings.TrimSpace(first)
				}
			}
		case string:
			if strings.TrimSpace(a) != "" {
				return strings.TrimSpace(a)
			}
		}
	}
	return ""
}

// JSONLDArticleBody returns the first articleBody string.
func JSONLDArticleBody(objects []map[string]any) string {
	for _, obj := range objects {
		if body, ok := obj["articleBody"].(string); ok && strings.TrimSpace(body) != "" {
			return body
		}
	}
	return ""
}

// PublishedAt picks the publish date from meta tags, then JSON-LD, and
// returns it normalized to UTC ISO-8601.
func PublishedAt(doc *goquery.Document) string {
	meta := Meta(doc)
	for _, key := range DateMetaKeys {
		if v := meta[key]; v != "" {
			if iso, ok := article.NormalizeDate(v); ok {
				return iso
			}
		}
	}
	for _, v := range JSONLDDates(JSONLD(doc)) {
		if iso, ok := article.NormalizeDate(v); ok {
			return iso
		}
	}
	return ""
}
