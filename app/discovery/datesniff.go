package discovery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/threat-comb/app/fetch"
	"github.com/lysyi3m/threat-comb/app/pagemeta"
)

// sniffPublishedAt fetches an article page and reads its publish date from
// meta tags or JSON-LD. It returns "" when no date can be found.
func (e *Engine) sniffPublishedAt(ctx context.Context, articleURL string) string {
	if e.cache != nil {
		date, found, err := e.cache.GetPublishedAt(ctx, articleURL)
		if err != nil {
			slog.Warn("Date cache lookup failed", "url", articleURL, "error", err)
		} else if found {
			return date
		}
	}

	res := e.fetcher.Get(ctx, articleURL, fetch.ExpectAny)
	if !res.OK || len(res.Body) == 0 {
		return ""
	}
	if !fetch.LooksLikeHTML(res.Body) && !strings.Contains(strings.ToLower(res.ContentType), "html") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Text))
	if err != nil {
		return ""
	}
	date := pagemeta.PublishedAt(doc)

	if e.cache != nil {
		if err := e.cache.SetPublishedAt(ctx, articleURL, date); err != nil {
			slog.Warn("Date cache store failed", "url", articleURL, "error", err)
		}
	}
	return date
}
