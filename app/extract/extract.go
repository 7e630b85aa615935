// Package extract pulls article metadata and body text out of fetched HTML
// through a cascade of progressively cruder strategies.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/fetch"
	"github.com/lysyi3m/threat-comb/app/telemetry"
)

const (
	// minUsableText is the body length a page must reach to count as extracted.
	minUsableText = 80
	// shortText triggers the structured and DOM fallbacks.
	shortText      = 200
	rawSniffLength = 260
)

type Fetcher interface {
	Get(ctx context.Context, target string, expect fetch.Expect) *fetch.Result
}

// Result is what extraction recovered from one page. Empty fields mean
// nothing was found. Text is empty unless extraction succeeded.
type Result struct {
	Title       string
	Author      string
	PublishedAt string
	Text        string
	Note        string
}

type Extractor struct {
	fetcher Fetcher
}

func NewExtractor(fetcher Fetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Extract fetches pageURL and runs the extraction cascade over it.
func (e *Extractor) Extract(ctx context.Context, pageURL string) Result {
	res := e.fetcher.Get(ctx, pageURL, fetch.ExpectAny)
	if !res.OK || res.Text == "" {
		reason := res.Error
		if reason == "" {
			reason = "unknown"
		}
		telemetry.ExtractionResults.WithLabelValues("fetch_failed").Inc()
		return Result{Note: "fetch failed: " + reason}
	}

	result := Parse(res.Text, pageURL, res.Outcome)
	if result.Text != "" {
		telemetry.ExtractionResults.WithLabelValues("ok").Inc()
	} else {
		telemetry.ExtractionResults.WithLabelValues("no_text").Inc()
	}
	return result
}

// Parse runs the cascade over an already fetched page. outcome only feeds
// the diagnostic notes.
func Parse(html, pageURL string, outcome fetch.Outcome) Result {
	var notes []string
	if outcome.Blocked || fetch.LooksLikeBlockPage(html) {
		notes = append(notes, fmt.Sprintf("possible botwall content (fetch=%s, status=%d)", outcome.Method, outcome.Status))
	}

	c := newCascade(html, pageURL)
	c.mainText()
	c.structured()
	c.lateDate()
	c.nextData()
	c.domFallback()
	notes = append(notes, c.notes...)

	result := Result{
		Title:       cleanTitle(c.title),
		Author:      cleanAuthor(c.author),
		PublishedAt: c.publishedAt,
	}

	if utf8.RuneCountInString(c.text) > minUsableText {
		result.Text = c.text
		notes = append(notes, fmt.Sprintf("ok (fetch=%s, status=%d)", outcome.Method, outcome.Status))
	} else {
		notes = append(notes, fmt.Sprintf("no usable text extracted (sniff='%s')", fetch.Sniff(html, rawSniffLength)))
	}
	result.Note = strings.Join(notes, "; ")
	return result
}

// Apply merges an extraction result into a discovered article. Discovery
// data wins except for a title that merely repeats the URL.
func Apply(a *article.Article, r Result) {
	if r.Title != "" && (a.Title == "" || a.Title == a.URL) {
		a.Title = r.Title
	}
	if r.Author != "" && a.Author == "" {
		a.Author = r.Author
	}
	if r.PublishedAt != "" && a.PublishedAt == "" {
		a.SetPublishedAt(r.PublishedAt)
	}
	if r.Text != "" {
		a.ContentText = r.Text
		a.ContentLength = utf8.RuneCountInString(r.Text)
		a.ExtractionMethod = article.MethodHTML
	}
	a.AddNote(r.Note)
}
