package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/fetch"
	"github.com/lysyi3m/threat-comb/app/telemetry"
)

const sniffProgressEvery = 25

// Engine turns a source's endpoint list into candidate articles.
type Engine struct {
	fetcher Fetcher
	cache   DateCache
	feeds   *FeedParser
	now     func() time.Time
}

// NewEngine creates a discovery engine. cache may be nil.
func NewEngine(fetcher Fetcher, cache DateCache) *Engine {
	return &Engine{
		fetcher: fetcher,
		cache:   cache,
		feeds:   NewFeedParser(),
		now:     time.Now,
	}
}

// runLog collects human-readable progress lines prefixed with the source.
type runLog struct {
	prefix string
	lines  []string
}

func (l *runLog) add(format string, args ...any) {
	line := l.prefix + fmt.Sprintf(format, args...)
	l.lines = append(l.lines, line)
	slog.Debug(line)
}

// candidates is what the first productive endpoint yielded.
type candidates struct {
	method   string
	endpoint string
	epType   article.EndpointType
	feed     []item
	urls     []string
	seen     map[string]bool
	limit    int
}

func (c *candidates) full() bool {
	return len(c.feed)+len(c.urls) >= c.limit
}

func (c *candidates) pushItem(it item) {
	if !article.IsHTTP(it.URL) || c.seen[it.URL] || c.full() {
		return
	}
	c.seen[it.URL] = true
	c.feed = append(c.feed, it)
}

func (c *candidates) pushURL(link string) {
	link = article.NormalizeURL(link)
	if !article.IsHTTP(link) || c.seen[link] || c.full() {
		return
	}
	c.seen[link] = true
	c.urls = append(c.urls, link)
}

func (c *candidates) empty() bool {
	return len(c.feed) == 0 && len(c.urls) == 0
}

// Discover tries the source's enabled endpoints in order and stops at the
// first one that yields candidates. Date-filtered modes sniff missing
// publish dates before filtering. Only an invalid request returns an error;
// endpoint failures are reported in the log lines.
func (e *Engine) Discover(ctx context.Context, source article.Source, req Request) (result []article.Article, lines []string, err error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "discovery", "discovery.discover",
		attribute.String("source.name", source.Name),
		attribute.String("discovery.mode", string(req.mode())),
	)
	defer func() {
		span.SetAttributes(attribute.Int("discovery.returned", len(result)))
		telemetry.EndSpan(span, err)
	}()

	log := &runLog{prefix: fmt.Sprintf("[%s | %s] ", source.Country, source.Name)}
	mode := req.mode()
	target := req.target()

	endpoints := source.EnabledEndpoints()
	if len(endpoints) == 0 {
		log.add("No enabled endpoints configured.")
		return nil, log.lines, nil
	}

	found := &candidates{seen: make(map[string]bool), limit: req.maxCandidates()}
	for _, ep := range endpoints {
		epURL := strings.TrimSpace(ep.URL)
		if epURL == "" {
			continue
		}
		found.endpoint = epURL
		found.epType = ep.Type

		switch ep.Type {
		case article.EndpointRSS:
			found.method = "rss"
			e.discoverRSS(ctx, epURL, found, log)
		case article.EndpointFeedDirectory:
			found.method = "feed_directory"
			e.discoverFeedDirectory(ctx, epURL, found, log)
		case article.EndpointHTMLListing:
			found.method = "html_listing"
			e.discoverListing(ctx, epURL, req.AllowUnknownURLs, found, log)
		case article.EndpointSitemapIndex:
			found.method = "sitemap"
			e.discoverSitemap(ctx, epURL, req.AllowUnknownURLs, found, log)
		default:
			log.add("Unknown endpoint type: %s url=%s", ep.Type, epURL)
			continue
		}

		if !found.empty() {
			break
		}
	}

	if found.endpoint == "" {
		log.add("No endpoint used (configuration issue).")
		return nil, log.lines, nil
	}

	items := e.buildArticles(source, found)

	if mode.DatePrefetch() {
		e.sniffDates(ctx, items, log)
	}

	switch mode {
	case ModeOnDate:
		items = onDate(items, req.OnDate)
		log.add("ON_DATE=%s kept %d items", dayLabel(req.OnDate), len(items))
	case ModeDateRange:
		items = inRange(items, req.DateFrom, req.DateTo)
		log.add("DATE_RANGE %s -> %s kept %d items", dayLabel(req.DateFrom), dayLabel(req.DateTo), len(items))
	}

	if mode.sorted() {
		newestFirst(items)
	}
	if len(items) > target {
		items = items[:target]
	}

	log.add("Discovery=%s endpoint=%s mode=%s returned=%d (target=%d)",
		found.method, found.endpoint, mode, len(items), target)

	if len(items) > 0 {
		telemetry.DiscoveredArticles.WithLabelValues(string(found.epType)).Add(float64(len(items)))
	}
	return items, log.lines, nil
}

func (e *Engine) discoverRSS(ctx context.Context, epURL string, found *candidates, log *runLog) {
	res := e.fetcher.Get(ctx, epURL, fetch.ExpectXML)
	if !res.OK || len(res.Body) == 0 {
		log.add("RSS fetch failed: %s err=%s", epURL, res.Error)
		return
	}

	items, err := e.feeds.Parse(res.Body, epURL)
	if err != nil {
		slog.Debug("Feed parse failed", "url", epURL, "error", err)
	}
	log.add("RSS parsed: %d entries from %s", len(items), epURL)
	for _, it := range items {
		found.pushItem(it)
	}
}

func (e *Engine) discoverFeedDirectory(ctx context.Context, epURL string, found *candidates, log *runLog) {
	res := e.fetcher.Get(ctx, epURL, fetch.ExpectAny)
	if !res.OK || len(res.Body) == 0 {
		log.add("FEED_DIRECTORY fetch failed: %s err=%s", epURL, res.Error)
		return
	}

	links := feedLinks(res.Body, epURL)
	log.add("FEED_DIRECTORY found %d feed candidates", len(links))

	ranked := rankFeedLinks(links, epURL)
	if len(ranked) > maxFeedProbes {
		ranked = ranked[:maxFeedProbes]
	}
	for _, feedURL := range ranked {
		probe := e.fetcher.Get(ctx, feedURL, fetch.ExpectXML)
		if !probe.OK || len(probe.Body) == 0 || !probe.XMLish() {
			continue
		}
		items, err := e.feeds.Parse(probe.Body, feedURL)
		if err != nil || len(items) == 0 {
			continue
		}
		for _, it := range items {
			found.pushItem(it)
		}
		log.add("FEED_DIRECTORY picked feed: %s items=%d", feedURL, len(found.feed))
		return
	}
	log.add("FEED_DIRECTORY could not validate any feed.")
}

func (e *Engine) discoverListing(ctx context.Context, epURL string, allowUnknown bool, found *candidates, log *runLog) {
	res := e.fetcher.Get(ctx, epURL, fetch.ExpectAny)
	if !res.OK || len(res.Body) == 0 {
		log.add("HTML_LISTING fetch failed: %s err=%s", epURL, res.Error)
		return
	}

	links := listingLinks(res.Body, epURL, allowUnknown)
	log.add("HTML_LISTING discovered %d urls", len(links))
	for _, link := range links {
		found.pushURL(link)
	}
}

func (e *Engine) discoverSitemap(ctx context.Context, epURL string, allowUnknown bool, found *candidates, log *runLog) {
	res := e.fetcher.Get(ctx, epURL, fetch.ExpectXML)
	if !res.OK || len(res.Body) == 0 {
		log.add("SITEMAP_INDEX fetch failed: %s err=%s", epURL, res.Error)
		return
	}

	push := func(locs []string) {
		for _, link := range locs {
			if IsProbablyArticleURL(link, epURL, allowUnknown) {
				found.pushURL(link)
			}
		}
	}

	if !isSitemapIndex(res.Body) {
		locs := parseSitemapLocs(res.Body, epURL)
		log.add("Sitemap urlset has %d urls", len(locs))
		push(locs)
		return
	}

	children := parseSitemapLocs(res.Body, epURL)
	log.add("Sitemap index has %d child sitemaps", len(children))
	if len(children) > maxChildSitemaps {
		children = children[:maxChildSitemaps]
	}
	for _, child := range children {
		if found.full() || ctx.Err() != nil {
			return
		}
		childRes := e.fetcher.Get(ctx, child, fetch.ExpectXML)
		if !childRes.OK || len(childRes.Body) == 0 {
			continue
		}
		push(parseSitemapLocs(childRes.Body, epURL))
	}
}

func (e *Engine) buildArticles(source article.Source, found *candidates) []article.Article {
	slug := source.Slug()
	fetchedAt := article.FormatTime(e.now())

	newArticle := func(link string, method article.ExtractionMethod) article.Article {
		a := article.Article{
			Country:          source.Country,
			SourceName:       source.Name,
			SourceSlug:       slug,
			URL:              link,
			Title:            link,
			ExtractionMethod: method,
			ExtractionNotes:  []string{},
			FetchedAt:        fetchedAt,
		}
		a.SetRaw("discovery_method", found.method)
		a.SetRaw("endpoint_used", found.endpoint)
		a.SetRaw("fetched_at", fetchedAt)
		return a
	}

	items := make([]article.Article, 0, len(found.feed)+len(found.urls))
	for _, it := range found.feed {
		a := newArticle(it.URL, article.MethodRSS)
		if it.Title != "" {
			a.Title = it.Title
		}
		a.Author = it.Author
		a.Summary = it.Summary
		a.SetPublishedAt(it.PublishedAt)
		a.SetRaw("rss", map[string]any{"published_at": it.PublishedAt})
		items = append(items, a)
	}

	method := article.MethodListing
	if found.epType == article.EndpointSitemapIndex {
		method = article.MethodSitemap
	}
	for _, link := range found.urls {
		a := newArticle(link, method)
		a.SetPublishedAt("")
		items = append(items, a)
	}
	return items
}

func (e *Engine) sniffDates(ctx context.Context, items []article.Article, log *runLog) {
	var missing []int
	for i := range items {
		if items[i].PublishedAt == "" {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return
	}

	log.add("Date filter enabled; sniffing published dates for %d items...", len(missing))
	for n, i := range missing {
		if date := e.sniffPublishedAt(ctx, items[i].URL); date != "" {
			items[i].SetPublishedAt(date)
		} else {
			items[i].AddNote("date_sniff_failed")
		}
		if (n+1)%sniffProgressEvery == 0 {
			log.add("Date sniff progress: %d/%d", n+1, len(missing))
		}
	}
}
