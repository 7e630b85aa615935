package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/fetch"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]*fetch.Result
	calls []string
}

func (f *fakeFetcher) Get(_ context.Context, target string, _ fetch.Expect) *fetch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, target)
	if res, ok := f.pages[target]; ok {
		return res
	}
	return &fetch.Result{Outcome: fetch.Outcome{Status: 404, Error: "HTTP 404"}}
}

func page(ctype, body string) *fetch.Result {
	return &fetch.Result{
		Outcome: fetch.Outcome{OK: true, Status: 200, ContentType: ctype},
		Body:    []byte(body),
		Text:    body,
	}
}

type memoryCache struct {
	dates map[string]string
}

func (m *memoryCache) GetPublishedAt(_ context.Context, u string) (string, bool, error) {
	d, ok := m.dates[u]
	return d, ok, nil
}

func (m *memoryCache) SetPublishedAt(_ context.Context, u, d string) error {
	m.dates[u] = d
	return nil
}

const testFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>Blast in Quetta</title><link>https://news.example.pk/news/1</link><pubDate>Fri, 15 Mar 2024 08:00:00 GMT</pubDate></item>
<item><title>Budget session</title><link>https://news.example.pk/news/2</link><pubDate>Thu, 14 Mar 2024 09:00:00 GMT</pubDate></item>
<item><title>Checkpoint attacked</title><link>https://news.example.pk/news/3</link></item>
</channel></rss>`

func testSource(endpoints ...article.Endpoint) article.Source {
	return article.Source{Country: "Pakistan", Name: "Example News", Enabled: true, Endpoints: endpoints}
}

func TestDiscover_OnDateSniffsMissingDates(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		"https://news.example.pk/feed": page("application/rss+xml", testFeed),
		"https://news.example.pk/news/3": page("text/html",
			`<html><head><meta property="article:published_time" content="2024-03-15T06:00:00Z"></head><body></body></html>`),
	}}
	engine := NewEngine(fetcher, nil)
	source := testSource(article.Endpoint{Type: article.EndpointRSS, URL: "https://news.example.pk/feed", Enabled: true})

	items, lines, err := engine.Discover(context.Background(), source, Request{
		Mode:   ModeOnDate,
		Limit:  10,
		OnDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d: %v", len(items), lines)
	}
	if items[0].URL != "https://news.example.pk/news/1" || items[1].URL != "https://news.example.pk/news/3" {
		t.Errorf("Expected items 1 then 3, got %s, %s", items[0].URL, items[1].URL)
	}
	if items[1].PublishedAt != "2024-03-15T06:00:00Z" {
		t.Errorf("Expected sniffed date, got %s", items[1].PublishedAt)
	}
	if items[1].ID != article.ID(source.Slug(), items[1].URL, items[1].PublishedAt) {
		t.Error("Expected id to follow the sniffed date")
	}
	if items[0].ExtractionMethod != article.MethodRSS {
		t.Errorf("Expected rss method, got %s", items[0].ExtractionMethod)
	}

	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "[Pakistan | Example News] Discovery=rss") || !strings.Contains(last, "returned=2 (target=10)") {
		t.Errorf("Unexpected summary line: %s", last)
	}
	found := false
	for _, l := range lines {
		if strings.Contains(l, "ON_DATE=2024-03-15 kept 2 items") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected ON_DATE log line, got %v", lines)
	}
}

func TestDiscover_IdempotentIDs(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		"https://news.example.pk/feed": page("application/rss+xml", testFeed),
	}}
	engine := NewEngine(fetcher, nil)
	source := testSource(article.Endpoint{Type: article.EndpointRSS, URL: "https://news.example.pk/feed", Enabled: true})

	first, _, _ := engine.Discover(context.Background(), source, Request{Mode: ModeAny, Limit: 10})
	second, _, _ := engine.Discover(context.Background(), source, Request{Mode: ModeAny, Limit: 10})

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("Expected 3 items per run, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("Expected stable id for %s", first[i].URL)
		}
	}
}

func TestDiscover_FailedEndpointFallsThrough(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		"https://news.example.pk/feed": {Outcome: fetch.Outcome{Status: 403, Error: "HTTP 403"}},
		"https://news.example.pk/latest": page("text/html", `<html><body>
<a href="/news/101">One</a>
<a href="/tag/security">Tag</a>
<a href="https://other.example.com/news/5">Elsewhere</a>
<a href="/news/101#comments">Dup</a>
<a href="/2024/03/15/attack-on-convoy">Two</a>
</body></html>`),
	}}
	engine := NewEngine(fetcher, nil)
	source := testSource(
		article.Endpoint{Type: article.EndpointRSS, URL: "https://news.example.pk/feed", Enabled: true},
		article.Endpoint{Type: article.EndpointHTMLListing, URL: "https://news.example.pk/latest", Enabled: true},
	)

	items, lines, err := engine.Discover(context.Background(), source, Request{Mode: ModeAny, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 listing items, got %d: %v", len(items), lines)
	}
	if items[0].URL != "https://news.example.pk/news/101" {
		t.Errorf("Expected first listing link, got %s", items[0].URL)
	}
	if items[0].ExtractionMethod != article.MethodListing {
		t.Errorf("Expected listing method, got %s", items[0].ExtractionMethod)
	}
	if items[0].Title != items[0].URL {
		t.Errorf("Expected title to default to url, got %s", items[0].Title)
	}
	if !strings.Contains(lines[0], "RSS fetch failed: https://news.example.pk/feed err=HTTP 403") {
		t.Errorf("Expected RSS failure line, got %s", lines[0])
	}
}

func TestDiscover_SitemapIndex(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		"https://news.example.pk/sitemap.xml": page("application/xml", `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<sitemap><loc>https://news.example.pk/sitemap-1.xml</loc></sitemap>
</sitemapindex>`),
		"https://news.example.pk/sitemap-1.xml": page("application/xml", `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc> https://news.example.pk/news/7 </loc></url>
<url><loc>https://news.example.pk/about</loc></url>
<url><loc>https://news.example.pk/pakistan/story-8</loc></url>
</urlset>`),
	}}
	engine := NewEngine(fetcher, nil)
	source := testSource(article.Endpoint{Type: article.EndpointSitemapIndex, URL: "https://news.example.pk/sitemap.xml", Enabled: true})

	items, _, err := engine.Discover(context.Background(), source, Request{Mode: ModeLatestN, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].URL != "https://news.example.pk/news/7" || items[0].ExtractionMethod != article.MethodSitemap {
		t.Errorf("Unexpected item %s (%s)", items[0].URL, items[0].ExtractionMethod)
	}
}

func TestDiscover_FeedDirectory(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		"https://news.example.pk/rss-feeds": page("text/html", `<html><head>
<link rel="alternate" type="application/rss+xml" href="/feed">
</head><body><a href="/feeds/broken.xml">Broken</a></body></html>`),
		"https://news.example.pk/feed": page("application/rss+xml", testFeed),
	}}
	engine := NewEngine(fetcher, nil)
	source := testSource(article.Endpoint{Type: article.EndpointFeedDirectory, URL: "https://news.example.pk/rss-feeds", Enabled: true})

	items, lines, _ := engine.Discover(context.Background(), source, Request{Mode: ModeAny, Limit: 10})
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d: %v", len(items), lines)
	}
	if items[0].Raw["discovery_method"] != "feed_directory" {
		t.Errorf("Expected feed_directory method, got %v", items[0].Raw["discovery_method"])
	}
}

func TestDiscover_DateCache(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		"https://news.example.pk/feed": page("application/rss+xml", testFeed),
	}}
	cache := &memoryCache{dates: map[string]string{"https://news.example.pk/news/3": "2024-03-14T10:00:00Z"}}
	engine := NewEngine(fetcher, cache)
	source := testSource(article.Endpoint{Type: article.EndpointRSS, URL: "https://news.example.pk/feed", Enabled: true})

	items, _, _ := engine.Discover(context.Background(), source, Request{
		Mode:     ModeDateRange,
		Limit:    10,
		DateFrom: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	if len(items) != 2 {
		t.Fatalf("Expected 2 items on 2024-03-14, got %d", len(items))
	}
	for _, call := range fetcher.calls {
		if call == "https://news.example.pk/news/3" {
			t.Error("Expected cached date to avoid a page fetch")
		}
	}
}

func TestDiscover_InvalidRequest(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{}}
	engine := NewEngine(fetcher, nil)
	source := testSource(article.Endpoint{Type: article.EndpointRSS, URL: "https://news.example.pk/feed", Enabled: true})

	_, _, err := engine.Discover(context.Background(), source, Request{Mode: ModeOnDate, Limit: 5})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("Expected no fetches, got %d", len(fetcher.calls))
	}

	if _, err := ParseMode("weekly"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected unknown mode to be rejected, got %v", err)
	}
}

func TestDiscover_NoEnabledEndpoints(t *testing.T) {
	engine := NewEngine(&fakeFetcher{}, nil)
	source := testSource(article.Endpoint{Type: article.EndpointRSS, URL: "https://news.example.pk/feed", Enabled: false})

	items, lines, err := engine.Discover(context.Background(), source, Request{Limit: 5})
	if err != nil || len(items) != 0 {
		t.Fatalf("Expected empty result, got %d items err=%v", len(items), err)
	}
	if len(lines) != 1 || lines[0] != "[Pakistan | Example News] No enabled endpoints configured." {
		t.Errorf("Unexpected log: %v", lines)
	}
}

func TestIsProbablyArticleURL(t *testing.T) {
	tests := []struct {
		url          string
		allowUnknown bool
		want         bool
	}{
		{"https://www.dawn.com/news/1812345", false, true},
		{"https://www.dawn.com/tag/security", false, false},
		{"https://www.dawn.com/videos/123456", false, false},
		{"https://www.dawn.com/a/b", false, false},
		{"https://www.dawn.com/x/security-forces-repulse-attack", false, false},
		{"https://www.dawn.com/x/security-forces-repulse-attack", true, true},
		{"https://other.com/x/security-forces-repulse-attack", true, false},
		{"ftp://www.dawn.com/news/1", false, false},
	}
	for _, tt := range tests {
		if got := IsProbablyArticleURL(tt.url, "https://www.dawn.com/", tt.allowUnknown); got != tt.want {
			t.Errorf("IsProbablyArticleURL(%s, %v): expected %v, got %v", tt.url, tt.allowUnknown, tt.want, got)
		}
	}
}
