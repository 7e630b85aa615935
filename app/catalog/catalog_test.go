package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lysyi3m/threat-comb/app/article"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCatalogLoadSourcesJSON(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "sources.json", `{
  "version": 1,
  "sources": [
    {
      "country": "Pakistan",
      "name": "Dawn",
      "endpoints": [
        {"type": "rss", "url": "https://www.dawn.com/feeds/home", "note": "main"},
        {"type": "HTML_LISTING", "url": "https://www.dawn.com/latest-news", "enabled": false}
      ]
    },
    {"country": "India", "name": "The Hindu", "enabled": false, "endpoints": []}
  ]
}`)

	c := New(dir)
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}

	if c.GetSourceCount() != 2 {
		t.Fatalf("Expected 2 sources, got %d", c.GetSourceCount())
	}

	sources := c.Sources()
	dawn := sources[0]
	if !dawn.Enabled {
		t.Error("Expected source enabled by default")
	}
	if dawn.Endpoints[0].Type != article.EndpointRSS {
		t.Errorf("Expected endpoint type upper-cased, got %s", dawn.Endpoints[0].Type)
	}
	if !dawn.Endpoints[0].Enabled {
		t.Error("Expected endpoint enabled by default")
	}
	if dawn.Endpoints[1].Enabled {
		t.Error("Expected second endpoint disabled")
	}
	if len(dawn.EnabledEndpoints()) != 1 {
		t.Errorf("Expected 1 enabled endpoint, got %d", len(dawn.EnabledEndpoints()))
	}

	enabled := c.EnabledSources()
	if len(enabled) != 1 || enabled[0].Name != "Dawn" {
		t.Errorf("Expected only Dawn enabled, got %v", enabled)
	}
}

func TestCatalogLoadSourcesYAML(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "sources.yml", `
version: 1
sources:
  - country: Pakistan
    name: Express Tribune
    endpoints:
      - type: SITEMAP_INDEX
        url: https://tribune.com.pk/sitemap.xml
  - country: Pakistan
    name: Geo
    endpoints:
      - type: FEED_DIRECTORY
        url: https://www.geo.tv/rss
`)

	c := New(dir)
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}

	selected := c.Select([]string{"express_tribune"})
	if len(selected) != 1 || selected[0].Name != "Express Tribune" {
		t.Errorf("Expected selection by slug, got %v", selected)
	}

	if len(c.Select(nil)) != 2 {
		t.Error("Expected empty filter to select every enabled source")
	}
}

func TestCatalogSkipsInvalidEndpoints(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "sources.yml", `
sources:
  - country: Pakistan
    name: Dawn
    endpoints:
      - type: TWITTER
        url: https://x.com/dawn_com
      - type: RSS
        url: "dawn.com feeds/home"
      - type: RSS
        url: https://www.dawn.com/feeds/home
  - country: Pakistan
    name: Geo News
    endpoints:
      - type: HTML_LISTING
        url: https://www.geo.tv/latest-news
`)

	c := New(dir)
	if err := c.Run(); err != nil {
		t.Fatalf("Expected bad endpoints to be skipped, got error: %v", err)
	}

	sources := c.Sources()
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	dawn := sources[0]
	if len(dawn.Endpoints) != 1 {
		t.Fatalf("Expected 1 valid endpoint, got %d", len(dawn.Endpoints))
	}
	if dawn.Endpoints[0].URL != "https://www.dawn.com/feeds/home" {
		t.Errorf("Expected the valid feed to remain, got %s", dawn.Endpoints[0].URL)
	}
	if len(sources[1].Endpoints) != 1 {
		t.Errorf("Expected Geo News endpoints untouched, got %d", len(sources[1].Endpoints))
	}
}

func TestCatalogInvalidSource(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "sources.yml", `
sources:
  - country: Pakistan
    endpoints:
      - type: RSS
        url: https://www.dawn.com/feeds/home
`)

	err := New(dir).Run()
	if err == nil {
		t.Fatal("Expected error for a source without a name")
	}
	if !strings.Contains(err.Error(), "index 0") {
		t.Errorf("Expected error to name the source index, got: %v", err)
	}
}

func TestCatalogMissingFilesUseDefaults(t *testing.T) {
	c := New(t.TempDir())
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}

	if c.GetSourceCount() != 0 {
		t.Errorf("Expected no sources, got %d", c.GetSourceCount())
	}

	national, threat := c.Keywords()
	if len(national) != 5 || national[0] != "Pakistan" {
		t.Errorf("Expected default national keywords, got %v", national)
	}
	if len(threat) != 5 || threat[0] != "blast" {
		t.Errorf("Expected default threat keywords, got %v", threat)
	}
}

func TestCatalogKeywordFiles(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "keywords_national.json", `{"version": 1, "enabled": true, "keywords": [" Pakistan ", "pakistan", "", "Balochistan"]}`)
	writeFile(t, dir, "keywords_threat.yml", "version: 1\nenabled: false\nkeywords: [blast]\n")

	c := New(dir)
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}

	national, threat := c.Keywords()
	if len(national) != 2 || national[0] != "Pakistan" || national[1] != "Balochistan" {
		t.Errorf("Expected cleaned national keywords, got %v", national)
	}
	if len(threat) != 0 {
		t.Errorf("Expected disabled threat list to be empty, got %v", threat)
	}
}

func TestCleanKeywords(t *testing.T) {
	got := CleanKeywords([]string{"ISPR", " ispr", "suicide attack", "  ", "Suicide Attack"})
	if len(got) != 2 || got[0] != "ISPR" || got[1] != "suicide attack" {
		t.Errorf("Unexpected cleaned keywords: %v", got)
	}
}
