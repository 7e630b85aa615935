package article

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestID_Deterministic(t *testing.T) {
	first := ID("dawn", "https://www.dawn.com/news/1", "2024-03-15T08:00:00Z")
	second := ID("dawn", "https://www.dawn.com/news/1", "2024-03-15T08:00:00Z")

	if first != second {
		t.Errorf("Expected identical ids, got %s and %s", first, second)
	}
	if len(first) != 24 {
		t.Errorf("Expected 24 char id, got %d", len(first))
	}

	other := ID("dawn", "https://www.dawn.com/news/1", "")
	if other == first {
		t.Error("Expected id to change with publish date")
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Dawn":                  "dawn",
		"The Express Tribune!":  "the_express_tribune",
		"  Geo  News -- Urdu  ": "geo_news_urdu",
		"":                      "source",
		"***":                   "source",
	}

	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q): expected %q, got %q", in, want, got)
		}
	}

	long := Slug("abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij")
	if len(long) > 80 {
		t.Errorf("Expected slug capped at 80 chars, got %d", len(long))
	}
}

func TestNormalizeURL(t *testing.T) {
	if got := NormalizeURL("  https://a.pk/news/1#comments "); got != "https://a.pk/news/1" {
		t.Errorf("Expected fragment stripped, got %s", got)
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("https://a.pk/feeds/", "/news/1"); got != "https://a.pk/news/1" {
		t.Errorf("Expected root-relative link joined, got %s", got)
	}
	if got := Resolve("https://a.pk/", "https://b.pk/x"); got != "https://b.pk/x" {
		t.Errorf("Expected absolute link untouched, got %s", got)
	}
	if got := Resolve("https://a.pk/", "//cdn.a.pk/x"); got != "https://cdn.a.pk/x" {
		t.Errorf("Expected scheme-relative link completed, got %s", got)
	}
}

func TestSetKeywordHits_Shortlisted(t *testing.T) {
	a := &Article{}

	a.SetKeywordHits([]string{"Pakistan"}, nil)
	if a.Shortlisted {
		t.Error("Expected not shortlisted without threat hits")
	}

	a.SetKeywordHits([]string{"Pakistan"}, []string{"blast"})
	if !a.Shortlisted {
		t.Error("Expected shortlisted with both hit lists")
	}
}

func TestSetPublishedAt_RecomputesID(t *testing.T) {
	a := &Article{SourceSlug: "dawn", URL: "https://a.pk/news/1"}
	a.SetPublishedAt("")
	before := a.ID

	a.SetPublishedAt("2024-03-15T00:00:00Z")
	if a.ID == before {
		t.Error("Expected id to change after date update")
	}
	if a.ID != ID("dawn", "https://a.pk/news/1", "2024-03-15T00:00:00Z") {
		t.Errorf("Unexpected id %s", a.ID)
	}
}

func TestBuckets(t *testing.T) {
	if PrePriorityBucket(58.75) != BucketMedium {
		t.Errorf("Expected MEDIUM for 58.75, got %s", PrePriorityBucket(58.75))
	}
	if PrePriorityBucket(80) != BucketCritical || PrePriorityBucket(60) != BucketHigh || PrePriorityBucket(39.99) != BucketLow {
		t.Error("Unexpected prepriority bucket boundaries")
	}

	if ThreatLevelFor(82) != ThreatCritical || ThreatLevelFor(50) != ThreatHigh ||
		ThreatLevelFor(25) != ThreatMed || ThreatLevelFor(24.9) != ThreatLow {
		t.Error("Unexpected threat level boundaries")
	}

	label, value := EvidenceFor(5)
	if label != EvidenceMed || value != 60 {
		t.Errorf("Expected MED/60 for 5 points, got %s/%v", label, value)
	}
}

func TestParseVector(t *testing.T) {
	if ParseVector("terror") != VectorTerror {
		t.Error("Expected case-insensitive vector match")
	}
	if ParseVector("SPACE") != VectorOther {
		t.Error("Expected unknown vector to map to OTHER")
	}
}

func TestClamp(t *testing.T) {
	if Clamp(150) != 100 || Clamp(-3) != 0 || Clamp(42) != 42 {
		t.Error("Unexpected clamp result")
	}
}

func TestArticleJSON_RoundTrip(t *testing.T) {
	original := Article{
		ID:               "abc",
		Country:          "Pakistan",
		SourceName:       "Dawn",
		SourceSlug:       "dawn",
		URL:              "https://a.pk/news/1",
		Title:            "Blast in Quetta",
		PublishedAt:      "2024-03-15T08:00:00Z",
		ContentText:      "body",
		ContentLength:    4,
		ExtractionMethod: MethodRSS,
		ExtractionNotes:  []string{"ok (fetch=http, status=200)"},
		KwNationalHits:   []string{"Pakistan"},
		KwThreatHits:     []string{"blast"},
		Shortlisted:      true,
		RelevanceScore:   Float(43),
		PrePriorityScore: Float(58.75),
		ThreatScore:      Float(82),
		ThreatLevel:      ThreatCritical,
		ThreatVector:     VectorTerror,
		Reasons:          []string{"a", "b"},
		RiskIndex:        Float(61.2),
		Raw:              map[string]any{"discovery_method": "rss"},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded Article
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("Expected lossless round trip\n got: %+v\nwant: %+v", decoded, original)
	}
}

func TestArticleJSON_LegacyPayload(t *testing.T) {
	legacy := `{
		"id": "",
		"source_name": "Dawn",
		"url": "https://a.pk/news/1",
		"content_text": "abcd",
		"keywords_matched": ["Pakistan"],
		"shortlisted": null,
		"raw": {"kw_threat_hits": ["attack"]}
	}`

	var a Article
	if err := json.Unmarshal([]byte(legacy), &a); err != nil {
		t.Fatalf("Failed to unmarshal legacy payload: %v", err)
	}

	if len(a.KwNationalHits) != 1 || a.KwNationalHits[0] != "Pakistan" {
		t.Errorf("Expected national hits from keywords_matched, got %v", a.KwNationalHits)
	}
	if len(a.KwThreatHits) != 1 || a.KwThreatHits[0] != "attack" {
		t.Errorf("Expected threat hits from raw, got %v", a.KwThreatHits)
	}
	if !a.Shortlisted {
		t.Error("Expected shortlisted to be derived")
	}
	if a.SourceSlug != "dawn" {
		t.Errorf("Expected derived slug, got %s", a.SourceSlug)
	}
	if a.ContentLength != 4 {
		t.Errorf("Expected content length 4, got %d", a.ContentLength)
	}
	if a.ID == "" {
		t.Error("Expected id to be derived")
	}
}
