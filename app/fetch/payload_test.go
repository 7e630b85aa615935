package fetch

import (
	"strings"
	"testing"
)

func TestLooksBinary(t *testing.T) {
	if !LooksBinary(nil) {
		t.Error("Expected empty body to count as binary")
	}
	if !LooksBinary([]byte("abc\x00def")) {
		t.Error("Expected NUL byte to mark binary")
	}
	if LooksBinary([]byte("plain text with\ttabs\nand lines")) {
		t.Error("Expected ASCII text to be text")
	}
	if LooksBinary([]byte("Blast in Quetta, says ISPR: دھماکہ")) {
		t.Error("Expected mixed UTF-8 text to be text")
	}
	if !LooksBinary([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 'a'}) {
		t.Error("Expected control bytes to be binary")
	}
}

func TestContentTypeIsTextLike(t *testing.T) {
	tests := map[string]bool{
		"":                                true,
		"text/html; charset=utf-8":        true,
		"application/rss+xml":             true,
		"application/json":                true,
		"application/xhtml+xml":           true,
		"image/jpeg":                      false,
		"application/octet-stream":        false,
		"APPLICATION/ATOM+XML; charset=x": true,
	}
	for ct, want := range tests {
		if got := ContentTypeIsTextLike(ct); got != want {
			t.Errorf("ContentTypeIsTextLike(%q): expected %v, got %v", ct, want, got)
		}
	}
}

func TestDecode(t *testing.T) {
	text, cs := Decode([]byte("caf\xe9"), "text/html; charset=ISO-8859-1")
	if text != "café" {
		t.Errorf("Expected declared charset decode, got %q (%s)", text, cs)
	}

	text, cs = Decode([]byte("Quetta"), "text/html")
	if text != "Quetta" || cs != "utf-8" {
		t.Errorf("Expected utf-8 passthrough, got %q (%s)", text, cs)
	}

	text, cs = Decode([]byte("\xe9\xe8\xea\xe0"), "")
	if cs != "latin-1" || text != "éèêà" {
		t.Errorf("Expected latin-1 fallback, got %q (%s)", text, cs)
	}
}

func TestLooksLikeXMLAndHTML(t *testing.T) {
	if !LooksLikeXML([]byte("  \n<?xml version=\"1.0\"?><rss>")) {
		t.Error("Expected XML declaration to be detected")
	}
	if !LooksLikeXML([]byte("\xef\xbb\xbf<?xml version=\"1.0\"?><urlset>")) {
		t.Error("Expected XML after a byte order mark to be detected")
	}
	if !LooksLikeXML([]byte("<sitemapindex xmlns=\"...\">")) {
		t.Error("Expected sitemap index to be detected")
	}
	if LooksLikeXML([]byte("<html><body>")) {
		t.Error("Expected HTML not to be XML")
	}
	if !LooksLikeHTML([]byte("<!DOCTYPE html><html>")) {
		t.Error("Expected doctype to be detected")
	}
	if !LooksLikeHTML([]byte("403 Forbidden")) {
		t.Error("Expected forbidden page to be HTML-like")
	}
}

func TestSniff(t *testing.T) {
	s := Sniff("a\r\n  b\t\tc "+strings.Repeat("x", 500), 220)
	if !strings.HasPrefix(s, "a b c ") {
		t.Errorf("Expected collapsed whitespace, got %q", s[:10])
	}
	if len([]rune(s)) != 220 {
		t.Errorf("Expected 220 chars, got %d", len([]rune(s)))
	}
}

func TestBrowserHeaders(t *testing.T) {
	h := BrowserHeaders("https://www.dawn.com/news/123")
	if h.Get("Referer") != "https://www.dawn.com/" {
		t.Errorf("Expected referer https://www.dawn.com/, got %s", h.Get("Referer"))
	}
	if h.Get("User-Agent") == "" {
		t.Error("Expected a user agent")
	}
}
