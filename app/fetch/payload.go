package fetch

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

// MaxBytes caps how much of a response body is read or inflated.
const MaxBytes = 3_000_000

const sniffLength = 220

var (
	textLikeType   = regexp.MustCompile(`(?i)(text/|application/(xml|rss\+xml|atom\+xml|xhtml\+xml|json))`)
	charsetParam   = regexp.MustCompile(`(?i)charset=([A-Za-z0-9_\-]+)`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

var blockSignals = []string{
	"just a moment",
	"attention required",
	"cf-browser-verification",
	"verify you are human",
	"enable javascript and cookies",
	"captcha",
	"access denied",
}

// Decompress inflates body by its magic bytes, falling back to the advertised
// Content-Encoding. Anything that fails to inflate is returned unchanged.
func Decompress(body []byte, contentEncoding string) []byte {
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))

	var r io.Reader
	var err error
	switch {
	case bytes.HasPrefix(body, gzipMagic):
		r, err = gzip.NewReader(bytes.NewReader(body))
	case bytes.HasPrefix(body, zstdMagic):
		var d *zstd.Decoder
		d, err = zstd.NewReader(bytes.NewReader(body))
		if err == nil {
			defer d.Close()
			r = d
		}
	case looksLikeZlib(body):
		r, err = zlib.NewReader(bytes.NewReader(body))
	case enc == "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case enc == "deflate":
		r = flate.NewReader(bytes.NewReader(body))
	default:
		return body
	}
	if err != nil {
		return body
	}

	out, err := io.ReadAll(io.LimitReader(r, MaxBytes))
	if err != nil && len(out) == 0 {
		return body
	}
	return out
}

func looksLikeZlib(b []byte) bool {
	if len(b) < 2 || b[0]&0x0f != 8 {
		return false
	}
	return (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// ContentTypeIsTextLike treats a missing content type as text.
func ContentTypeIsTextLike(contentType string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return true
	}
	return textLikeType.MatchString(ct)
}

func ContentTypeIsXMLish(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "xml") || strings.Contains(ct, "rss") || strings.Contains(ct, "atom")
}

// LooksBinary samples the head of body. Tabs, newlines, printable ASCII and
// UTF-8 lead bytes count as text; below 55% the payload is binary.
func LooksBinary(body []byte) bool {
	if len(body) == 0 {
		return true
	}
	if bytes.IndexByte(body[:min(len(body), 2000)], 0) >= 0 {
		return true
	}

	sample := body[:min(len(body), 4000)]
	printable := 0
	for _, b := range sample {
		switch {
		case b == 9 || b == 10 || b == 13:
			printable++
		case b >= 32 && b <= 126:
			printable++
		case b >= 0xC0:
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) < 0.55
}

// Decode converts body to text. A declared charset wins; otherwise valid
// UTF-8 is used as is, then the HTML meta charset, then UTF-8 with
// replacement, and Latin-1 when replacement would mangle most of the text.
func Decode(body []byte, contentType string) (string, string) {
	if m := charsetParam.FindStringSubmatch(contentType); m != nil {
		if enc, name := charset.Lookup(m[1]); enc != nil {
			if out, err := enc.NewDecoder().Bytes(body); err == nil {
				return string(out), name
			}
		}
	}

	if utf8.Valid(body) {
		return string(body), "utf-8"
	}

	if enc, name, certain := charset.DetermineEncoding(body, contentType); certain && name != "utf-8" {
		if out, err := enc.NewDecoder().Bytes(body); err == nil {
			return string(out), name
		}
	}

	replaced := strings.ToValidUTF8(string(body), "�")
	if bad := strings.Count(replaced, "�"); bad*10 < utf8.RuneCountInString(replaced) {
		return replaced, "utf-8"
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return replaced, "utf-8"
	}
	return string(out), "latin-1"
}

// Sniff returns the first n characters with whitespace collapsed.
func Sniff(s string, n int) string {
	s = strings.TrimSpace(whitespaceRuns.ReplaceAllString(s, " "))
	if utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n])
	}
	return s
}

func sniffBytes(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.ToLower(Sniff(strings.ToValidUTF8(string(b), ""), n))
}

func LooksLikeHTML(b []byte) bool {
	s := sniffBytes(b, 400)
	if s == "" {
		return false
	}
	for _, marker := range []string{"<!doctype html", "<html", "<head", "<body", "just a moment", "access denied", "forbidden", "attention required", "captcha"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func LooksLikeXML(b []byte) bool {
	s := strings.TrimPrefix(sniffBytes(b, 200), "\ufeff")
	for _, prefix := range []string{"<?xml", "<rss", "<feed", "<urlset", "<sitemapindex"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// LooksLikeBlockPage spots anti-bot interstitials. It is an annotation only.
func LooksLikeBlockPage(text string) bool {
	h := strings.ToLower(text)
	for _, signal := range blockSignals {
		if strings.Contains(h, signal) {
			return true
		}
	}
	return false
}
