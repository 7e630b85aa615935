package article

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// ID is the content-addressed identity of an article: the first 24 hex chars
// of sha256(slug|url|published_at).
func ID(sourceSlug, rawURL, publishedAt string) string {
	hash := sha256.Sum256([]byte(sourceSlug + "|" + rawURL + "|" + publishedAt))
	return hex.EncodeToString(hash[:])[:24]
}

func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonSlugChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 80 {
		s = s[:80]
	}
	if s == "" {
		return "source"
	}
	return s
}

// NormalizeURL trims the URL and drops its fragment.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return u
}

// Resolve turns a root-relative href into an absolute URL against base.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if !strings.HasPrefix(href, "/") || strings.HasPrefix(href, "//") {
		if strings.HasPrefix(href, "//") {
			if b, err := url.Parse(base); err == nil && b.Scheme != "" {
				return b.Scheme + ":" + href
			}
		}
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func IsHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// SameDomain reports whether link is on the same host as base. Host-less links
// count as same-domain.
func SameDomain(base, link string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	l, err := url.Parse(link)
	if err != nil {
		return false
	}
	if l.Host == "" {
		return true
	}
	return strings.EqualFold(b.Host, l.Host)
}

// NormalizeSpace replaces non-breaking spaces and collapses whitespace runs.
func NormalizeSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
