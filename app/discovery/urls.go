package discovery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/lysyi3m/threat-comb/app/article"
)

var badURLParts = []string{
	"/tag/", "/tags/", "/topics/", "/topic/", "/category/", "/categories/",
	"/author/", "/authors/",
	"/privacy", "/terms", "/contact", "/about",
	"/login", "/signin", "/signup", "/register",
	"/epaper", "/e-paper",
	"javascript:", "mailto:",
	"/video/", "/videos/", "/watch/", "/player/",
}

var articleURLPattern = regexp.MustCompile(`(?i)(/\d{4}/\d{2}/\d{2}/|/news/|/article|/story|/stories|/latest/|/detail/|/content/|/post/|/posts/|/world/|/pakistan/|/international/|/business/|/politics/|/sports/|/entertainment/|/amp/|/amp$|/(?:\d{5,})(?:[-/]|$))`)

var looseSlugPattern = regexp.MustCompile(`(?i)([a-z0-9]{8,}-[a-z0-9-]{6,}|/(\d{5,})(-|/|$))`)

// IsProbablyArticleURL applies URL-shape heuristics. With allowUnknown, a
// same-domain URL with a long slug or numeric id also passes.
func IsProbablyArticleURL(link, base string, allowUnknown bool) bool {
	if !article.IsHTTP(link) {
		return false
	}
	lower := strings.ToLower(link)
	for _, part := range badURLParts {
		if strings.Contains(lower, part) {
			return false
		}
	}
	if articleURLPattern.MatchString(link) {
		return true
	}
	if !allowUnknown {
		return false
	}

	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if base != "" && !article.SameDomain(base, link) {
		return false
	}
	if strings.Count(u.Path, "/") < 2 {
		return false
	}
	return looseSlugPattern.MatchString(u.Path)
}

// canonical resolves href against base and normalizes it. It returns "" for
// links that are not http(s).
func canonical(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	link := article.NormalizeURL(article.Resolve(base, href))
	if !article.IsHTTP(link) {
		return ""
	}
	return link
}
