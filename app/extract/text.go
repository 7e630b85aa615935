package extract

import (
	"regexp"
	"strings"

	"github.com/lysyi3m/threat-comb/app/article"
)

var (
	titleSuffix  = regexp.MustCompile(`\s*[|\-–—]\s*[^|\-–—]{2,60}$`)
	authorPrefix = regexp.MustCompile(`(?i)^(by|written by)\s+`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
)

// cleanTitle drops a trailing " | Site Name" style suffix.
func cleanTitle(s string) string {
	s = article.NormalizeSpace(s)
	return strings.TrimSpace(titleSuffix.ReplaceAllString(s, ""))
}

func cleanAuthor(s string) string {
	s = article.NormalizeSpace(s)
	return strings.TrimSpace(authorPrefix.ReplaceAllString(s, ""))
}

func textFromHTMLish(s string) string {
	if strings.Contains(s, "<") && strings.Contains(s, ">") {
		s = htmlTag.ReplaceAllString(s, " ")
	}
	return article.NormalizeSpace(s)
}
