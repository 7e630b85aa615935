// Package shortlist runs the two-stage keyword funnel: national relevance
// first, then threat relevance over the articles that passed.
package shortlist

import (
	"regexp"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/catalog"
)

var alphanumeric = regexp.MustCompile(`^[A-Za-z0-9]+$`)

type matcher struct {
	keyword string
	pattern *regexp.Regexp
}

// Result reports the funnel outcome. The pass lists point into All.
type Result struct {
	All               []article.Article
	NationalPass      []*article.Article
	ThreatPass        []*article.Article
	NationalTotalHits int
	ThreatTotalHits   int
}

type Filterer struct {
	national []matcher
	threat   []matcher
}

func NewFilterer(national, threat []string) *Filterer {
	return &Filterer{
		national: compile(national),
		threat:   compile(threat),
	}
}

// compile builds case-insensitive matchers. Plain alphanumeric keywords
// match whole words; anything else matches as a literal substring.
func compile(keywords []string) []matcher {
	cleaned := catalog.CleanKeywords(keywords)
	matchers := make([]matcher, 0, len(cleaned))
	for _, k := range cleaned {
		expr := regexp.QuoteMeta(k)
		if alphanumeric.MatchString(k) {
			expr = `\b` + expr + `\b`
		}
		matchers = append(matchers, matcher{keyword: k, pattern: regexp.MustCompile(`(?i)` + expr)})
	}
	return matchers
}

func (f *Filterer) Run(articles []article.Article) Result {
	result := Result{All: articles}

	for i := range articles {
		articles[i].SetKeywordHits(nil, nil)
	}

	for i := range articles {
		a := &articles[i]
		hits := f.match(a.Haystack(), f.national)
		result.NationalTotalHits += len(hits)
		a.SetKeywordHits(hits, nil)
		if len(hits) > 0 {
			result.NationalPass = append(result.NationalPass, a)
		}
	}

	for _, a := range result.NationalPass {
		hits := f.match(a.Haystack(), f.threat)
		result.ThreatTotalHits += len(hits)
		a.SetKeywordHits(a.KwNationalHits, hits)
		if a.Shortlisted {
			result.ThreatPass = append(result.ThreatPass, a)
		}
	}

	return result
}

// Shortlisted returns copies of the articles that passed both stages.
func (r Result) Shortlisted() []article.Article {
	out := make([]article.Article, 0, len(r.ThreatPass))
	for _, a := range r.ThreatPass {
		out = append(out, *a)
	}
	return out
}

func (f *Filterer) match(haystack string, matchers []matcher) []string {
	hits := []string{}
	for _, m := range matchers {
		if m.pattern.MatchString(haystack) {
			hits = append(hits, m.keyword)
		}
	}
	return hits
}
