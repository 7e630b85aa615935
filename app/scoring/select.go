package scoring

import (
	"slices"

	"github.com/lysyi3m/threat-comb/app/article"
)

type SelectMode string

const (
	SelectTopN      SelectMode = "top_n"
	SelectThreshold SelectMode = "threshold"
)

type SelectOptions struct {
	Mode      SelectMode
	TopN      int
	Threshold float64
}

func DefaultSelectOptions() SelectOptions {
	return SelectOptions{Mode: SelectTopN, TopN: 25, Threshold: 60}
}

// Select picks the Layer-3 candidates by PrePriority, highest first.
// Articles without Layer-2 scores are scored on the way. The returned
// pointers refer into articles.
func (s *Scorer) Select(articles []article.Article, opts SelectOptions) []*article.Article {
	candidates := make([]*article.Article, 0, len(articles))
	for i := range articles {
		if !articles[i].HasLayer2() {
			s.Score(&articles[i])
		}
		candidates = append(candidates, &articles[i])
	}

	slices.SortStableFunc(candidates, func(a, b *article.Article) int {
		pa, pb := article.Value(a.PrePriorityScore, 0), article.Value(b.PrePriorityScore, 0)
		switch {
		case pa > pb:
			return -1
		case pa < pb:
			return 1
		}
		return 0
	})

	if opts.Mode == SelectThreshold {
		selected := make([]*article.Article, 0, len(candidates))
		for _, a := range candidates {
			if article.Value(a.PrePriorityScore, 0) >= opts.Threshold {
				selected = append(selected, a)
			}
		}
		return selected
	}

	n := min(max(opts.TopN, 0), len(candidates))
	return candidates[:n]
}
