package discovery

import (
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
)

// onDate keeps articles published on day (UTC). Undated articles are dropped.
func onDate(items []article.Article, day time.Time) []article.Article {
	day = article.TruncateDay(day)
	kept := make([]article.Article, 0, len(items))
	for _, a := range items {
		if d, ok := article.DayOf(a.PublishedAt); ok && d.Equal(day) {
			kept = append(kept, a)
		}
	}
	return kept
}

// inRange keeps articles whose day falls within [from, to]. A zero bound is
// open.
func inRange(items []article.Article, from, to time.Time) []article.Article {
	kept := make([]article.Article, 0, len(items))
	for _, a := range items {
		d, ok := article.DayOf(a.PublishedAt)
		if !ok {
			continue
		}
		if !from.IsZero() && d.Before(article.TruncateDay(from)) {
			continue
		}
		if !to.IsZero() && d.After(article.TruncateDay(to)) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// newestFirst sorts dated articles before undated ones, then by publish
// timestamp descending. Ties keep discovery order.
func newestFirst(items []article.Article) {
	slices.SortStableFunc(items, func(a, b article.Article) int {
		aDated, bDated := a.PublishedAt != "", b.PublishedAt != ""
		if aDated != bDated {
			if aDated {
				return -1
			}
			return 1
		}
		return strings.Compare(b.PublishedAt, a.PublishedAt)
	})
}

func dayLabel(t time.Time) string {
	if t.IsZero() {
		return "..."
	}
	return t.UTC().Format("2006-01-02")
}

// Filter applies the request's date constraint to items. Modes without one
// return items unchanged.
func (r Request) Filter(items []article.Article) []article.Article {
	switch r.mode() {
	case ModeOnDate:
		return onDate(items, r.OnDate)
	case ModeDateRange:
		return inRange(items, r.DateFrom, r.DateTo)
	}
	return items
}
