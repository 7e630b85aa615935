package export

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/database"
)

// Digest renders a run's articles as an RSS 2.0 feed, highest risk first.
type Digest struct {
	baseURL string
	version string
	now     func() time.Time
}

func NewDigest(baseURL, version string) *Digest {
	return &Digest{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		now:     time.Now,
	}
}

func (g *Digest) Run(run database.Run, articles []article.Article) (string, error) {
	ranked := RankByRisk(articles)

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", fmt.Sprintf("Threat digest %s", run.ID), 4)
	g.writeElement(&buf, "link", g.baseURL+"/api/runs/"+run.ID, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Articles from run %s (mode %s) ranked by risk index", run.ID, cmp.Or(run.Mode, "ANY")), 4)

	selfLink := g.baseURL + "/digest/" + run.ID
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := g.now()
	if run.FinishedAt != nil {
		lastBuildDate = *run.FinishedAt
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Threat-Comb/%s", g.version), 4)

	for i := range ranked {
		g.writeItem(&buf, &ranked[i])
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Digest) writeItem(buf *bytes.Buffer, a *article.Article) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(a.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", itemTitle(a), 6)
	g.writeElement(buf, "link", a.URL, 6)
	g.writeElement(buf, "description", itemDescription(a), 6)

	if t, ok := article.ParseISO(a.PublishedAt); ok {
		g.writeElement(buf, "pubDate", t.Format(time.RFC1123Z), 6)
	}
	g.writeElement(buf, "author", a.Author, 6)
	g.writeElement(buf, "category", a.Country, 6)
	g.writeElement(buf, "category", string(a.ThreatVector), 6)

	buf.WriteString("    </item>\n")
}

func itemTitle(a *article.Article) string {
	title := cmp.Or(a.Title, a.URL)
	if a.RiskIndex == nil {
		return title
	}
	return fmt.Sprintf("[%s %d] %s", cmp.Or(string(a.ThreatLevel), "UNSCORED"), int(math.Round(*a.RiskIndex)), title)
}

func itemDescription(a *article.Article) string {
	var parts []string
	if a.OneLinerThreat != "" {
		parts = append(parts, a.OneLinerThreat)
	}
	if len(a.Reasons) > 0 {
		parts = append(parts, "Reasons: "+strings.Join(a.Reasons, " | "))
	}
	if a.PrePriorityScore != nil {
		parts = append(parts, fmt.Sprintf("PrePriority %.1f (%s), evidence %s", *a.PrePriorityScore, a.PrePriorityBucket, a.EvidenceStrength))
	}
	if a.Summary != "" {
		parts = append(parts, a.Summary)
	}
	if len(parts) == 0 {
		return "No assessment available"
	}
	return strings.Join(parts, "\n")
}

// RankByRisk returns a copy sorted by risk index descending. Articles
// without one follow, ordered by prepriority; ties keep stored order.
func RankByRisk(articles []article.Article) []article.Article {
	ranked := slices.Clone(articles)
	slices.SortStableFunc(ranked, func(a, b article.Article) int {
		if c := compareDesc(a.RiskIndex, b.RiskIndex); c != 0 {
			return c
		}
		return compareDesc(a.PrePriorityScore, b.PrePriorityScore)
	})
	return ranked
}

func compareDesc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*b, *a)
}

func (g *Digest) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
