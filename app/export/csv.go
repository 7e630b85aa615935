// Package export renders stored runs as CSV, as an RSS digest, and archives
// them to object storage.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/threat-comb/app/article"
)

var CSVHeader = []string{
	"title",
	"country",
	"source",
	"published_at",
	"url",
	"shortlisted",
	"national_hits",
	"threat_hits",
	"content_length",
	"relevance_score",
	"evidence_strength",
	"evidence_numeric",
	"urgency_score",
	"keyword_intensity",
	"prepriority_score",
	"prepriority_bucket",
	"threat_score",
	"threat_level",
	"threat_vector",
	"one_liner_threat",
	"reasons",
	"risk_index",
}

// WriteCSV writes one row per article in the given order. Absent scores are
// empty cells.
func WriteCSV(w io.Writer, articles []article.Article) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range articles {
		if err := cw.Write(csvRow(&articles[i])); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func csvRow(a *article.Article) []string {
	shortlisted := "NO"
	if a.Shortlisted {
		shortlisted = "YES"
	}

	return []string{
		a.Title,
		a.Country,
		a.SourceName,
		a.PublishedAt,
		a.URL,
		shortlisted,
		strings.Join(a.KwNationalHits, ";"),
		strings.Join(a.KwThreatHits, ";"),
		strconv.Itoa(utf8.RuneCountInString(a.ContentText)),
		number(a.RelevanceScore),
		string(a.EvidenceStrength),
		number(a.EvidenceNumeric),
		number(a.UrgencyScore),
		number(a.KeywordIntensity),
		number(a.PrePriorityScore),
		string(a.PrePriorityBucket),
		number(a.ThreatScore),
		string(a.ThreatLevel),
		string(a.ThreatVector),
		a.OneLinerThreat,
		strings.Join(a.Reasons, " | "),
		number(a.RiskIndex),
	}
}

func number(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
