// Package scoring holds the deterministic parts of the analysis: the Layer-2
// heuristics, Layer-3 candidate selection and the final risk fusion.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
)

var (
	pakLocation = regexp.MustCompile(`(?i)\b(Islamabad|Rawalpindi|Karachi|Lahore|Peshawar|Quetta|Multan|Faisalabad|Gwadar|` +
		`Gilgit|Skardu|Muzaffarabad|Mirpur|Kashmir|Balochistan|Sindh|Punjab|Khyber\s+Pakhtunkhwa|` +
		`KP|GB|AJK|FATA)\b`)

	pakSecurity = regexp.MustCompile(`(?i)\b(Pakistan\s+Army|Pak\s+Army|PAF|Pakistan\s+Air\s+Force|Pakistan\s+Navy|ISI|ISPR|DG\s+ISPR|` +
		`FIA|IB\b|Intelligence\s+Bureau|CTD|Counter\s+Terrorism\s+Department|Rangers|Frontier\s+Corps|FC\b|` +
		`NADRA|Police|Sindh\s+Police|Punjab\s+Police|KPK\s+Police|Balochistan\s+Police)\b`)

	adminArea = regexp.MustCompile(`(?i)\b(city|district|province|village|tehsil)\b`)

	quoteAttribution = regexp.MustCompile(`(?i)(\bsaid\b|\bstated\b|\btold\b|\baccording to\b|\badded\b)\s+[^.]{0,80}`)

	citation = regexp.MustCompile(`(?i)\b(report|statement|press\s+release|briefing|dossier|white\s+paper|document|UN|United\s+Nations|` +
		`FATF|IMF|World\s+Bank|court|police\s+report|investigation)\b`)

	numeric = regexp.MustCompile(`(\b\d{1,4}\b|\b\d{1,3}(?:,\d{3})+\b)`)

	namedEntity = regexp.MustCompile(`(?i)\b(Prime\s+Minister|President|Chief\s+Minister|Interior\s+Minister|Foreign\s+Minister|` +
		`Army\s+Chief|COAS|DG\s+ISPR|spokesperson|commissioner|inspector|IG|DIG|` +
		`Ministry|Ministries|Department|Court|High\s+Court|Supreme\s+Court|Parliament|Senate|` +
		`Assembly|Police|Rangers|Army|Navy|Air\s+Force|FIA|NADRA|ISPR|UN|IMF|FATF|World\s+Bank)\b`)

	pakistanMention = regexp.MustCompile(`(?i)\bPakistan\b`)
)

const quoteChars = "\"“’”"

// Scorer computes Layer-2 scores. now is swappable for tests.
type Scorer struct {
	now func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// Score fills every Layer-2 field of a.
func (s *Scorer) Score(a *article.Article) {
	hay := a.Haystack()

	relevance := Relevance(a, hay)
	evidence, evidenceNumeric := article.EvidenceFor(EvidencePoints(hay))
	urgency := Urgency(a, s.now())
	intensity := KeywordIntensity(a)

	pre := 0.45*relevance + 0.25*urgency + 0.20*evidenceNumeric + 0.10*intensity

	a.RelevanceScore = article.Float(article.Clamp(relevance))
	a.EvidenceStrength = evidence
	a.EvidenceNumeric = article.Float(evidenceNumeric)
	a.UrgencyScore = article.Float(article.Clamp(urgency))
	a.KeywordIntensity = article.Float(article.Clamp(intensity))
	a.PrePriorityScore = article.Float(article.Clamp(pre))
	a.PrePriorityBucket = article.PrePriorityBucket(*a.PrePriorityScore)
}

func (s *Scorer) ScoreAll(articles []article.Article) {
	for i := range articles {
		s.Score(&articles[i])
	}
}

// Relevance is 10 per national hit (max 10), 8 per literal "Pakistan"
// (max 5), 25 for a Pakistani place or security body and 10 for a
// Pakistani source.
func Relevance(a *article.Article, hay string) float64 {
	n := min(len(a.KwNationalHits), 10)
	p := min(len(pakistanMention.FindAllStringIndex(hay, -1)), 5)

	l := 0
	if pakLocation.MatchString(hay) || pakSecurity.MatchString(hay) {
		l = 1
	}
	src := 0
	if strings.ToUpper(strings.TrimSpace(a.Country)) == "PAKISTAN" {
		src = 10
	}
	return article.Clamp(float64(10*n + 8*p + 25*l + src))
}

// EvidencePoints awards 2 points per evidence signal, 0 to 10.
func EvidencePoints(hay string) int {
	points := 0
	if namedEntity.MatchString(hay) {
		points += 2
	}
	if numeric.MatchString(hay) {
		points += 2
	}
	if pakLocation.MatchString(hay) || adminArea.MatchString(hay) {
		points += 2
	}
	if citation.MatchString(hay) {
		points += 2
	}
	if strings.ContainsAny(hay, quoteChars) && quoteAttribution.MatchString(hay) {
		points += 2
	}
	return min(points, 10)
}

// Urgency combines recency of the publish day with 4 points per threat hit.
func Urgency(a *article.Article, now time.Time) float64 {
	age := 999
	if day, ok := article.DayOf(a.PublishedAt); ok {
		today := article.TruncateDay(now)
		age = int(math.Abs(today.Sub(day).Hours() / 24))
	}

	boost := 4 * min(len(a.KwThreatHits), 10)
	return article.Clamp(recency(age) + float64(boost))
}

func recency(ageDays int) float64 {
	switch {
	case ageDays <= 0:
		return 60
	case ageDays <= 1:
		return 55
	case ageDays <= 2:
		return 50
	case ageDays <= 3:
		return 45
	case ageDays <= 7:
		return 35
	case ageDays <= 14:
		return 25
	case ageDays <= 30:
		return 15
	default:
		return 5
	}
}

func KeywordIntensity(a *article.Article) float64 {
	total := min(len(a.KwNationalHits)+len(a.KwThreatHits), 10)
	return article.Clamp(float64(10 * total))
}
