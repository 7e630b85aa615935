package scoring

import "github.com/lysyi3m/threat-comb/app/article"

const (
	defaultUrgency  = 20
	defaultEvidence = 25
)

// Risk fuses Layer-3 threat with Layer-2 relevance, urgency and evidence.
// Missing urgency and evidence take fixed defaults.
func Risk(a *article.Article) float64 {
	threat := article.Value(a.ThreatScore, 0)
	relevance := article.Value(a.RelevanceScore, 0)
	urgency := article.Value(a.UrgencyScore, defaultUrgency)
	evidence := article.Value(a.EvidenceNumeric, defaultEvidence)

	return article.Clamp(0.45*threat + 0.35*relevance + 0.10*urgency + 0.10*evidence)
}

func FuseRisk(articles []*article.Article) {
	for _, a := range articles {
		a.RiskIndex = article.Float(Risk(a))
	}
}
