package article

import (
	"math"
	"strings"
)

// Clamp bounds v to [0,100]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func PrePriorityBucket(prepriority float64) Bucket {
	switch {
	case prepriority >= 80:
		return BucketCritical
	case prepriority >= 60:
		return BucketHigh
	case prepriority >= 40:
		return BucketMedium
	default:
		return BucketLow
	}
}

func ThreatLevelFor(score float64) ThreatLevel {
	switch {
	case score >= 75:
		return ThreatCritical
	case score >= 50:
		return ThreatHigh
	case score >= 25:
		return ThreatMed
	default:
		return ThreatLow
	}
}

// EvidenceFor maps an evidence point count to its label and numeric value.
func EvidenceFor(points int) (Evidence, float64) {
	switch {
	case points <= 3:
		return EvidenceLow, 25
	case points <= 7:
		return EvidenceMed, 60
	default:
		return EvidenceHigh, 90
	}
}

// ParseVector upper-cases v and falls back to OTHER for unknown values.
func ParseVector(v string) Vector {
	vec := Vector(strings.ToUpper(strings.TrimSpace(v)))
	if vectors[vec] {
		return vec
	}
	return VectorOther
}
