package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lysyi3m/threat-comb/app/article"
)

const maxReasons = 4

var ErrNoJSON = errors.New("could not extract JSON")

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Verdict is a parsed and normalized model answer.
type Verdict struct {
	ThreatScore    float64
	ThreatLevel    article.ThreatLevel
	ThreatVector   article.Vector
	OneLinerThreat string
	Reasons        []string
}

// ParseCompletion reads a verdict from raw completion text. The whole text
// is tried as JSON first, then the outermost brace-delimited span. The
// threat level is always derived from the score.
func ParseCompletion(text string) (Verdict, error) {
	obj, ok := decodeObject(strings.TrimSpace(text))
	if !ok {
		span := jsonObject.FindString(text)
		if span == "" {
			return Verdict{}, ErrNoJSON
		}
		if obj, ok = decodeObject(span); !ok {
			return Verdict{}, ErrNoJSON
		}
	}

	score := article.Clamp(coerceFloat(obj["threat_score"]))
	vector, _ := obj["threat_vector"].(string)

	v := Verdict{
		ThreatScore:    score,
		ThreatLevel:    article.ThreatLevelFor(score),
		ThreatVector:   article.ParseVector(vector),
		OneLinerThreat: sanitize(asString(obj["one_liner_threat"])),
		Reasons:        []string{},
	}

	if list, ok := obj["reasons"].([]any); ok {
		for _, r := range list {
			s := strings.TrimSpace(asString(r))
			if s == "" {
				continue
			}
			v.Reasons = append(v.Reasons, s)
			if len(v.Reasons) == maxReasons {
				break
			}
		}
	}
	return v, nil
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func coerceFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
