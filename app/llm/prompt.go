package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/threat-comb/app/article"
)

const (
	// DefaultPromptBudget leaves room for generation inside the context window.
	DefaultPromptBudget = 3200

	excerptStart  = 6000
	excerptFloor  = 900
	excerptShrink = 0.75
	truncatedMark = " ...[TRUNCATED]"
)

const responseSchema = `{"threat_score": "number 0-100", "threat_level": "LOW|MED|HIGH|CRITICAL (must match score thresholds)", "threat_vector": "MILITARY|TERROR|CYBER|DIPLO|ECON|INTERNAL|OTHER", "one_liner_threat": "one sentence", "reasons": "2-4 short bullet strings"}`

const promptFooter = "\n\nNow output the JSON object."

func promptHeader(a *article.Article) string {
	var b strings.Builder
	b.WriteString("You are an OSINT threat analyst for Pakistan.\n")
	b.WriteString("Task: Evaluate the threat severity of the article for Pakistan.\n")
	b.WriteString("Output MUST be a single valid JSON object and nothing else.\n")
	b.WriteString("Schema:\n")
	b.WriteString(responseSchema + "\n\n")
	b.WriteString("Threat score thresholds:\n")
	b.WriteString("0-24 LOW, 25-49 MED, 50-74 HIGH, 75-100 CRITICAL.\n\n")
	b.WriteString("Article:\n")
	fmt.Fprintf(&b, "Title: %s\n", sanitize(a.Title))
	fmt.Fprintf(&b, "Published: %s\n", sanitize(a.PublishedAt))
	fmt.Fprintf(&b, "Source: %s\n", sanitize(a.SourceName))
	fmt.Fprintf(&b, "SourceCountry: %s\n", sanitize(a.Country))
	fmt.Fprintf(&b, "URL: %s\n", sanitize(a.URL))
	b.WriteString("Text:\n")
	return b.String()
}

// sanitize trims, drops NULs and normalizes line endings.
func sanitize(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// BuildPrompt assembles the scoring prompt, shrinking the body excerpt until
// the prompt fits budget tokens. Below the floor the excerpt is cut hard and
// marked as truncated.
func BuildPrompt(ctx context.Context, a *article.Article, model Model, budget int) string {
	header := promptHeader(a)

	body := a.ContentText
	if strings.TrimSpace(body) == "" {
		body = a.Summary
	}
	excerpt := []rune(sanitize(body))
	if len(excerpt) > excerptStart {
		excerpt = excerpt[:excerptStart]
	}

	for {
		prompt := header + string(excerpt) + promptFooter
		if countTokens(ctx, model, prompt) <= budget {
			return prompt
		}
		if len(excerpt) <= excerptFloor {
			tiny := strings.TrimRight(string(excerpt), " \t\n") + truncatedMark
			return header + tiny + promptFooter
		}
		excerpt = excerpt[:int(float64(len(excerpt))*excerptShrink)]
	}
}

// countTokens asks the model and falls back to a chars/3 estimate.
func countTokens(ctx context.Context, model Model, text string) int {
	if model != nil {
		if n, err := model.CountTokens(ctx, text); err == nil {
			return n
		}
	}
	return max(1, utf8.RuneCountInString(text)/3)
}
