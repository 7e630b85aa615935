package article

import (
	"encoding/json"
	"fmt"
	"slices"
)

// SchemaVersion is written with every stored article. Version 1 payloads
// carried a single keywords_matched list and kept funnel results under raw.
const SchemaVersion = 2

type storedArticle Article

func (a Article) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SchemaVersion int `json:"schema_version"`
		storedArticle
	}{SchemaVersion, storedArticle(a)})
}

type legacyFields struct {
	SchemaVersion          int      `json:"schema_version"`
	KeywordsMatched        []string `json:"keywords_matched"`
	KeywordsNationalLegacy []string `json:"keywords_national_matched"`
	KeywordsThreatLegacy   []string `json:"keywords_threat_matched"`
}

func (a *Article) UnmarshalJSON(data []byte) error {
	var stored storedArticle
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to decode article: %w", err)
	}
	var legacy legacyFields
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("failed to decode article version: %w", err)
	}

	*a = Article(stored)
	if legacy.SchemaVersion < SchemaVersion {
		a.upgrade(legacy)
	}
	return nil
}

// upgrade fills the funnel fields from the shapes older payloads used.
func (a *Article) upgrade(legacy legacyFields) {
	national := a.KwNationalHits
	threat := a.KwThreatHits

	if len(national) == 0 {
		national = firstNonEmpty(legacy.KeywordsNationalLegacy, legacy.KeywordsMatched, rawStrings(a.Raw, "kw_national_hits"))
	}
	if len(threat) == 0 {
		threat = firstNonEmpty(legacy.KeywordsThreatLegacy, rawStrings(a.Raw, "kw_threat_hits"))
	}

	a.SetKeywordHits(national, threat)

	if a.ContentLength == 0 && a.ContentText != "" {
		a.ContentLength = len([]rune(a.ContentText))
	}
	if a.SourceSlug == "" && a.SourceName != "" {
		a.SourceSlug = Slug(a.SourceName)
	}
	if a.ID == "" {
		a.ID = ID(a.SourceSlug, a.URL, a.PublishedAt)
	}
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return slices.Clone(l)
		}
	}
	return nil
}

func rawStrings(raw map[string]any, key string) []string {
	values, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
