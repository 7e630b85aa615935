package article

// Endpoint types a source can declare.
type EndpointType string

const (
	EndpointRSS           EndpointType = "RSS"
	EndpointFeedDirectory EndpointType = "FEED_DIRECTORY"
	EndpointHTMLListing   EndpointType = "HTML_LISTING"
	EndpointSitemapIndex  EndpointType = "SITEMAP_INDEX"
)

type Endpoint struct {
	Type    EndpointType `json:"type" yaml:"type" validate:"required,oneof=RSS FEED_DIRECTORY HTML_LISTING SITEMAP_INDEX"`
	URL     string       `json:"url" yaml:"url" validate:"required,url"`
	Note    string       `json:"note" yaml:"note"`
	Enabled bool         `json:"enabled" yaml:"enabled"`
}

type Source struct {
	Country   string     `json:"country" yaml:"country" validate:"required"`
	Name      string     `json:"name" yaml:"name" validate:"required"`
	Enabled   bool       `json:"enabled" yaml:"enabled"`
	Endpoints []Endpoint `json:"endpoints" yaml:"endpoints" validate:"dive"`
}

func (s Source) Slug() string {
	return Slug(s.Name)
}

func (s Source) EnabledEndpoints() []Endpoint {
	out := make([]Endpoint, 0, len(s.Endpoints))
	for _, ep := range s.Endpoints {
		if ep.Enabled {
			out = append(out, ep)
		}
	}
	return out
}

type ExtractionMethod string

const (
	MethodRSS     ExtractionMethod = "rss"
	MethodHTML    ExtractionMethod = "html"
	MethodSitemap ExtractionMethod = "sitemap"
	MethodListing ExtractionMethod = "listing"
)

type Evidence string

const (
	EvidenceLow  Evidence = "LOW"
	EvidenceMed  Evidence = "MED"
	EvidenceHigh Evidence = "HIGH"
)

type Bucket string

const (
	BucketLow      Bucket = "LOW"
	BucketMedium   Bucket = "MEDIUM"
	BucketHigh     Bucket = "HIGH"
	BucketCritical Bucket = "CRITICAL"
)

type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "LOW"
	ThreatMed      ThreatLevel = "MED"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
)

type Vector string

const (
	VectorMilitary Vector = "MILITARY"
	VectorTerror   Vector = "TERROR"
	VectorCyber    Vector = "CYBER"
	VectorDiplo    Vector = "DIPLO"
	VectorEcon     Vector = "ECON"
	VectorInternal Vector = "INTERNAL"
	VectorOther    Vector = "OTHER"
)

var vectors = map[Vector]bool{
	VectorMilitary: true,
	VectorTerror:   true,
	VectorCyber:    true,
	VectorDiplo:    true,
	VectorEcon:     true,
	VectorInternal: true,
	VectorOther:    true,
}

// Article is one discovered unit of content. It is created by discovery and
// enriched in place by every later stage. Nullable scores are pointers.
type Article struct {
	ID         string `json:"id"`
	Country    string `json:"country"`
	SourceName string `json:"source_name"`
	SourceSlug string `json:"source_slug"`
	URL        string `json:"url"`

	Title       string `json:"title"`
	PublishedAt string `json:"published_at"` // UTC ISO-8601, empty when unknown
	Author      string `json:"author"`
	Summary     string `json:"summary"`

	ContentText      string           `json:"content_text"`
	ContentLength    int              `json:"content_length"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	ExtractionNotes  []string         `json:"extraction_notes"`

	RunID     string `json:"run_id"`
	FetchedAt string `json:"fetched_at"`

	KwNationalHits []string `json:"kw_national_hits"`
	KwThreatHits   []string `json:"kw_threat_hits"`
	Shortlisted    bool     `json:"shortlisted"`

	RelevanceScore    *float64 `json:"relevance_score"`
	EvidenceStrength  Evidence `json:"evidence_strength"`
	EvidenceNumeric   *float64 `json:"evidence_numeric"`
	UrgencyScore      *float64 `json:"urgency_score"`
	KeywordIntensity  *float64 `json:"keyword_intensity"`
	PrePriorityScore  *float64 `json:"prepriority_score"`
	PrePriorityBucket Bucket   `json:"prepriority_bucket"`

	ThreatScore    *float64    `json:"threat_score"`
	ThreatLevel    ThreatLevel `json:"threat_level"`
	ThreatVector   Vector      `json:"threat_vector"`
	OneLinerThreat string      `json:"one_liner_threat"`
	Reasons        []string    `json:"reasons"`

	RiskIndex *float64 `json:"risk_index"`

	Raw map[string]any `json:"raw"`
}

func (a *Article) AddNote(note string) {
	if note == "" {
		return
	}
	a.ExtractionNotes = append(a.ExtractionNotes, note)
}

func (a *Article) SetRaw(key string, value any) {
	if a.Raw == nil {
		a.Raw = make(map[string]any)
	}
	a.Raw[key] = value
}

// SetKeywordHits replaces both hit lists and derives the shortlisted flag.
func (a *Article) SetKeywordHits(national, threat []string) {
	a.KwNationalHits = append([]string{}, national...)
	a.KwThreatHits = append([]string{}, threat...)
	a.Shortlisted = len(a.KwNationalHits) > 0 && len(a.KwThreatHits) > 0
}

// SetPublishedAt updates the publish date and recomputes the content id.
func (a *Article) SetPublishedAt(publishedAt string) {
	a.PublishedAt = publishedAt
	a.ID = ID(a.SourceSlug, a.URL, a.PublishedAt)
}

func (a *Article) HasLayer2() bool {
	return a.PrePriorityScore != nil
}

// Haystack is the normalized text used for keyword and pattern matching.
func (a *Article) Haystack() string {
	return NormalizeSpace(a.Title + " " + a.Summary + " " + a.ContentText + " " + a.URL + " " + a.Author)
}

func Float(v float64) *float64 {
	return &v
}

// Value returns *p or def when p is nil.
func Value(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
