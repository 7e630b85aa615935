package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/threat-comb/app/article"
)

var (
	DefaultNationalKeywords = []string{"Pakistan", "Pakistani", "Islamabad", "Karachi", "Lahore"}
	DefaultThreatKeywords   = []string{"blast", "bomb", "attack", "explosion", "terror"}
)

const (
	sourcesFile  = "sources"
	nationalFile = "keywords_national"
	threatFile   = "keywords_threat"
)

// Catalog is the read-only configuration store: the source list and both
// keyword lists, loaded from the data directory and cached in memory.
type Catalog struct {
	dir      string
	sources  []article.Source
	national []string
	threat   []string
	validate *validator.Validate
	mu       sync.RWMutex
}

func New(dir string) *Catalog {
	return &Catalog{
		dir:      dir,
		national: CleanKeywords(DefaultNationalKeywords),
		threat:   CleanKeywords(DefaultThreatKeywords),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Run (re)loads every file. A missing sources file yields an empty list and
// missing keyword files yield the defaults.
func (c *Catalog) Run() error {
	sources, err := c.loadSources()
	if err != nil {
		return err
	}
	national, err := c.loadKeywords(nationalFile, DefaultNationalKeywords)
	if err != nil {
		return err
	}
	threat, err := c.loadKeywords(threatFile, DefaultThreatKeywords)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = sources
	c.national = national
	c.threat = threat

	slog.Debug("Catalog loaded", "sources", len(sources), "national_keywords", len(national), "threat_keywords", len(threat))

	return nil
}

func (c *Catalog) Sources() []article.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]article.Source{}, c.sources...)
}

func (c *Catalog) EnabledSources() []article.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	enabled := make([]article.Source, 0, len(c.sources))
	for _, s := range c.sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

// Select returns enabled sources whose name or slug is in names, keeping
// catalog order. An empty filter selects every enabled source.
func (c *Catalog) Select(names []string) []article.Source {
	enabled := c.EnabledSources()
	if len(names) == 0 {
		return enabled
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}

	selected := make([]article.Source, 0, len(names))
	for _, s := range enabled {
		if wanted[strings.ToLower(s.Name)] || wanted[s.Slug()] {
			selected = append(selected, s)
		}
	}
	return selected
}

func (c *Catalog) Keywords() (national, threat []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string{}, c.national...), append([]string{}, c.threat...)
}

func (c *Catalog) GetSourceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources)
}

type endpointFile struct {
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Note    string `yaml:"note"`
	Enabled *bool  `yaml:"enabled"`
}

type sourceFile struct {
	Country   string         `yaml:"country"`
	Name      string         `yaml:"name"`
	Enabled   *bool          `yaml:"enabled"`
	Endpoints []endpointFile `yaml:"endpoints"`
}

type sourcesDoc struct {
	Version int          `yaml:"version"`
	Sources []sourceFile `yaml:"sources"`
}

type keywordsDoc struct {
	Version  int      `yaml:"version"`
	Enabled  *bool    `yaml:"enabled"`
	Keywords []string `yaml:"keywords"`
}

func (c *Catalog) loadSources() ([]article.Source, error) {
	data, path, err := c.readFile(sourcesFile)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []article.Source{}, nil
	}

	var doc sourcesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	sources := make([]article.Source, 0, len(doc.Sources))
	for i, raw := range doc.Sources {
		source := article.Source{
			Country: strings.TrimSpace(raw.Country),
			Name:    strings.TrimSpace(raw.Name),
			Enabled: enabledOrDefault(raw.Enabled),
		}
		for j, ep := range raw.Endpoints {
			endpoint := article.Endpoint{
				Type:    article.EndpointType(strings.ToUpper(strings.TrimSpace(ep.Type))),
				URL:     strings.TrimSpace(ep.URL),
				Note:    strings.TrimSpace(ep.Note),
				Enabled: enabledOrDefault(ep.Enabled),
			}
			if err := c.validate.Struct(endpoint); err != nil {
				slog.Warn("Skipping invalid endpoint", "source", source.Name, "index", j, "url", endpoint.URL, "path", path, "error", err)
				continue
			}
			source.Endpoints = append(source.Endpoints, endpoint)
		}

		if err := c.validate.Struct(source); err != nil {
			return nil, fmt.Errorf("invalid source at index %d in %s: %w", i, path, err)
		}
		sources = append(sources, source)
	}

	return sources, nil
}

func (c *Catalog) loadKeywords(name string, defaults []string) ([]string, error) {
	data, path, err := c.readFile(name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return CleanKeywords(defaults), nil
	}

	var doc keywordsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if !enabledOrDefault(doc.Enabled) {
		return []string{}, nil
	}
	return CleanKeywords(doc.Keywords), nil
}

// readFile returns the first of name.yml, name.yaml, name.json that exists,
// or nil data when none does.
func (c *Catalog) readFile(name string) ([]byte, string, error) {
	for _, ext := range []string{".yml", ".yaml", ".json"} {
		path := filepath.Join(c.dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, fmt.Errorf("failed to read file: %w", err)
		}
		return data, path, nil
	}
	return nil, "", nil
}

func enabledOrDefault(v *bool) bool {
	return v == nil || *v
}

// CleanKeywords trims entries, drops blanks and removes case-insensitive
// duplicates keeping the first spelling.
func CleanKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
	}
	return out
}
