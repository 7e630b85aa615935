package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/discovery"
)

const DefaultLimit = 20

// RunParams are the caller's choices for a fetch run. They are stored with
// the run so later stages and the API can show them.
type RunParams struct {
	Mode             string   `json:"mode"`
	Limit            int      `json:"limit"`
	OnDate           string   `json:"on_date,omitempty"`
	DateFrom         string   `json:"date_from,omitempty"`
	DateTo           string   `json:"date_to,omitempty"`
	Sources          []string `json:"sources,omitempty"`
	ExtractFullText  bool     `json:"extract_full_text"`
	AllowUnknownURLs bool     `json:"allow_unknown_urls"`
	Chain            bool     `json:"chain"`
}

// Request converts the parameters into a validated discovery request.
func (p RunParams) Request(prefetchMultiplier int) (discovery.Request, error) {
	mode, err := discovery.ParseMode(p.Mode)
	if err != nil {
		return discovery.Request{}, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	req := discovery.Request{
		Mode:               mode,
		Limit:              limit,
		PrefetchMultiplier: prefetchMultiplier,
		AllowUnknownURLs:   p.AllowUnknownURLs,
	}

	days := []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"on_date", p.OnDate, &req.OnDate},
		{"date_from", p.DateFrom, &req.DateFrom},
		{"date_to", p.DateTo, &req.DateTo},
	}
	for _, d := range days {
		if d.value == "" {
			continue
		}
		day, err := article.ParseDay(d.value)
		if err != nil {
			return discovery.Request{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", discovery.ErrInvalidRequest, d.name, d.value)
		}
		*d.dst = day
	}

	if err := req.Validate(); err != nil {
		return discovery.Request{}, err
	}
	return req, nil
}

func (p RunParams) Map() map[string]any {
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

func ParamsFromMap(m map[string]any) (RunParams, error) {
	var p RunParams
	data, err := json.Marshal(m)
	if err != nil {
		return p, fmt.Errorf("failed to encode run params: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to decode run params: %w", err)
	}
	return p, nil
}
