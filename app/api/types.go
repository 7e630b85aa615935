package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/catalog"
	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/export"
	"github.com/lysyi3m/threat-comb/app/tasks"
)

type DigestInterface interface {
	Run(run database.Run, articles []article.Article) (string, error)
}

var _ DigestInterface = (*export.Digest)(nil)

type CatalogInterface interface {
	Sources() []article.Source
	Keywords() (national, threat []string)
	GetSourceCount() int
}

var _ CatalogInterface = (*catalog.Catalog)(nil)

// HealthChecker is implemented by the database and the optional cache.
type HealthChecker interface {
	Health(ctx context.Context) map[string]any
}

type Handler struct {
	catalog   CatalogInterface
	runRepo   database.RunRepositoryInterface
	artRepo   database.ArticleRepositoryInterface
	logRepo   database.LogRepositoryInterface
	scheduler tasks.TaskSchedulerInterface
	digest    DigestInterface
	db        HealthChecker
	cache     HealthChecker
	version   string
}

type createRunRequest struct {
	Mode            string   `json:"mode" binding:"max=16"`
	Limit           int      `json:"limit" binding:"min=0,max=1000"`
	OnDate          string   `json:"on_date" binding:"omitempty,datetime=2006-01-02"`
	DateFrom        string   `json:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo          string   `json:"date_to" binding:"omitempty,datetime=2006-01-02"`
	ExtractFullText bool     `json:"extract_full_text"`
	Sources         []string `json:"sources" binding:"omitempty,dive,required"`
	Chain           bool     `json:"chain"`
}

func (r createRunRequest) params() tasks.RunParams {
	return tasks.RunParams{
		Mode:            r.Mode,
		Limit:           r.Limit,
		OnDate:          r.OnDate,
		DateFrom:        r.DateFrom,
		DateTo:          r.DateTo,
		Sources:         r.Sources,
		ExtractFullText: r.ExtractFullText,
		Chain:           r.Chain,
	}
}

type analyzeRequest struct {
	Chain bool `json:"chain"`
}

type scoreRequest struct {
	Stage string `json:"stage" binding:"omitempty,oneof=fetched shortlisted"`
}

type listRunsQuery struct {
	Limit int `form:"limit" binding:"min=0,max=500"`
}

type logsQuery struct {
	After int `form:"after" binding:"min=0"`
	Limit int `form:"limit" binding:"min=0,max=5000"`
}

type articlesQuery struct {
	Stage       string   `form:"stage" binding:"omitempty,oneof=fetched shortlisted"`
	Country     string   `form:"country"`
	Source      string   `form:"source"`
	Shortlisted *bool    `form:"shortlisted"`
	MinRisk     *float64 `form:"min_risk" binding:"omitempty,min=0,max=100"`
	Order       string   `form:"order" binding:"omitempty,oneof=position risk prepriority"`
	Limit       int      `form:"limit" binding:"min=0,max=1000"`
	Offset      int      `form:"offset" binding:"min=0"`
}

type exportQuery struct {
	Stage string `form:"stage" binding:"omitempty,oneof=fetched shortlisted"`
	Order string `form:"order" binding:"omitempty,oneof=position risk"`
}

type articleResponse struct {
	Position int `json:"position"`
	article.Article
}

// MarshalJSON adds position to the article's own encoding, which would
// otherwise be promoted and drop it.
func (r articleResponse) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Article)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to merge article position: %w", err)
	}
	fields["position"] = json.RawMessage(strconv.Itoa(r.Position))
	return json.Marshal(fields)
}
