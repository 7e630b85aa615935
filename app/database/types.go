package database

import (
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
)

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
)

func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunStopped
}

// Stage names a persisted article list within a run.
type Stage string

const (
	StageFetched     Stage = "fetched"
	StageShortlisted Stage = "shortlisted"
)

func (s Stage) Valid() bool {
	return s == StageFetched || s == StageShortlisted
}

const (
	RunManual    = "manual"
	RunScheduled = "scheduled"
)

type Run struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Status     RunStatus      `json:"status"`
	Mode       string         `json:"mode"`
	Params     map[string]any `json:"params"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

type LogLine struct {
	Seq       int       `json:"seq"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

type ArticleOrder string

const (
	OrderPosition    ArticleOrder = "position"
	OrderRisk        ArticleOrder = "risk"
	OrderPrePriority ArticleOrder = "prepriority"
)

type ArticleFilter struct {
	RunID       string
	Stage       Stage
	Country     string
	Source      string
	Shortlisted *bool
	MinRisk     *float64
	OrderBy     ArticleOrder
	Limit       int
	Offset      int
}

// StoredArticle is an article together with its place in a stage.
type StoredArticle struct {
	Position int
	article.Article
}
