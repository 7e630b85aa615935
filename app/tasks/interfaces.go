package tasks

import (
	"context"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/discovery"
	"github.com/lysyi3m/threat-comb/app/extract"
)

// TaskSchedulerInterface is what the API and main need from the scheduler.
type TaskSchedulerInterface interface {
	Start() error
	Stop()
	StartRun(params RunParams) (string, error)
	StartAnalyze(runID string, chain bool) error
	StartScore(runID string, stage database.Stage) error
	StopRun(runID string) bool
	Busy(taskType TaskType) bool
}

type SourceCatalog interface {
	Select(names []string) []article.Source
	Keywords() (national, threat []string)
}

type Discoverer interface {
	Discover(ctx context.Context, source article.Source, req discovery.Request) ([]article.Article, []string, error)
}

type Extractor interface {
	Extract(ctx context.Context, pageURL string) extract.Result
}

// Archiver copies a finished stage somewhere outside the database.
type Archiver interface {
	Archive(ctx context.Context, runID string, stage database.Stage, articles []article.Article) error
}

// Progress receives human-readable progress lines for a run.
type Progress interface {
	Log(runID, line string)
}
