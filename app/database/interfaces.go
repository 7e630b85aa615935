package database

import (
	"github.com/lysyi3m/threat-comb/app/article"
)

type RunRepositoryInterface interface {
	CreateRun(run Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	UpdateRunStatus(id string, status RunStatus, errMsg string) error
	UpdateRunParams(id string, params map[string]any) error
}

type ArticleRepositoryInterface interface {
	SaveStage(runID string, stage Stage, articles []article.Article) error
	LoadStage(runID string, stage Stage) ([]article.Article, error)
	CountStage(runID string, stage Stage) (int, error)
	ListArticles(filter ArticleFilter) ([]StoredArticle, error)
}

type LogRepositoryInterface interface {
	AppendLog(runID, line string) error
	GetLogs(runID string, afterSeq, limit int) ([]LogLine, error)
}

var (
	_ RunRepositoryInterface     = (*RunRepository)(nil)
	_ ArticleRepositoryInterface = (*ArticleRepository)(nil)
	_ LogRepositoryInterface     = (*LogRepository)(nil)
)
