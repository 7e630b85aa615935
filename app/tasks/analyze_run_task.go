package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/shortlist"
)

// AnalyzeRunTask runs the keyword funnel and Layer 2 over a fetched run.
type AnalyzeRunTask struct {
	Task
	Chain    bool
	pipeline *Pipeline
}

func NewAnalyzeRunTask(runID string, chain bool, pipeline *Pipeline) *AnalyzeRunTask {
	return &AnalyzeRunTask{
		Task:     NewTask(TaskTypeAnalyzeRun, runID),
		Chain:    chain,
		pipeline: pipeline,
	}
}

func (t *AnalyzeRunTask) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	articles, err := t.pipeline.Articles.LoadStage(t.RunID, database.StageFetched)
	if err != nil {
		return fmt.Errorf("failed to load fetched articles: %w", err)
	}

	national, threat := t.pipeline.Catalog.Keywords()
	t.log("Analyzing %d articles: national keywords=%d threat keywords=%d", len(articles), len(national), len(threat))

	result := shortlist.NewFilterer(national, threat).Run(articles)
	t.log("National pass: %d/%d (hits=%d)", len(result.NationalPass), len(result.All), result.NationalTotalHits)
	t.log("Threat pass: %d/%d (hits=%d)", len(result.ThreatPass), len(result.NationalPass), result.ThreatTotalHits)

	t.pipeline.Layer2.ScoreAll(articles)
	shortlisted := result.Shortlisted()

	if err := t.pipeline.Articles.SaveStage(t.RunID, database.StageFetched, articles); err != nil {
		return fmt.Errorf("failed to save analyzed articles: %w", err)
	}
	if err := t.pipeline.Articles.SaveStage(t.RunID, database.StageShortlisted, shortlisted); err != nil {
		return fmt.Errorf("failed to save shortlisted articles: %w", err)
	}

	t.log("Shortlisted %d of %d articles.", len(shortlisted), len(articles))

	slog.Info("Task completed",
		"type", "AnalyzeRun",
		"run", t.RunID,
		"duration", t.GetDuration(),
		"total", len(articles),
		"shortlisted", len(shortlisted))

	return nil
}

// Next chains Layer 3 scoring when a model is configured.
func (t *AnalyzeRunTask) Next() TaskInterface {
	if !t.Chain || t.Stopped() || t.pipeline.Model == nil {
		return nil
	}
	return NewScoreRunTask(t.RunID, database.StageShortlisted, t.pipeline)
}

func (t *AnalyzeRunTask) log(format string, args ...any) {
	t.pipeline.log(t.RunID, format, args...)
}
