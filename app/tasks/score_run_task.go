package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/llm"
	"github.com/lysyi3m/threat-comb/app/scoring"
)

// ScoreRunTask selects the Layer 3 subset of a stage, scores it with the
// model and fuses the risk index.
type ScoreRunTask struct {
	Task
	Stage    database.Stage
	pipeline *Pipeline
}

func NewScoreRunTask(runID string, stage database.Stage, pipeline *Pipeline) *ScoreRunTask {
	if stage == "" {
		stage = database.StageShortlisted
	}
	return &ScoreRunTask{
		Task:     NewTask(TaskTypeScoreRun, runID),
		Stage:    stage,
		pipeline: pipeline,
	}
}

func (t *ScoreRunTask) Execute(ctx context.Context) error {
	scorer, err := llm.NewScorer(t.pipeline.Model, t.pipeline.PromptBudget)
	if err != nil {
		t.log("[LLM] Model unavailable: %v", err)
		return err
	}

	articles, err := t.pipeline.Articles.LoadStage(t.RunID, t.Stage)
	if err != nil {
		return fmt.Errorf("failed to load %s articles: %w", t.Stage, err)
	}
	if len(articles) == 0 {
		t.log("No %s articles to score.", t.Stage)
		return nil
	}

	selected := t.pipeline.Layer2.Select(articles, t.pipeline.Select)
	t.log("Layer 3 selected %d of %d articles (mode=%s)", len(selected), len(articles), t.pipeline.Select.Mode)

	scoreErr := scorer.ScoreAll(ctx, selected, func(line string) { t.log("%s", line) }, t.Stopped)

	scored := make([]*article.Article, 0, len(selected))
	for _, a := range selected {
		if a.ThreatScore != nil {
			scored = append(scored, a)
		}
	}
	scoring.FuseRisk(scored)

	if err := t.pipeline.Articles.SaveStage(t.RunID, t.Stage, articles); err != nil {
		return fmt.Errorf("failed to save scored articles: %w", err)
	}
	if scoreErr != nil {
		return scoreErr
	}

	t.log("Scored %d articles; risk index fused.", len(scored))

	if t.pipeline.Archiver != nil {
		if err := t.pipeline.Archiver.Archive(ctx, t.RunID, t.Stage, articles); err != nil {
			slog.Warn("Failed to archive run", "run", t.RunID, "error", err)
			t.log("Archive failed: %v", err)
		} else {
			t.log("Archived %s stage.", t.Stage)
		}
	}

	slog.Info("Task completed",
		"type", "ScoreRun",
		"run", t.RunID,
		"duration", t.GetDuration(),
		"selected", len(selected),
		"scored", len(scored))

	return nil
}

func (t *ScoreRunTask) log(format string, args ...any) {
	t.pipeline.log(t.RunID, format, args...)
}
