package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/discovery"
	"github.com/lysyi3m/threat-comb/app/extract"
)

// FetchRunTask discovers articles source by source, optionally extracts
// their full text, and stores the fetched stage.
type FetchRunTask struct {
	Task
	Params   RunParams
	pipeline *Pipeline
}

func NewFetchRunTask(runID string, params RunParams, pipeline *Pipeline) *FetchRunTask {
	return &FetchRunTask{
		Task:     NewTask(TaskTypeFetchRun, runID),
		Params:   params,
		pipeline: pipeline,
	}
}

func (t *FetchRunTask) Execute(ctx context.Context) error {
	req, err := t.Params.Request(t.pipeline.PrefetchMultiplier)
	if err != nil {
		return err
	}

	sources := t.pipeline.Catalog.Select(t.Params.Sources)
	t.log("Fetch run started: sources=%d mode=%s limit=%d full_text=%t",
		len(sources), req.Mode, req.Limit, t.Params.ExtractFullText)

	fetched := []article.Article{}
	done := 0
	for i, source := range sources {
		if t.Stopped() {
			t.log("Stop requested. Skipping remaining %d sources.", len(sources)-i)
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		t.log("Source %d/%d: %s (%s)", i+1, len(sources), source.Name, source.Country)
		items, lines, err := t.pipeline.Discovery.Discover(ctx, source, req)
		for _, line := range lines {
			t.log("%s", line)
		}
		if err != nil {
			return fmt.Errorf("failed to discover %s: %w", source.Name, err)
		}

		items = t.enrich(ctx, items, req)
		fetched = append(fetched, items...)
		done++

		if err := t.pipeline.Articles.SaveStage(t.RunID, database.StageFetched, fetched); err != nil {
			return fmt.Errorf("failed to save fetched articles: %w", err)
		}
	}

	if done == 0 {
		if err := t.pipeline.Articles.SaveStage(t.RunID, database.StageFetched, fetched); err != nil {
			return fmt.Errorf("failed to save fetched articles: %w", err)
		}
	}

	t.log("Fetched %d articles from %d sources.", len(fetched), done)

	slog.Info("Task completed",
		"type", "FetchRun",
		"run", t.RunID,
		"duration", t.GetDuration(),
		"sources", done,
		"articles", len(fetched))

	return nil
}

// enrich stamps run metadata and, when requested, extracts full text. Once
// a stop is requested the remaining articles are kept without extraction.
func (t *FetchRunTask) enrich(ctx context.Context, items []article.Article, req discovery.Request) []article.Article {
	fetchedAt := article.FormatTime(time.Now())
	extracting := t.Params.ExtractFullText && t.pipeline.Extractor != nil

	for i := range items {
		a := &items[i]
		a.RunID = t.RunID
		a.FetchedAt = fetchedAt

		if !extracting {
			continue
		}
		if t.Stopped() {
			t.log("Stop requested. %d articles kept without extraction.", len(items)-i)
			extracting = false
			continue
		}

		t.log("  [%d/%d] extracting %s", i+1, len(items), a.URL)
		extract.Apply(a, t.pipeline.Extractor.Extract(ctx, a.URL))
	}

	if t.Params.ExtractFullText && req.Mode.DatePrefetch() {
		before := len(items)
		items = req.Filter(items)
		if len(items) != before {
			t.log("Date filter after extraction kept %d of %d.", len(items), before)
		}
	}
	return items
}

func (t *FetchRunTask) Next() TaskInterface {
	if !t.Params.Chain || t.Stopped() {
		return nil
	}
	return NewAnalyzeRunTask(t.RunID, true, t.pipeline)
}

func (t *FetchRunTask) log(format string, args ...any) {
	t.pipeline.log(t.RunID, format, args...)
}
