package tasks

import (
	"fmt"

	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/llm"
	"github.com/lysyi3m/threat-comb/app/scoring"
)

// Pipeline holds the collaborators shared by all run tasks. Model and
// Archiver may be nil: a nil Model disables Layer 3 scoring.
type Pipeline struct {
	Catalog   SourceCatalog
	Discovery Discoverer
	Extractor Extractor
	Layer2    *scoring.Scorer
	Model     llm.Model
	Archiver  Archiver

	Runs     database.RunRepositoryInterface
	Articles database.ArticleRepositoryInterface
	Progress Progress

	Select             scoring.SelectOptions
	PromptBudget       int
	PrefetchMultiplier int
}

func (p *Pipeline) log(runID, format string, args ...any) {
	if p.Progress == nil {
		return
	}
	p.Progress.Log(runID, fmt.Sprintf(format, args...))
}
