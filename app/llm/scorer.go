package llm

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/telemetry"
)

// Scorer runs Layer-3 scoring over articles with a single model.
type Scorer struct {
	model  Model
	budget int
	params Params
}

// NewScorer returns a scorer, or ErrModelUnavailable when model is nil.
func NewScorer(model Model, budget int) (*Scorer, error) {
	if model == nil {
		return nil, ErrModelUnavailable
	}
	if budget <= 0 {
		budget = DefaultPromptBudget
	}
	return &Scorer{model: model, budget: budget, params: DefaultParams()}, nil
}

// ScoreAll loads the model once and scores each article in order. Articles
// are never dropped: failures are recorded as notes and the threat fields
// fall back to defaults. progress and stopped may be nil; stopped is checked
// between articles. A load failure is returned after every article has been
// annotated.
func (s *Scorer) ScoreAll(ctx context.Context, articles []*article.Article, progress func(string), stopped func() bool) error {
	report := func(format string, args ...any) {
		if progress != nil {
			progress(fmt.Sprintf(format, args...))
		}
	}

	report("[LLM] Loading model...")
	if err := s.model.Load(ctx); err != nil {
		for _, a := range articles {
			fail(a, "LLM_ERROR: model load failed: "+err.Error())
		}
		telemetry.LLMCalls.WithLabelValues("load_error").Inc()
		return fmt.Errorf("failed to load model: %w", err)
	}
	report("[LLM] Model loaded OK.")

	for i, a := range articles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if stopped != nil && stopped() {
			report("[LLM] Stopped after %d/%d", i, len(articles))
			return nil
		}
		report("LLM scoring %d/%d", i+1, len(articles))
		s.Score(ctx, a)
	}
	return nil
}

// Score scores one article in place.
func (s *Scorer) Score(ctx context.Context, a *article.Article) {
	ctx, span := telemetry.StartSpan(ctx, "llm", "llm.score", attribute.String("article.id", a.ID))
	defer span.End()

	prompt := BuildPrompt(ctx, a, s.model, s.budget)
	completion, err := s.model.Complete(ctx, prompt, s.params)
	if err != nil {
		slog.Warn("LLM completion failed", "article_id", a.ID, "error", err)
		telemetry.LLMCalls.WithLabelValues("error").Inc()
		span.RecordError(err)
		fail(a, "LLM_ERROR: "+err.Error())
		return
	}

	verdict, err := ParseCompletion(completion)
	if err != nil {
		slog.Debug("LLM completion unparseable", "article_id", a.ID, "completion", completion)
		telemetry.LLMCalls.WithLabelValues("parse_error").Inc()
		fail(a, "LLM_PARSE_ERROR: "+err.Error())
		return
	}

	telemetry.LLMCalls.WithLabelValues("ok").Inc()
	a.ThreatScore = article.Float(verdict.ThreatScore)
	a.ThreatLevel = verdict.ThreatLevel
	a.ThreatVector = verdict.ThreatVector
	a.OneLinerThreat = verdict.OneLinerThreat
	a.Reasons = verdict.Reasons
}

// fail annotates a and fills any unset threat field with its default.
func fail(a *article.Article, note string) {
	a.AddNote(note)
	if a.ThreatScore == nil {
		a.ThreatScore = article.Float(0)
	}
	if a.ThreatLevel == "" {
		a.ThreatLevel = article.ThreatLevelFor(*a.ThreatScore)
	}
	if a.ThreatVector == "" {
		a.ThreatVector = article.VectorOther
	}
	if a.Reasons == nil {
		a.Reasons = []string{}
	}
}
