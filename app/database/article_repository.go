package database

import (
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/threat-comb/app/article"
)

// ArticleRepository stores the article lists produced by each pipeline stage.
type ArticleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// SaveStage replaces the stored list for (runID, stage) in one transaction.
func (r *ArticleRepository) SaveStage(runID string, stage Stage, articles []article.Article) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := sq.Delete("articles").
		Where(sq.Eq{"run_id": runID, "stage": string(stage)}).
		RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear stage %s: %w", stage, err)
	}

	for i := range articles {
		a := &articles[i]
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode article %s: %w", a.ID, err)
		}

		_, err = sq.Insert("articles").
			Columns("run_id", "stage", "position", "article_id", "country", "source_slug",
				"shortlisted", "prepriority", "risk", "payload").
			Values(runID, string(stage), i, a.ID, a.Country, a.SourceSlug,
				a.Shortlisted, a.PrePriorityScore, a.RiskIndex, string(payload)).
			RunWith(tx).Exec()
		if err != nil {
			return fmt.Errorf("failed to store article %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stage %s: %w", stage, err)
	}
	return nil
}

// LoadStage returns the stage in saved order. A stage never saved is empty.
func (r *ArticleRepository) LoadStage(runID string, stage Stage) ([]article.Article, error) {
	stored, err := r.ListArticles(ArticleFilter{RunID: runID, Stage: stage})
	if err != nil {
		return nil, err
	}
	articles := make([]article.Article, len(stored))
	for i := range stored {
		articles[i] = stored[i].Article
	}
	return articles, nil
}

func (r *ArticleRepository) CountStage(runID string, stage Stage) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("articles").
		Where(sq.Eq{"run_id": runID, "stage": string(stage)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// ListArticles returns stored articles matching filter. Articles without a
// risk or prepriority value sort after scored ones.
func (r *ArticleRepository) ListArticles(filter ArticleFilter) ([]StoredArticle, error) {
	query, args, err := listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var result []StoredArticle
	for rows.Next() {
		var (
			stored  StoredArticle
			payload string
		)
		if err := rows.Scan(&stored.Position, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &stored.Article); err != nil {
			return nil, fmt.Errorf("failed to decode article at position %d: %w", stored.Position, err)
		}
		result = append(result, stored)
	}
	return result, rows.Err()
}

func listQuery(filter ArticleFilter) sq.SelectBuilder {
	q := sq.Select("position", "payload").From("articles")

	if filter.RunID != "" {
		q = q.Where(sq.Eq{"run_id": filter.RunID})
	}
	if filter.Stage != "" {
		q = q.Where(sq.Eq{"stage": string(filter.Stage)})
	}
	if filter.Country != "" {
		q = q.Where("country = ? COLLATE NOCASE", filter.Country)
	}
	if filter.Source != "" {
		q = q.Where(sq.Eq{"source_slug": filter.Source})
	}
	if filter.Shortlisted != nil {
		q = q.Where(sq.Eq{"shortlisted": *filter.Shortlisted})
	}
	if filter.MinRisk != nil {
		q = q.Where(sq.GtOrEq{"risk": *filter.MinRisk})
	}

	switch filter.OrderBy {
	case OrderRisk:
		q = q.OrderBy("risk IS NULL", "risk DESC", "position")
	case OrderPrePriority:
		q = q.OrderBy("prepriority IS NULL", "prepriority DESC", "position")
	default:
		q = q.OrderBy("run_id", "stage", "position")
	}

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			q = q.Limit(1 << 62)
		}
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}
