package database

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewConnection(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean version 1, got %d dirty=%v", version, dirty)
	}
	return db
}

func newArticle(slug, url string, risk *float64) article.Article {
	a := article.Article{
		Country:    "Pakistan",
		SourceName: slug,
		SourceSlug: slug,
		URL:        url,
		Title:      "Blast in Quetta",
		RiskIndex:  risk,
	}
	a.SetPublishedAt("2024-03-15T08:00:00Z")
	return a
}

func TestNewConnection_EmptyPath(t *testing.T) {
	if _, err := NewConnection(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newTestDB(t)
	version, _, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected second migration run to succeed, got %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID(time.Date(2024, 3, 15, 8, 5, 9, 0, time.UTC))
	if !regexp.MustCompile(`^run_2024-03-15_08-05-09_[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("Unexpected run id format: %s", id)
	}
	if id == NewRunID(time.Date(2024, 3, 15, 8, 5, 9, 0, time.UTC)) {
		t.Error("Expected unique suffixes")
	}
}

func TestRunRepository(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	err := repo.CreateRun(Run{ID: "run_a", Mode: "ON_DATE", Params: map[string]any{"limit": 10}})
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	run, err := repo.GetRun("run_a")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run.Status != RunPending || run.Kind != RunManual {
		t.Errorf("Expected pending manual run, got %s/%s", run.Status, run.Kind)
	}
	if run.Params["limit"] != float64(10) {
		t.Errorf("Expected params to round trip, got %v", run.Params)
	}
	if run.FinishedAt != nil {
		t.Error("Expected no finished_at for a pending run")
	}

	if err := repo.UpdateRunStatus("run_a", RunRunning, ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateRunStatus("run_a", RunFailed, "boom"); err != nil {
		t.Fatal(err)
	}
	run, _ = repo.GetRun("run_a")
	if run.Status != RunFailed || run.Error != "boom" || run.FinishedAt == nil {
		t.Errorf("Expected failed run with finish time, got %+v", run)
	}

	if _, err := repo.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateRunStatus("missing", RunRunning, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on update, got %v", err)
	}
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))
	base := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"run_1", "run_2", "run_3"} {
		if err := repo.CreateRun(Run{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := repo.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "run_3" || runs[1].ID != "run_2" {
		t.Errorf("Expected run_3, run_2, got %+v", runs)
	}
}

func TestArticleRepository_StageRoundTrip(t *testing.T) {
	db := newTestDB(t)
	if err := NewRunRepository(db).CreateRun(Run{ID: "run_a"}); err != nil {
		t.Fatal(err)
	}
	repo := NewArticleRepository(db)

	first := newArticle("dawn", "https://www.dawn.com/news/1", nil)
	first.SetKeywordHits([]string{"Pakistan"}, []string{"blast"})
	first.AddNote("ok (fetch=http, status=200)")
	first.SetRaw("discovery_method", "rss")
	second := newArticle("dawn", "https://www.dawn.com/news/2", article.Float(72.5))

	if err := repo.SaveStage("run_a", StageFetched, []article.Article{first, second}); err != nil {
		t.Fatalf("Failed to save stage: %v", err)
	}

	loaded, err := repo.LoadStage("run_a", StageFetched)
	if err != nil {
		t.Fatalf("Failed to load stage: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(loaded))
	}
	if loaded[0].ID != first.ID || loaded[1].ID != second.ID {
		t.Error("Expected saved order to be preserved")
	}
	if !loaded[0].Shortlisted || loaded[0].KwThreatHits[0] != "blast" {
		t.Errorf("Expected funnel fields to round trip, got %+v", loaded[0])
	}
	if loaded[0].Raw["discovery_method"] != "rss" || loaded[0].ExtractionNotes[0] != "ok (fetch=http, status=200)" {
		t.Errorf("Expected raw and notes to round trip, got %+v", loaded[0])
	}
	if loaded[1].RiskIndex == nil || *loaded[1].RiskIndex != 72.5 {
		t.Errorf("Expected risk 72.5, got %v", loaded[1].RiskIndex)
	}
	if loaded[0].RiskIndex != nil {
		t.Error("Expected absent risk to stay absent")
	}

	// Saving again replaces the stage.
	if err := repo.SaveStage("run_a", StageFetched, []article.Article{second}); err != nil {
		t.Fatal(err)
	}
	count, err := repo.CountStage("run_a", StageFetched)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 article after replace, got %d", count)
	}

	empty, err := repo.LoadStage("run_a", StageShortlisted)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty unsaved stage, got %d", len(empty))
	}
}

func TestArticleRepository_ListArticles(t *testing.T) {
	db := newTestDB(t)
	if err := NewRunRepository(db).CreateRun(Run{ID: "run_a"}); err != nil {
		t.Fatal(err)
	}
	repo := NewArticleRepository(db)

	low := newArticle("dawn", "https://www.dawn.com/news/1", article.Float(20))
	high := newArticle("geo", "https://www.geo.tv/latest/2", article.Float(80))
	high.SetKeywordHits([]string{"Pakistan"}, []string{"attack"})
	unscored := newArticle("dawn", "https://www.dawn.com/news/3", nil)
	india := newArticle("hindu", "https://www.thehindu.com/news/4", article.Float(90))
	india.Country = "India"

	if err := repo.SaveStage("run_a", StageFetched, []article.Article{low, high, unscored, india}); err != nil {
		t.Fatal(err)
	}

	byRisk, err := repo.ListArticles(ArticleFilter{RunID: "run_a", Stage: StageFetched, Country: "pakistan", OrderBy: OrderRisk})
	if err != nil {
		t.Fatal(err)
	}
	if len(byRisk) != 3 {
		t.Fatalf("Expected 3 Pakistan articles, got %d", len(byRisk))
	}
	if byRisk[0].ID != high.ID || byRisk[1].ID != low.ID || byRisk[2].ID != unscored.ID {
		t.Error("Expected risk descending with unscored last")
	}
	if byRisk[0].Position != 1 {
		t.Errorf("Expected stored position 1, got %d", byRisk[0].Position)
	}

	yes := true
	shortlisted, _ := repo.ListArticles(ArticleFilter{RunID: "run_a", Shortlisted: &yes})
	if len(shortlisted) != 1 || shortlisted[0].ID != high.ID {
		t.Errorf("Expected only the shortlisted article, got %d", len(shortlisted))
	}

	risky, _ := repo.ListArticles(ArticleFilter{RunID: "run_a", MinRisk: article.Float(50), OrderBy: OrderRisk})
	if len(risky) != 2 || risky[0].ID != india.ID {
		t.Errorf("Expected 2 articles with risk >= 50, got %d", len(risky))
	}

	page, _ := repo.ListArticles(ArticleFilter{RunID: "run_a", Offset: 3})
	if len(page) != 1 || page[0].ID != india.ID {
		t.Errorf("Expected offset to skip 3 articles, got %d", len(page))
	}
}

func TestLogRepository(t *testing.T) {
	db := newTestDB(t)
	if err := NewRunRepository(db).CreateRun(Run{ID: "run_a"}); err != nil {
		t.Fatal(err)
	}
	repo := NewLogRepository(db)

	for _, line := range []string{"first", "second", "third"} {
		if err := repo.AppendLog("run_a", line); err != nil {
			t.Fatalf("Failed to append log: %v", err)
		}
	}

	lines, err := repo.GetLogs("run_a", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 || lines[0].Seq != 1 || lines[2].Line != "third" {
		t.Errorf("Expected 3 ordered lines, got %+v", lines)
	}

	tail, _ := repo.GetLogs("run_a", 2, 0)
	if len(tail) != 1 || tail[0].Line != "third" {
		t.Errorf("Expected lines after seq 2, got %+v", tail)
	}
}

func TestHealth(t *testing.T) {
	db := newTestDB(t)
	if db.Health(t.Context())["status"] != "healthy" {
		t.Error("Expected healthy database")
	}
}

func TestRepositoriesThroughInterfaces(t *testing.T) {
	db := newTestDB(t)

	var (
		runs     RunRepositoryInterface     = NewRunRepository(db)
		articles ArticleRepositoryInterface = NewArticleRepository(db)
		logs     LogRepositoryInterface     = NewLogRepository(db)
	)

	if err := runs.CreateRun(Run{ID: "run_a"}); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if err := articles.SaveStage("run_a", StageFetched, []article.Article{newArticle("dawn", "https://dawn.com/1", nil)}); err != nil {
		t.Fatalf("Failed to save stage: %v", err)
	}
	if err := logs.AppendLog("run_a", "Fetched 1 articles from 1 sources."); err != nil {
		t.Fatalf("Failed to append log: %v", err)
	}

	if count, _ := articles.CountStage("run_a", StageFetched); count != 1 {
		t.Errorf("Expected 1 stored article, got %d", count)
	}
	if lines, _ := logs.GetLogs("run_a", 0, 0); len(lines) != 1 {
		t.Errorf("Expected 1 log line, got %d", len(lines))
	}
}
