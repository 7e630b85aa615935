package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/discovery"
	"github.com/lysyi3m/threat-comb/app/export"
	"github.com/lysyi3m/threat-comb/app/llm"
	"github.com/lysyi3m/threat-comb/app/tasks"
)

func NewHandler(catalog CatalogInterface, runRepo database.RunRepositoryInterface,
	artRepo database.ArticleRepositoryInterface, logRepo database.LogRepositoryInterface,
	scheduler tasks.TaskSchedulerInterface, digest DigestInterface,
	db HealthChecker, cache HealthChecker, version string) *Handler {
	return &Handler{
		catalog:   catalog,
		runRepo:   runRepo,
		artRepo:   artRepo,
		logRepo:   logRepo,
		scheduler: scheduler,
		digest:    digest,
		db:        db,
		cache:     cache,
		version:   version,
	}
}

// errorStatus maps pipeline sentinel errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, discovery.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tasks.ErrLaneBusy):
		return http.StatusConflict
	case errors.Is(err, llm.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) abortWithError(c *gin.Context, operation string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "operation", operation, "error", err)
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"sources":   h.catalog.GetSourceCount(),
	}

	// Database is required, cache is optional
	status := http.StatusOK
	if h.db != nil {
		dbHealth := h.db.Health(c.Request.Context())
		health["database"] = dbHealth
		if dbHealth["status"] != "healthy" {
			status = http.StatusServiceUnavailable
		}
	}
	if h.cache != nil {
		health["cache"] = h.cache.Health(c.Request.Context())
	}

	// Busy flag per task type
	health["workers"] = map[string]bool{
		string(tasks.TaskTypeFetchRun):   h.scheduler.Busy(tasks.TaskTypeFetchRun),
		string(tasks.TaskTypeAnalyzeRun): h.scheduler.Busy(tasks.TaskTypeAnalyzeRun),
		string(tasks.TaskTypeScoreRun):   h.scheduler.Busy(tasks.TaskTypeScoreRun),
	}

	if status == http.StatusOK {
		health["status"] = "healthy"
	} else {
		health["status"] = "unhealthy"
	}
	c.JSON(status, health)
}

// GetDigest renders a run as RSS, highest risk first. The shortlisted stage
// is used when it exists.
func (h *Handler) GetDigest(c *gin.Context) {
	id := c.Param("id")

	run, err := h.runRepo.GetRun(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		slog.Error("Database error", "operation", "get_run", "run", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	// Fall back to fetched articles when nothing was shortlisted
	articles, err := h.artRepo.LoadStage(id, database.StageShortlisted)
	if err == nil && len(articles) == 0 {
		articles, err = h.artRepo.LoadStage(id, database.StageFetched)
	}
	if err != nil {
		slog.Error("Database error", "operation", "load_stage", "run", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.digest.Run(*run, articles)
	if err != nil {
		slog.Error("RSS generation error", "run", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Digest-Items", strconv.Itoa(len(articles)))
	c.Header("X-Run-Status", string(run.Status))
	c.Header("X-Last-Updated", run.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources := h.catalog.Sources()

	result := make([]map[string]any, 0, len(sources))
	for _, s := range sources {
		result = append(result, map[string]any{
			"name":              s.Name,
			"slug":              s.Slug(),
			"country":           s.Country,
			"enabled":           s.Enabled,
			"endpoints":         s.Endpoints,
			"enabled_endpoints": len(s.EnabledEndpoints()),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": result,
		"total":   len(result),
	})
}

func (h *Handler) APIListKeywords(c *gin.Context) {
	national, threat := h.catalog.Keywords()
	c.JSON(http.StatusOK, gin.H{
		"national": national,
		"threat":   threat,
	})
}

func (h *Handler) APICreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	runID, err := h.scheduler.StartRun(req.params())
	if err != nil {
		h.abortWithError(c, "start_run", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Fetch run queued",
		"run_id":  runID,
		"task":    tasks.TaskTypeFetchRun,
	})
}

func (h *Handler) APIListRuns(c *gin.Context) {
	var q listRunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return
	}

	runs, err := h.runRepo.ListRuns(q.Limit)
	if err != nil {
		h.abortWithError(c, "list_runs", err)
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

func (h *Handler) APIGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.runRepo.GetRun(id)
	if err != nil {
		h.abortWithError(c, "get_run", err)
		return
	}

	stages := make(map[string]int, 2)
	for _, stage := range []database.Stage{database.StageFetched, database.StageShortlisted} {
		if count, err := h.artRepo.CountStage(id, stage); err == nil {
			stages[string(stage)] = count
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"run":    run,
		"stages": stages,
	})
}

func (h *Handler) APIGetRunLogs(c *gin.Context) {
	id := c.Param("id")

	var q logsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return
	}

	if _, err := h.runRepo.GetRun(id); err != nil {
		h.abortWithError(c, "get_run", err)
		return
	}

	lines, err := h.logRepo.GetLogs(id, q.After, q.Limit)
	if err != nil {
		h.abortWithError(c, "get_logs", err)
		return
	}
	if lines == nil {
		lines = []database.LogLine{}
	}

	// Cursor for the next poll
	next := q.After
	if len(lines) > 0 {
		next = lines[len(lines)-1].Seq
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": id,
		"lines":  lines,
		"next":   next,
	})
}

func (h *Handler) APIStopRun(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.runRepo.GetRun(id); err != nil {
		h.abortWithError(c, "get_run", err)
		return
	}

	if !h.scheduler.StopRun(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "No active task for run"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Stop requested",
		"run_id":  id,
	})
}

func (h *Handler) APIAnalyzeRun(c *gin.Context) {
	id := c.Param("id")

	var req analyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
	}

	if err := h.scheduler.StartAnalyze(id, req.Chain); err != nil {
		h.abortWithError(c, "start_analyze", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Analysis queued",
		"run_id":  id,
		"task":    tasks.TaskTypeAnalyzeRun,
	})
}

func (h *Handler) APIScoreRun(c *gin.Context) {
	id := c.Param("id")

	var req scoreRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
	}

	stage := database.Stage(req.Stage)
	if stage == "" {
		stage = database.StageShortlisted
	}

	if err := h.scheduler.StartScore(id, stage); err != nil {
		h.abortWithError(c, "start_score", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Scoring queued",
		"run_id":  id,
		"stage":   stage,
		"task":    tasks.TaskTypeScoreRun,
	})
}

func (h *Handler) APIListRunArticles(c *gin.Context) {
	id := c.Param("id")

	var q articlesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return
	}

	if _, err := h.runRepo.GetRun(id); err != nil {
		h.abortWithError(c, "get_run", err)
		return
	}

	filter := database.ArticleFilter{
		RunID:       id,
		Stage:       database.Stage(q.Stage),
		Country:     q.Country,
		Source:      q.Source,
		Shortlisted: q.Shortlisted,
		MinRisk:     q.MinRisk,
		OrderBy:     database.ArticleOrder(q.Order),
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	// Defaults
	if filter.Stage == "" {
		filter.Stage = database.StageFetched
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}

	stored, err := h.artRepo.ListArticles(filter)
	if err != nil {
		h.abortWithError(c, "list_articles", err)
		return
	}

	total, err := h.artRepo.CountStage(id, filter.Stage)
	if err != nil {
		h.abortWithError(c, "count_stage", err)
		return
	}

	result := make([]articleResponse, 0, len(stored))
	for _, s := range stored {
		result = append(result, articleResponse{Position: s.Position, Article: s.Article})
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":      id,
		"stage":       filter.Stage,
		"articles":    result,
		"count":       len(result),
		"stage_total": total,
	})
}

func (h *Handler) APIExportCSV(c *gin.Context) {
	id := c.Param("id")

	var q exportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return
	}

	if _, err := h.runRepo.GetRun(id); err != nil {
		h.abortWithError(c, "get_run", err)
		return
	}

	stage := database.Stage(q.Stage)
	if stage == "" {
		stage = database.StageShortlisted
	}

	articles, err := h.artRepo.LoadStage(id, stage)
	if err != nil {
		h.abortWithError(c, "load_stage", err)
		return
	}
	if q.Order == string(database.OrderRisk) {
		articles = export.RankByRisk(articles)
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"_"+string(stage)+".csv"))
	c.Status(http.StatusOK)

	if err := export.WriteCSV(c.Writer, articles); err != nil {
		slog.Error("CSV export error", "run", id, "stage", stage, "error", err)
	}
}
