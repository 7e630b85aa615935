package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/threat-comb/app/api"
	"github.com/lysyi3m/threat-comb/app/cache"
	"github.com/lysyi3m/threat-comb/app/catalog"
	"github.com/lysyi3m/threat-comb/app/cfg"
	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/discovery"
	"github.com/lysyi3m/threat-comb/app/export"
	"github.com/lysyi3m/threat-comb/app/extract"
	"github.com/lysyi3m/threat-comb/app/fetch"
	"github.com/lysyi3m/threat-comb/app/llm"
	"github.com/lysyi3m/threat-comb/app/scoring"
	"github.com/lysyi3m/threat-comb/app/tasks"
	"github.com/lysyi3m/threat-comb/app/telemetry"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting Threat Comb", "version", appCfg.Version)

	if appCfg.TracingEnabled {
		if err := telemetry.InitTracer(context.Background(), appCfg.TracingEndpoint, appCfg.Version); err != nil {
			slog.Warn("Tracing disabled", "error", err)
		}
		defer telemetry.ShutdownTracer()
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		fatal("Failed to run migrations", err)
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	sourceCatalog := catalog.New(appCfg.DataDir)
	if err := sourceCatalog.Run(); err != nil {
		fatal("Failed to load catalog", err)
	}
	slog.Info("Catalog loaded", "dir", appCfg.DataDir, "sources", sourceCatalog.GetSourceCount())

	var (
		dateCache   discovery.DateCache
		cacheHealth api.HealthChecker
	)
	if appCfg.RedisAddr != "" {
		redisCache, err := cache.NewCache(context.Background(), appCfg.RedisAddr)
		if err != nil {
			slog.Warn("Publish date cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			dateCache = redisCache
			cacheHealth = redisCache
		}
	}

	fetchOpts := fetch.Options{
		Timeout:  appCfg.FetchTimeout,
		ProxyURL: appCfg.ProxyURL,
		HostRate: appCfg.HostRate,
	}
	if appCfg.BrowserEnabled {
		fetchOpts.Impersonator = fetch.NewBrowser(appCfg.BrowserURL, appCfg.ProxyURL, appCfg.FetchTimeout)
		slog.Info("Browser impersonation enabled", "control_url", appCfg.BrowserURL)
	}
	client, err := fetch.NewClient(fetchOpts)
	if err != nil {
		fatal("Failed to create fetch client", err)
	}
	defer client.Close()

	model, err := llm.NewModel(appCfg.LLMBackend, appCfg.LLMEndpoint, appCfg.LLMModel, appCfg.LLMAPIKey, 2*appCfg.FetchTimeout)
	if err != nil {
		fatal("Failed to configure LLM backend", err)
	}
	if model == nil {
		slog.Info("Layer 3 scoring disabled (LLM_BACKEND=none)")
	} else {
		slog.Info("Layer 3 scoring enabled", "backend", appCfg.LLMBackend)
	}

	var archiver tasks.Archiver
	if appCfg.S3Enabled() {
		s3Archiver, err := export.NewS3Archiver(context.Background(), export.S3Config{
			Endpoint:        appCfg.S3Endpoint,
			Region:          appCfg.S3Region,
			Bucket:          appCfg.S3Bucket,
			AccessKeyID:     appCfg.S3AccessKey,
			SecretAccessKey: appCfg.S3SecretKey,
		})
		if err != nil {
			fatal("Failed to configure S3 archive", err)
		}
		archiver = s3Archiver
		slog.Info("S3 archive enabled", "bucket", appCfg.S3Bucket)
	}

	runRepo := database.NewRunRepository(db)
	articleRepo := database.NewArticleRepository(db)
	logRepo := database.NewLogRepository(db)

	pipeline := &tasks.Pipeline{
		Catalog:   sourceCatalog,
		Discovery: discovery.NewEngine(client, dateCache),
		Extractor: extract.NewExtractor(client),
		Layer2:    scoring.NewScorer(),
		Model:     model,
		Archiver:  archiver,
		Runs:      runRepo,
		Articles:  articleRepo,
		Progress:  tasks.NewRunLog(logRepo),
		Select: scoring.SelectOptions{
			Mode:      scoring.SelectMode(appCfg.SelectMode),
			TopN:      appCfg.SelectTopN,
			Threshold: appCfg.SelectMinScore,
		},
		PromptBudget:       appCfg.PromptBudget,
		PrefetchMultiplier: appCfg.PrefetchMultiple,
	}

	scheduler := tasks.NewScheduler(pipeline, tasks.Options{
		CronSchedule: appCfg.CronSchedule,
		CronParams: tasks.RunParams{
			Mode:            string(discovery.ModeLatestN),
			Limit:           appCfg.CronLimit,
			ExtractFullText: true,
			Chain:           true,
		},
		Location: time.Local,
	})
	if err := scheduler.Start(); err != nil {
		fatal("Failed to start scheduler", err)
	}
	defer scheduler.Stop()

	handler := api.NewHandler(sourceCatalog, runRepo, articleRepo, logRepo, scheduler,
		export.NewDigest(appCfg.BaseUrl, appCfg.Version), db, cacheHealth, appCfg.Version)
	router := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
