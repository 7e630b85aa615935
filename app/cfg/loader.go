package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath  string `long:"db-path" env:"DB_PATH" default:"./data/threat-comb.db" description:"SQLite database file"`
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory containing sources and keyword files"`

	// HTTP API
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://threats.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Fetching
	ProxyURL         string  `long:"proxy-url" env:"PROXY_URL" description:"Proxy for outbound requests (socks5://127.0.0.1:9050, http://...)"`
	FetchTimeout     int     `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-request fetch timeout in seconds"`
	HostRate         float64 `long:"host-rate" env:"HOST_RATE" default:"2" description:"Maximum requests per second per host"`
	BrowserEnabled   bool    `long:"browser" env:"BROWSER_ENABLED" description:"Use a headless browser when sites block plain requests"`
	BrowserURL       string  `long:"browser-url" env:"BROWSER_URL" description:"DevTools URL of a running browser (launches a local one when empty)"`
	PrefetchMultiple int     `long:"prefetch-multiplier" env:"PREFETCH_MULTIPLIER" default:"6" description:"Candidate pool multiplier for date-filtered discovery"`
	RedisAddr        string  `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the publish date cache (optional)"`

	// Layer 3
	LLMBackend     string  `long:"llm-backend" env:"LLM_BACKEND" default:"none" choice:"none" choice:"llamacpp" choice:"gemini" description:"Generative model backend"`
	LLMEndpoint    string  `long:"llm-endpoint" env:"LLM_ENDPOINT" default:"http://127.0.0.1:8081" description:"llama.cpp server URL"`
	LLMModel       string  `long:"llm-model" env:"LLM_MODEL" default:"gemini-2.0-flash" description:"Model name for hosted backends"`
	LLMAPIKey      string  `long:"llm-api-key" env:"LLM_API_KEY" description:"API key for hosted backends"`
	PromptBudget   int     `long:"prompt-budget" env:"PROMPT_BUDGET" default:"3200" description:"Prompt token budget"`
	SelectMode     string  `long:"select-mode" env:"SELECT_MODE" default:"top_n" choice:"top_n" choice:"threshold" description:"Layer 3 selection mode"`
	SelectTopN     int     `long:"select-top-n" env:"SELECT_TOP_N" default:"25" description:"Articles scored in top_n mode"`
	SelectMinScore float64 `long:"select-threshold" env:"SELECT_THRESHOLD" default:"60" description:"Minimum prepriority in threshold mode"`

	// Scheduling
	CronSchedule string `long:"cron" env:"CRON_SCHEDULE" description:"Cron expression for periodic full runs (optional)"`
	CronLimit    int    `long:"cron-limit" env:"CRON_LIMIT" default:"20" description:"Articles per source for scheduled runs"`

	// Export
	S3Bucket    string `long:"s3-bucket" env:"S3_BUCKET" description:"Bucket for run archives (optional)"`
	S3Region    string `long:"s3-region" env:"S3_REGION" default:"us-east-1" description:"S3 region"`
	S3Endpoint  string `long:"s3-endpoint" env:"S3_ENDPOINT" description:"Custom S3 endpoint (MinIO etc.)"`
	S3AccessKey string `long:"s3-access-key" env:"S3_ACCESS_KEY" description:"S3 access key"`
	S3SecretKey string `long:"s3-secret-key" env:"S3_SECRET_KEY" description:"S3 secret key"`

	// Tracing
	TracingEnabled  bool   `long:"tracing" env:"TRACING_ENABLED" description:"Export traces over OTLP"`
	TracingEndpoint string `long:"tracing-endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317" description:"OTLP gRPC endpoint"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Karachi)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Warning: failed to load .env file: %v\n", err)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:           raw.DBPath,
		DataDir:          raw.DataDir,
		Port:             raw.Port,
		BaseUrl:          raw.BaseUrl,
		APIAccessKey:     raw.APIAccessKey,
		ProxyURL:         raw.ProxyURL,
		FetchTimeout:     time.Duration(raw.FetchTimeout) * time.Second,
		HostRate:         raw.HostRate,
		BrowserEnabled:   raw.BrowserEnabled,
		BrowserURL:       raw.BrowserURL,
		PrefetchMultiple: raw.PrefetchMultiple,
		RedisAddr:        raw.RedisAddr,
		LLMBackend:       raw.LLMBackend,
		LLMEndpoint:      raw.LLMEndpoint,
		LLMModel:         raw.LLMModel,
		LLMAPIKey:        raw.LLMAPIKey,
		PromptBudget:     raw.PromptBudget,
		SelectMode:       raw.SelectMode,
		SelectTopN:       raw.SelectTopN,
		SelectMinScore:   raw.SelectMinScore,
		CronSchedule:     raw.CronSchedule,
		CronLimit:        raw.CronLimit,
		S3Bucket:         raw.S3Bucket,
		S3Region:         raw.S3Region,
		S3Endpoint:       raw.S3Endpoint,
		S3AccessKey:      raw.S3AccessKey,
		S3SecretKey:      raw.S3SecretKey,
		TracingEnabled:   raw.TracingEnabled,
		TracingEndpoint:  raw.TracingEndpoint,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.PrefetchMultiple < 1 {
		cfg.PrefetchMultiple = 1
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
