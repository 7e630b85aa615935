package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath  string
	DataDir string

	// HTTP API
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Fetching
	ProxyURL         string
	FetchTimeout     time.Duration
	HostRate         float64
	BrowserEnabled   bool
	BrowserURL       string
	PrefetchMultiple int
	RedisAddr        string

	// Layer 3
	LLMBackend     string
	LLMEndpoint    string
	LLMModel       string
	LLMAPIKey      string
	PromptBudget   int
	SelectMode     string
	SelectTopN     int
	SelectMinScore float64

	// Scheduling
	CronSchedule string
	CronLimit    int

	// Export
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// Tracing
	TracingEnabled  bool
	TracingEndpoint string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

func (c *Cfg) S3Enabled() bool {
	return c.S3Bucket != ""
}
