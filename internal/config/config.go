package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	App       AppConfig
	Server    ServerConfig
	Browser   BrowserConfig
	Pipeline  PipelineConfig
	Anthropic AnthropicConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name    string `envconfig:"APP_NAME" default:"sitelens"`
	Version string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxRequestSize  int64         `envconfig:"SERVER_MAX_REQUEST_SIZE" default:"20971520"` // 20MB, covers uploaded images
	RateLimit       int           `envconfig:"SERVER_RATE_LIMIT" default:"120"`            // requests per minute
}

// BrowserConfig holds headless browser settings
type BrowserConfig struct {
	Headless      bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	SettleDelay   time.Duration `envconfig:"BROWSER_SETTLE_DELAY" default:"1500ms"`
	DesktopWidth  int           `envconfig:"BROWSER_DESKTOP_WIDTH" default:"1920"`
	DesktopHeight int           `envconfig:"BROWSER_DESKTOP_HEIGHT" default:"1080"`
	MobileWidth   int           `envconfig:"BROWSER_MOBILE_WIDTH" default:"375"`
	MobileHeight  int           `envconfig:"BROWSER_MOBILE_HEIGHT" default:"667"`
	BlockHeavy    bool          `envconfig:"BROWSER_BLOCK_HEAVY_RESOURCES" default:"true"`
}

// PipelineConfig holds audit pipeline settings
type PipelineConfig struct {
	SectionAnalysis  bool          `envconfig:"PIPELINE_SECTION_ANALYSIS" default:"true"`
	AnalysisTimeout  time.Duration `envconfig:"PIPELINE_ANALYSIS_TIMEOUT" default:"5m"`
	ScreenshotBudget int           `envconfig:"PIPELINE_SCREENSHOT_BUDGET_MB" default:"8"`
	UploadBudget     int           `envconfig:"PIPELINE_UPLOAD_BUDGET_MB" default:"2"`
}

// AnthropicConfig holds settings for the primary vision provider
type AnthropicConfig struct {
	APIKey    string        `envconfig:"ANTHROPIC_API_KEY" default:""`
	BaseURL   string        `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com"`
	Model     string        `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	MaxTokens int           `envconfig:"ANTHROPIC_MAX_TOKENS" default:"4096"`
	Timeout   time.Duration `envconfig:"ANTHROPIC_TIMEOUT" default:"30s"`
	RateRPM   int           `envconfig:"ANTHROPIC_RATE_LIMIT_RPM" default:"50"`
}

// OpenAIConfig holds settings for the secondary vision provider
type OpenAIConfig struct {
	APIKey    string        `envconfig:"OPENAI_API_KEY" default:""`
	BaseURL   string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	Model     string        `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	MaxTokens int           `envconfig:"OPENAI_MAX_TOKENS" default:"4096"`
	Timeout   time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	RateRPM   int           `envconfig:"OPENAI_RATE_LIMIT_RPM" default:"60"`
}

// GeminiConfig holds settings for the optional third vision provider
type GeminiConfig struct {
	APIKey  string        `envconfig:"GEMINI_API_KEY" default:""`
	BaseURL string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	Model   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	Timeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"30s"`
	Enabled bool          `envconfig:"GEMINI_ENABLED" default:"false"`
}

// StoreConfig selects the report store backend
type StoreConfig struct {
	// Backend: redis, postgres, memory
	Backend   string        `envconfig:"STORE_BACKEND" default:"redis"`
	ReportTTL time.Duration `envconfig:"STORE_REPORT_TTL" default:"24h"`

	// SweepInterval paces the retention sweep on backends without native
	// expiry. Redis ignores it.
	SweepInterval time.Duration `envconfig:"STORE_SWEEP_INTERVAL" default:"1h"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"sitelens"`
	Password        string        `envconfig:"DB_PASSWORD" default:""`
	Database        string        `envconfig:"DB_NAME" default:"sitelens"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig holds object storage settings for the screenshot archive
type StorageConfig struct {
	Enabled   bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Endpoint  string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	Bucket    string `envconfig:"STORAGE_BUCKET" default:"sitelens"`
	UseSSL    bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Backend {
	case "redis", "postgres", "memory":
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND must be redis, postgres or memory (got %q)", c.Store.Backend))
	}

	if c.Store.Backend == "postgres" && c.Database.Password == "" && c.Env != EnvDevelopment {
		errs = append(errs, "DB_PASSWORD is required with the postgres store outside development")
	}

	if c.Pipeline.ScreenshotBudget <= 0 || c.Pipeline.UploadBudget <= 0 {
		errs = append(errs, "compression budgets must be positive")
	}

	// Provider keys are intentionally not required here: the orchestrator
	// skips unconfigured providers and reports a diagnosable error when none
	// remain.

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// GetLogLevel returns the effective log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
