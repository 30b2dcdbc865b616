package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. TABVIZ_SERVER_PORT
const EnvPrefix = "TABVIZ"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Cleaning  CleaningConfig  `yaml:"cleaning" envconfig:"CLEANING"`
	Charts    ChartsConfig    `yaml:"charts" envconfig:"CHARTS"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	Environment     string        `yaml:"environment" envconfig:"ENVIRONMENT" validate:"oneof=development production test"`
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// APIKeys maps a key to a client name. Empty leaves mutations open.
	// From the environment: TABVIZ_SECURITY_API_KEYS=key1:notebook,key2:ci
	APIKeys map[string]string `yaml:"api_keys" envconfig:"API_KEYS"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console stdout file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	EnableTracing  bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics  bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// CleaningConfig mirrors the cleaning pipeline settings
type CleaningConfig struct {
	NumericStrategy     string   `yaml:"numeric_strategy" envconfig:"NUMERIC_STRATEGY" validate:"oneof=mean zero drop none"`
	CategoricalStrategy string   `yaml:"categorical_strategy" envconfig:"CATEGORICAL_STRATEGY" validate:"oneof=fill drop none"`
	NullThreshold       float64  `yaml:"null_threshold" envconfig:"NULL_THRESHOLD" validate:"gte=0,lte=1"`
	DropEmptyOrConstant bool     `yaml:"drop_empty_or_constant" envconfig:"DROP_EMPTY_OR_CONSTANT"`
	DatePatterns        []string `yaml:"date_patterns" envconfig:"DATE_PATTERNS"`
	DateColumns         []string `yaml:"date_columns" envconfig:"DATE_COLUMNS"`
	FillLabel           string   `yaml:"fill_label" envconfig:"FILL_LABEL" validate:"required"`
}

// ChartsConfig controls rendering and the image cache
type ChartsConfig struct {
	Width           int    `yaml:"width" envconfig:"WIDTH" validate:"min=200,max=4000"`
	Height          int    `yaml:"height" envconfig:"HEIGHT" validate:"min=150,max=4000"`
	TopN            int    `yaml:"top_n" envconfig:"TOP_N" validate:"min=1,max=100"`
	HistogramBins   int    `yaml:"histogram_bins" envconfig:"HISTOGRAM_BINS" validate:"min=1,max=500"`
	CacheEnabled    bool   `yaml:"cache_enabled" envconfig:"CACHE_ENABLED"`
	CachePath       string `yaml:"cache_path" envconfig:"CACHE_PATH"`
	CacheMaxEntries int    `yaml:"cache_max_entries" envconfig:"CACHE_MAX_ENTRIES" validate:"gte=0"`
}

// DataConfig controls where datasets come from and what is kept about them
type DataConfig struct {
	DataDir        string        `yaml:"data_dir" envconfig:"DIR"`
	DefaultDataset string        `yaml:"default_dataset" envconfig:"DEFAULT_DATASET"`
	Watch          bool          `yaml:"watch" envconfig:"WATCH"`
	WatchDebounce  time.Duration `yaml:"watch_debounce" envconfig:"WATCH_DEBOUNCE"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	HistoryEnabled bool          `yaml:"history_enabled" envconfig:"HISTORY_ENABLED"`
	HistoryPath    string        `yaml:"history_path" envconfig:"HISTORY_PATH"`
	Delimiter      string        `yaml:"delimiter" envconfig:"DELIMITER" validate:"max=1"`
	Sheet          string        `yaml:"sheet" envconfig:"SHEET"`
	ExportBOM      bool          `yaml:"export_bom" envconfig:"EXPORT_BOM"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
	// AllowedOrigins falls back to Security.AllowedOrigins when empty
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// Load builds the configuration from defaults, then the YAML file if one is
// found, then TABVIZ_* environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no default tags, so unset variables leave values alone
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file on cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths anchors relative data paths at the data directory, and the
// data directory at the executable directory
func (c *Config) resolvePaths() error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}

	if c.Data.DataDir == "" {
		c.Data.DataDir = paths.DataDir
	} else if !filepath.IsAbs(c.Data.DataDir) {
		c.Data.DataDir = filepath.Join(paths.ExecutableDir, c.Data.DataDir)
	}

	c.Charts.CachePath = anchor(c.Data.DataDir, c.Charts.CachePath)
	c.Data.HistoryPath = anchor(c.Data.DataDir, c.Data.HistoryPath)
	c.Data.DefaultDataset = anchor(c.Data.DataDir, c.Data.DefaultDataset)
	if c.Logging.FilePath != "" && !filepath.IsAbs(c.Logging.FilePath) {
		c.Logging.FilePath = filepath.Join(paths.ExecutableDir, c.Logging.FilePath)
	}
	return nil
}

func anchor(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

var configValidator = validator.New()

// Validate checks every section
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if c.Charts.CacheEnabled && c.Charts.CachePath == "" {
		return fmt.Errorf("charts cache enabled without a cache path")
	}
	if c.Data.HistoryEnabled && c.Data.HistoryPath == "" {
		return fmt.Errorf("load history enabled without a history path")
	}
	if c.Data.Watch && c.Data.DefaultDataset == "" {
		return fmt.Errorf("watch requires a default dataset")
	}
	return nil
}

// DelimiterRune returns the configured delimiter, 0 to sniff
func (d DataConfig) DelimiterRune() rune {
	for _, r := range d.Delimiter {
		return r
	}
	return 0
}

// WebSocketOrigins returns the origins accepted by /ws
func (c *Config) WebSocketOrigins() []string {
	if len(c.WebSocket.AllowedOrigins) > 0 {
		return c.WebSocket.AllowedOrigins
	}
	return c.Security.AllowedOrigins
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// getConfigFilePath returns TABVIZ_CONFIG or the first config file found
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}

	locations := []string{
		"tabviz.yaml",
		"configs/tabviz.yaml",
	}
	if paths, err := GetPaths(); err == nil {
		locations = append(locations, filepath.Join(paths.ExecutableDir, "tabviz.yaml"))
	}

	for _, location := range locations {
		if FileExists(location) {
			return location
		}
	}
	return ""
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  45 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080", "http://localhost:3000"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/tabviz.log",
		},
		Telemetry: TelemetryConfig{
			EnableMetrics:  true,
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		Cleaning: CleaningConfig{
			NumericStrategy:     "mean",
			CategoricalStrategy: "fill",
			NullThreshold:       0.7,
			DropEmptyOrConstant: true,
			DatePatterns:        []string{"date", "fecha", "Start_Time"},
			FillLabel:           "Unknown",
		},
		Charts: ChartsConfig{
			Width:           1000,
			Height:          600,
			TopN:            10,
			HistogramBins:   30,
			CacheEnabled:    true,
			CachePath:       "cache/charts.db",
			CacheMaxEntries: 512,
		},
		Data: DataConfig{
			WatchDebounce:  500 * time.Millisecond,
			MaxUploadBytes: 100 << 20,
			HistoryEnabled: true,
			HistoryPath:    "history.db",
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
		},
	}
}
