package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Scraper     ScraperConfig     `toml:"scraper"`
	Export      ExportConfig      `toml:"export"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Seeding     SeedingConfig     `toml:"seeding"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// ScraperConfig contains directory crawling configuration. The per-job
// concurrency and delay live on the job record; these are the defaults
// applied when a request omits them.
type ScraperConfig struct {
	UserAgent                 string  `toml:"user_agent"`
	UserAgentRotation         bool    `toml:"user_agent_rotation"`
	RequestTimeout            string  `toml:"request_timeout"` // e.g. "30s"
	MaxRequestsPerSecond      int     `toml:"max_requests_per_second"` // per-host fetch limiter, 0 disables
	CityDiscoveryLimit        int     `toml:"city_discovery_limit"` // cap for homepage city discovery
	DefaultConcurrentRequests int     `toml:"default_concurrent_requests" validate:"min=1,max=20"`
	DefaultRequestDelay       float64 `toml:"default_request_delay" validate:"min=0.1,max=10"`
}

// ExportConfig contains settings for the external API export pipeline
type ExportConfig struct {
	RequestTimeout   string `toml:"request_timeout"`   // per-record send timeout, e.g. "30s"
	TestTimeout      string `toml:"test_timeout"`      // connection test timeout, e.g. "10s"
	ProgressInterval int    `toml:"progress_interval"` // persist counters every N records
}

// WebSocketConfig contains configuration for event and log streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events, event type -> duration string.
	// Example: {"scrape_progress": "1s"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// MaintenanceConfig drives the background cron service
type MaintenanceConfig struct {
	Enabled           bool    `toml:"enabled"`
	GCSchedule        string  `toml:"gc_schedule"`         // value-log GC cron expression
	GCDiscardRatio    float64 `toml:"gc_discard_ratio"`    // badger GC discard ratio
	StaleAfter        string  `toml:"stale_after"`         // running jobs silent longer than this are flagged
	HeartbeatSchedule string  `toml:"heartbeat_schedule"`  // status summary log cron expression
}

// SeedingConfig locates the country catalog used by seed-jobs
type SeedingConfig struct {
	CatalogPath string `toml:"catalog_path"` // JSON or YAML catalog file
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in indago.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Scraper: ScraperConfig{
			UserAgent:                 "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			UserAgentRotation:         true,
			RequestTimeout:            "30s",
			MaxRequestsPerSecond:      0, // politeness comes from per-job request_delay
			CityDiscoveryLimit:        50,
			DefaultConcurrentRequests: 5,
			DefaultRequestDelay:       1.0,
		},
		Export: ExportConfig{
			RequestTimeout:   "30s",
			TestTimeout:      "10s",
			ProgressInterval: 10,
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
				"Publishing event",
			},
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"scrape_progress": "1s",
			},
		},
		Maintenance: MaintenanceConfig{
			Enabled:           true,
			GCSchedule:        "*/10 * * * *",
			GCDiscardRatio:    0.5,
			StaleAfter:        "30m",
			HeartbeatSchedule: "0 * * * *",
		},
		Seeding: SeedingConfig{
			CatalogPath: "./countries.json",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override
// earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the loaded configuration against struct constraints
// and duration syntax.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	for name, value := range map[string]string{
		"scraper.request_timeout": c.Scraper.RequestTimeout,
		"export.request_timeout":  c.Export.RequestTimeout,
		"export.test_timeout":     c.Export.TestTimeout,
		"maintenance.stale_after": c.Maintenance.StaleAfter,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("INDAGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("INDAGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("INDAGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("INDAGO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("INDAGO_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Logging configuration
	if level := os.Getenv("INDAGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("INDAGO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("INDAGO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Scraper configuration
	if userAgent := os.Getenv("INDAGO_SCRAPER_USER_AGENT"); userAgent != "" {
		config.Scraper.UserAgent = userAgent
	}
	if rotation := os.Getenv("INDAGO_SCRAPER_USER_AGENT_ROTATION"); rotation != "" {
		if uar, err := strconv.ParseBool(rotation); err == nil {
			config.Scraper.UserAgentRotation = uar
		}
	}
	if timeout := os.Getenv("INDAGO_SCRAPER_REQUEST_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Scraper.RequestTimeout = timeout
		}
	}
	if rps := os.Getenv("INDAGO_SCRAPER_MAX_REQUESTS_PER_SECOND"); rps != "" {
		if n, err := strconv.Atoi(rps); err == nil {
			config.Scraper.MaxRequestsPerSecond = n
		}
	}
	if concurrent := os.Getenv("INDAGO_SCRAPER_DEFAULT_CONCURRENT_REQUESTS"); concurrent != "" {
		if n, err := strconv.Atoi(concurrent); err == nil {
			config.Scraper.DefaultConcurrentRequests = n
		}
	}
	if delay := os.Getenv("INDAGO_SCRAPER_DEFAULT_REQUEST_DELAY"); delay != "" {
		if d, err := strconv.ParseFloat(delay, 64); err == nil {
			config.Scraper.DefaultRequestDelay = d
		}
	}

	// Export configuration
	if timeout := os.Getenv("INDAGO_EXPORT_REQUEST_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Export.RequestTimeout = timeout
		}
	}
	if interval := os.Getenv("INDAGO_EXPORT_PROGRESS_INTERVAL"); interval != "" {
		if n, err := strconv.Atoi(interval); err == nil && n > 0 {
			config.Export.ProgressInterval = n
		}
	}

	// WebSocket configuration
	if minLevel := os.Getenv("INDAGO_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
	if throttle := os.Getenv("INDAGO_WEBSOCKET_THROTTLE_SCRAPE_PROGRESS"); throttle != "" {
		if _, err := time.ParseDuration(throttle); err == nil {
			if config.WebSocket.ThrottleIntervals == nil {
				config.WebSocket.ThrottleIntervals = make(map[string]string)
			}
			config.WebSocket.ThrottleIntervals["scrape_progress"] = throttle
		}
	}

	// Maintenance configuration
	if enabled := os.Getenv("INDAGO_MAINTENANCE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Maintenance.Enabled = e
		}
	}
	if schedule := os.Getenv("INDAGO_MAINTENANCE_GC_SCHEDULE"); schedule != "" {
		config.Maintenance.GCSchedule = schedule
	}
	if stale := os.Getenv("INDAGO_MAINTENANCE_STALE_AFTER"); stale != "" {
		if _, err := time.ParseDuration(stale); err == nil {
			config.Maintenance.StaleAfter = stale
		}
	}

	// Seeding configuration
	if catalog := os.Getenv("INDAGO_SEEDING_CATALOG_PATH"); catalog != "" {
		config.Seeding.CatalogPath = catalog
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ParseDurationOr parses a duration string, falling back when the
// value is empty or malformed. Config validation rejects malformed
// values up front; the fallback covers zero-value structs in tests.
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ScraperTimeout returns the parsed scraper request timeout.
func (c *Config) ScraperTimeout() time.Duration {
	return ParseDurationOr(c.Scraper.RequestTimeout, 30*time.Second)
}

// ExportTimeout returns the parsed export request timeout.
func (c *Config) ExportTimeout() time.Duration {
	return ParseDurationOr(c.Export.RequestTimeout, 30*time.Second)
}

// ExportTestTimeout returns the parsed connection test timeout.
func (c *Config) ExportTestTimeout() time.Duration {
	return ParseDurationOr(c.Export.TestTimeout, 10*time.Second)
}

// StaleAfter returns the parsed stale-job threshold.
func (c *Config) StaleAfter() time.Duration {
	return ParseDurationOr(c.Maintenance.StaleAfter, 30*time.Minute)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
