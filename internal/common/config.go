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
	Profile  ProfileConfig  `toml:"profile" validate:"required"`
	Storage  StorageConfig  `toml:"storage" validate:"required"`
	Browser  BrowserConfig  `toml:"browser"`
	Collect  CollectConfig  `toml:"collect"`
	Process  ProcessConfig  `toml:"process"`
	Schedule ScheduleConfig `toml:"schedule"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ProfileConfig identifies the authenticated account whose answer listing is harvested
type ProfileConfig struct {
	Account    string `toml:"account" validate:"required"` // Profile slug, e.g. "Kanthaswamy-Balasubramaniam"
	BaseURL    string `toml:"base_url"`                    // Source site root (default: "https://www.quora.com")
	ListingURL string `toml:"listing_url"`                 // Explicit override; default derived from account
}

// StorageConfig contains SQLite database settings
type StorageConfig struct {
	Path          string `toml:"path" validate:"required"` // Database file path
	CacheSizeMB   int    `toml:"cache_size_mb"`            // SQLite page cache size
	WALMode       bool   `toml:"wal_mode"`                 // Enable WAL journal mode
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`          // Lock wait before SQLITE_BUSY
}

// BrowserConfig contains Chrome session settings shared by both phases.
// Duration settings are TOML strings (e.g. "30s") parsed during load; the
// typed fields are what the rest of the code reads.
type BrowserConfig struct {
	ProcessBasePort int    `toml:"process_base_port"` // Worker i binds process_base_port+i
	CollectBasePort int    `toml:"collect_base_port"` // Disjoint range so both modes can run at once
	UserAgent       string `toml:"user_agent"`
	Headless        bool   `toml:"headless"`         // Headless only makes sense with a pre-authenticated profile dir
	ProfileDirBase  string `toml:"profile_dir_base"` // Isolated user-data-dir root for launched instances

	ConnectTimeoutText  string `toml:"connect_timeout"`  // e.g., "30s"
	NavigateTimeoutText string `toml:"navigate_timeout"` // e.g., "45s"
	SelectorTimeoutText string `toml:"selector_timeout"` // e.g., "10s" - per-selector wait during extraction

	ConnectTimeout  time.Duration `toml:"-"`
	NavigateTimeout time.Duration `toml:"-"`
	SelectorTimeout time.Duration `toml:"-"`
}

// CollectConfig controls the listing scroll session
type CollectConfig struct {
	TimeBudgetText  string `toml:"time_budget"`      // e.g., "5m" - hard cap on the scroll session
	ScrollPauseText string `toml:"scroll_pause"`     // e.g., "2s" - wait after each scroll for lazy content
	StagnationLimit int    `toml:"stagnation_limit"` // Consecutive no-new-link scrolls before stopping

	TimeBudget  time.Duration `toml:"-"`
	ScrollPause time.Duration `toml:"-"`
}

// ProcessConfig controls the detail-processing workers
type ProcessConfig struct {
	Workers            int     `toml:"workers" validate:"min=1,max=5"` // Concurrent browser sessions
	RatePerSecond      float64 `toml:"rate_per_second" validate:"gt=0"` // Per-worker navigation rate
	RetryAttempts      int     `toml:"retry_attempts" validate:"min=1"` // Attempt budget for transient failures
	InitialBackoffText string  `toml:"initial_backoff"`                 // e.g., "1s"
	MaxBackoffText     string  `toml:"max_backoff"`                     // e.g., "30s"

	InitialBackoff time.Duration `toml:"-"`
	MaxBackoff     time.Duration `toml:"-"`
}

// ScheduleConfig contains cron schedules for watch mode
type ScheduleConfig struct {
	Collect string `toml:"collect"` // Six-field cron expression, e.g. "0 0 */6 * * *"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for stability; only user-facing
// settings should be exposed in colligo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Profile: ProfileConfig{
			BaseURL: "https://www.quora.com",
		},
		Storage: StorageConfig{
			Path:          "./data/colligo.db",
			CacheSizeMB:   32,
			WALMode:       true,
			BusyTimeoutMS: 5000,
		},
		Browser: BrowserConfig{
			ProcessBasePort: 9222,
			CollectBasePort: 9320,
			UserAgent:       "",
			Headless:        false,
			ProfileDirBase:  os.TempDir(),
			ConnectTimeout:  30 * time.Second,
			NavigateTimeout: 45 * time.Second,
			SelectorTimeout: 10 * time.Second,
		},
		Collect: CollectConfig{
			TimeBudget:      5 * time.Minute,
			ScrollPause:     2 * time.Second,
			StagnationLimit: 3,
		},
		Process: ProcessConfig{
			Workers:        3,
			RatePerSecond:  1.0,
			RetryAttempts:  3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Collect: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// ListingURL returns the profile answers listing URL, deriving it from the
// account slug when no explicit override is configured.
func (c *Config) ListingURL() string {
	if c.Profile.ListingURL != "" {
		return c.Profile.ListingURL
	}
	return fmt.Sprintf("%s/profile/%s/answers", strings.TrimRight(c.Profile.BaseURL, "/"), c.Profile.Account)
}

// LoadFromFiles loads configuration with precedence: defaults -> files (in order) -> env
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

	if err := config.resolveDurations(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// resolveDurations parses the TOML duration strings into the typed fields.
// go-toml/v2 cannot decode a TOML string into time.Duration, so duration
// settings travel as strings (e.g. "30s") and are converted here; empty
// strings keep the default.
func (c *Config) resolveDurations() error {
	settings := []struct {
		name   string
		text   string
		target *time.Duration
	}{
		{"browser.connect_timeout", c.Browser.ConnectTimeoutText, &c.Browser.ConnectTimeout},
		{"browser.navigate_timeout", c.Browser.NavigateTimeoutText, &c.Browser.NavigateTimeout},
		{"browser.selector_timeout", c.Browser.SelectorTimeoutText, &c.Browser.SelectorTimeout},
		{"collect.time_budget", c.Collect.TimeBudgetText, &c.Collect.TimeBudget},
		{"collect.scroll_pause", c.Collect.ScrollPauseText, &c.Collect.ScrollPause},
		{"process.initial_backoff", c.Process.InitialBackoffText, &c.Process.InitialBackoff},
		{"process.max_backoff", c.Process.MaxBackoffText, &c.Process.MaxBackoff},
	}

	for _, s := range settings {
		if s.text == "" {
			continue
		}
		d, err := time.ParseDuration(s.text)
		if err != nil {
			return fmt.Errorf("invalid configuration: %s %q: %w", s.name, s.text, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid configuration: %s must be positive, got %q", s.name, s.text)
		}
		*s.target = d
	}
	return nil
}

// Validate checks required fields and bounds before any worker starts
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Browser.ProcessBasePort == c.Browser.CollectBasePort {
		return fmt.Errorf("invalid configuration: process_base_port and collect_base_port must differ")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if account := os.Getenv("COLLIGO_PROFILE_ACCOUNT"); account != "" {
		config.Profile.Account = account
	}
	if listing := os.Getenv("COLLIGO_PROFILE_LISTING_URL"); listing != "" {
		config.Profile.ListingURL = listing
	}
	if path := os.Getenv("COLLIGO_STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}
	if port := os.Getenv("COLLIGO_PROCESS_BASE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Browser.ProcessBasePort = p
		}
	}
	if port := os.Getenv("COLLIGO_COLLECT_BASE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Browser.CollectBasePort = p
		}
	}
	if workers := os.Getenv("COLLIGO_PROCESS_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Process.Workers = w
		}
	}
	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("COLLIGO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}
