package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nestsync/pkg/timestamp"
)

// Duration is a time.Duration that YAML files spell as "30s" or "1500ms".
// yaml.v3 has no native duration handling, so it carries its own hooks.
type Duration time.Duration

// UnmarshalYAML accepts Go duration strings; bare numbers read as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		n, nerr := strconv.ParseInt(s, 10, 64)
		if nerr != nil {
			return fmt.Errorf("invalid duration %q", s)
		}
		parsed = time.Duration(n) * time.Second
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the canonical duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config holds all configuration options for the feed sync tool
type Config struct {
	// Sproutbook service settings
	Service ServiceConfig `yaml:"service" json:"service"`

	// Feed pagination and watermark settings
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Media download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Metadata stamping settings
	Stamping StampingConfig `yaml:"stamping" json:"stamping"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServiceConfig holds Sproutbook-specific configuration
type ServiceConfig struct {
	BaseURL        string   `yaml:"base_url" json:"base_url"`
	AccountID      string   `yaml:"account_id" json:"account_id"`
	SessionCookie  string   `yaml:"session_cookie" json:"session_cookie"`
	UserAgent      string   `yaml:"user_agent" json:"user_agent"`
	Categories     []string `yaml:"categories" json:"categories"`
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"`
}

// SyncConfig holds feed pagination and watermark configuration
type SyncConfig struct {
	Start         string   `yaml:"start" json:"start"`
	End           string   `yaml:"end" json:"end"`
	PageSize      int      `yaml:"page_size" json:"page_size"`
	MaxPages      int      `yaml:"max_pages" json:"max_pages"`
	PageDelay     Duration `yaml:"page_delay" json:"page_delay"`
	RetryAttempts int      `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay    Duration `yaml:"retry_delay" json:"retry_delay"`
	AssetCap      int      `yaml:"asset_cap" json:"asset_cap"`
	Timezone      string   `yaml:"timezone" json:"timezone"`
	StateFile     string   `yaml:"state_file" json:"state_file"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int      `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     Duration `yaml:"download_timeout" json:"download_timeout"`
	SkipVideos          bool     `yaml:"skip_videos" json:"skip_videos"`
	SkipImages          bool     `yaml:"skip_images" json:"skip_images"`
}

// StampingConfig holds metadata stamping configuration
type StampingConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	ExiftoolBinary string `yaml:"exiftool_binary" json:"exiftool_binary"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory      string `yaml:"base_directory" json:"base_directory"`
	CreateChildFolders bool   `yaml:"create_child_folders" json:"create_child_folders"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:        "https://app.getsproutbook.com",
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Categories:     []string{"note", "photo", "video"},
			RequestTimeout: Duration(30 * time.Second),
		},
		Sync: SyncConfig{
			PageSize:      100,
			MaxPages:      0, // 0 means no page limit
			PageDelay:     Duration(1500 * time.Millisecond),
			RetryAttempts: 3,
			RetryDelay:    Duration(5 * time.Second),
			AssetCap:      0, // 0 means unlimited
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     Duration(60 * time.Second),
			SkipVideos:          false,
			SkipImages:          false,
		},
		Stamping: StampingConfig{
			Enabled: true,
		},
		Output: OutputConfig{
			BaseDirectory:      "./nestsync-media",
			CreateChildFolders: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("NESTSYNC_BASE_URL"); baseURL != "" {
		c.Service.BaseURL = baseURL
	}
	if accountID := os.Getenv("NESTSYNC_ACCOUNT_ID"); accountID != "" {
		c.Service.AccountID = accountID
	}
	if cookie := os.Getenv("NESTSYNC_SESSION_COOKIE"); cookie != "" {
		c.Service.SessionCookie = cookie
	}
	if userAgent := os.Getenv("NESTSYNC_USER_AGENT"); userAgent != "" {
		c.Service.UserAgent = userAgent
	}

	if rpm := os.Getenv("NESTSYNC_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if outputDir := os.Getenv("NESTSYNC_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if concurrent := os.Getenv("NESTSYNC_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if cap := os.Getenv("NESTSYNC_ASSET_CAP"); cap != "" {
		var val int
		fmt.Sscanf(cap, "%d", &val)
		if val >= 0 {
			c.Sync.AssetCap = val
		}
	}

	if tz := os.Getenv("NESTSYNC_TIMEZONE"); tz != "" {
		c.Sync.Timezone = tz
	}

	if stateFile := os.Getenv("NESTSYNC_STATE_FILE"); stateFile != "" {
		c.Sync.StateFile = stateFile
	}

	if logLevel := os.Getenv("NESTSYNC_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".nestsync.yaml",
		".nestsync.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "nestsync", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "nestsync", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".nestsync.yaml"),
		filepath.Join(os.Getenv("HOME"), ".nestsync.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Service.BaseURL == "" {
		errs = append(errs, errors.New("service base URL is required"))
	}
	if len(c.Service.Categories) == 0 {
		errs = append(errs, errors.New("at least one feed category is required"))
	}
	if c.Service.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Sync.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Sync.PageSize > 500 {
		errs = append(errs, errors.New("page size should not exceed 500"))
	}
	if c.Sync.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Sync.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry attempts cannot be negative"))
	}
	if c.Sync.AssetCap < 0 {
		errs = append(errs, errors.New("asset cap cannot be negative"))
	}
	if c.Sync.Timezone != "" {
		if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("unknown timezone %q", c.Sync.Timezone))
		}
	}
	if c.Sync.Start != "" {
		if _, err := timestamp.Parse(c.Sync.Start, timestamp.CivilLocal, time.UTC); err != nil {
			errs = append(errs, fmt.Errorf("cannot interpret sync start %q", c.Sync.Start))
		}
	}
	if c.Sync.End != "" {
		if _, err := timestamp.Parse(c.Sync.End, timestamp.CivilLocal, time.UTC); err != nil {
			errs = append(errs, fmt.Errorf("cannot interpret sync end %q", c.Sync.End))
		}
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// StartTime returns the configured start override resolved in loc, if set.
func (c *SyncConfig) StartTime(loc *time.Location) (time.Time, bool) {
	if c.Start == "" {
		return time.Time{}, false
	}
	r, err := timestamp.Parse(c.Start, timestamp.CivilLocal, loc)
	if err != nil {
		return time.Time{}, false
	}
	return r.Time, true
}

// EndTime returns the configured end bound resolved in loc, if set.
func (c *SyncConfig) EndTime(loc *time.Location) (time.Time, bool) {
	if c.End == "" {
		return time.Time{}, false
	}
	r, err := timestamp.Parse(c.End, timestamp.CivilLocal, loc)
	if err != nil {
		return time.Time{}, false
	}
	return r.Time, true
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if accountID, ok := flags["account"].(string); ok && accountID != "" {
		c.Service.AccountID = accountID
	}
	if cookie, ok := flags["session-cookie"].(string); ok && cookie != "" {
		c.Service.SessionCookie = cookie
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Sync.PageSize = pageSize
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Sync.MaxPages = maxPages
	}
	if assetCap, ok := flags["asset-cap"].(int); ok && assetCap >= 0 {
		c.Sync.AssetCap = assetCap
	}
	if start, ok := flags["start"].(string); ok && start != "" {
		c.Sync.Start = start
	}
	if end, ok := flags["end"].(string); ok && end != "" {
		c.Sync.End = end
	}
	if tz, ok := flags["timezone"].(string); ok && tz != "" {
		c.Sync.Timezone = tz
	}
	if stateFile, ok := flags["state-file"].(string); ok && stateFile != "" {
		c.Sync.StateFile = stateFile
	}
	if skipVideos, ok := flags["skip-videos"].(bool); ok && skipVideos {
		c.Download.SkipVideos = true
	}
	if skipImages, ok := flags["skip-images"].(bool); ok && skipImages {
		c.Download.SkipImages = true
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".nestsync.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
