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
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "NOTIONX_"

// Delivery targets
const (
	TargetNotion   = "notion"
	TargetMarkdown = "markdown"
)

// Config holds all configuration options for notionx
type Config struct {
	Notion        NotionConfig       `yaml:"notion" json:"notion"`
	Queue         QueueConfig        `yaml:"queue" json:"queue"`
	Walk          WalkConfig         `yaml:"walk" json:"walk"`
	Browser       BrowserConfig      `yaml:"browser" json:"browser"`
	Output        OutputConfig       `yaml:"output" json:"output"`
	Archive       ArchiveConfig      `yaml:"archive" json:"archive"`
	Server        ServerConfig       `yaml:"server" json:"server"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// NotionConfig holds the Notion integration settings. The token is normally
// kept in the credential store and only overridden here.
type NotionConfig struct {
	Token      string            `yaml:"token,omitempty" json:"token,omitempty"`
	DatabaseID string            `yaml:"database_id" json:"database_id"`
	BaseURL    string            `yaml:"base_url" json:"base_url"`
	APIVersion string            `yaml:"api_version" json:"api_version"`
	Timeout    time.Duration     `yaml:"timeout" json:"timeout"`
	MaxRetries int               `yaml:"max_retries" json:"max_retries"`
	TypeLabels map[string]string `yaml:"type_labels" json:"type_labels"`
}

// QueueConfig configures the serialized delivery queue
type QueueConfig struct {
	RequestsPerSecond  float64       `yaml:"requests_per_second" json:"requests_per_second"`
	DefaultRetryAfter  time.Duration `yaml:"default_retry_after" json:"default_retry_after"`
	MaxThrottleRetries int           `yaml:"max_throttle_retries" json:"max_throttle_retries"`
}

// WalkConfig bounds a thread walk
type WalkConfig struct {
	MaxScrollAttempts           int           `yaml:"max_scroll_attempts" json:"max_scroll_attempts"`
	MaxConsecutiveNoNewItem     int           `yaml:"max_consecutive_no_new_item" json:"max_consecutive_no_new_item"`
	MaxConsecutiveMissingAuthor int           `yaml:"max_consecutive_missing_author" json:"max_consecutive_missing_author"`
	MaxItems                    int           `yaml:"max_items" json:"max_items"`
	SettleDelay                 time.Duration `yaml:"settle_delay" json:"settle_delay"`
	AuthorRetryDelay            time.Duration `yaml:"author_retry_delay" json:"author_retry_delay"`
}

// BrowserConfig configures the headless browser used to read live pages
type BrowserConfig struct {
	ProfileDir      string        `yaml:"profile_dir" json:"profile_dir"`
	Headless        bool          `yaml:"headless" json:"headless"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
	PageTimeout     time.Duration `yaml:"page_timeout" json:"page_timeout"`
	ConcurrentPages int           `yaml:"concurrent_pages" json:"concurrent_pages"`
}

// OutputConfig selects delivery targets and the markdown export directory
type OutputConfig struct {
	Targets   []string `yaml:"targets" json:"targets"`
	Directory string   `yaml:"directory" json:"directory"`
}

// ArchiveConfig configures the local history journal
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// ServerConfig configures the local HTTP bridge
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Format  string `yaml:"format" json:"format"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with the stock settings
func DefaultConfig() *Config {
	return &Config{
		Notion: NotionConfig{
			BaseURL:    "https://api.notion.com/v1",
			APIVersion: "2022-06-28",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			TypeLabels: DefaultTypeLabels(),
		},
		Queue: QueueConfig{
			RequestsPerSecond:  3,
			DefaultRetryAfter:  5 * time.Second,
			MaxThrottleRetries: 20,
		},
		Walk: WalkConfig{
			MaxScrollAttempts:           10,
			MaxConsecutiveNoNewItem:     2,
			MaxConsecutiveMissingAuthor: 3,
			MaxItems:                    200,
			SettleDelay:                 500 * time.Millisecond,
			AuthorRetryDelay:            300 * time.Millisecond,
		},
		Browser: BrowserConfig{
			ProfileDir:      filepath.Join(DataDir(), "browser"),
			Headless:        true,
			UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			PageTimeout:     90 * time.Second,
			ConcurrentPages: 2,
		},
		Output: OutputConfig{
			Targets:   []string{TargetNotion},
			Directory: "./notionx-export",
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    filepath.Join(DataDir(), "history.db"),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultTypeLabels returns the Notion select option used for each content classification
func DefaultTypeLabels() map[string]string {
	return map[string]string{
		"single":     "推文",
		"thread":     "线程",
		"media_only": "图片",
		"page":       "网页",
	}
}

// DataDir returns the per-user directory notionx keeps its state in
func DataDir() string {
	if dir := os.Getenv(EnvPrefix + "DATA_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "notionx")
	}
	return ".notionx"
}

// LoadFromEnv loads configuration from NOTIONX_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	envString("NOTION_TOKEN", &c.Notion.Token)
	envString("NOTION_DATABASE_ID", &c.Notion.DatabaseID)
	envString("NOTION_BASE_URL", &c.Notion.BaseURL)
	errs = append(errs,
		envFloat("REQUESTS_PER_SECOND", &c.Queue.RequestsPerSecond),
		envDuration("DEFAULT_RETRY_AFTER", &c.Queue.DefaultRetryAfter),
		envInt("MAX_THROTTLE_RETRIES", &c.Queue.MaxThrottleRetries),
		envBool("HEADLESS", &c.Browser.Headless),
		envInt("CONCURRENT_PAGES", &c.Browser.ConcurrentPages),
		envBool("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled),
	)
	envString("PROFILE_DIR", &c.Browser.ProfileDir)
	envString("OUTPUT_DIR", &c.Output.Directory)
	envString("ARCHIVE_PATH", &c.Archive.Path)
	envString("SERVER_ADDR", &c.Server.Addr)
	envString("LOG_LEVEL", &c.Logging.Level)

	if targets := os.Getenv(EnvPrefix + "TARGETS"); targets != "" {
		c.Output.Targets = splitList(targets)
	}

	return errors.Join(errs...)
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = f
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = d
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = b
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
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

// FindConfigFile returns the first existing config file in the standard locations
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".notionx.yaml",
		".notionx.yml",
		filepath.Join(home, ".config", "notionx", "config.yaml"),
		filepath.Join(home, ".notionx.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// DefaultConfigPath is where `config init` writes a new file
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "notionx", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Queue.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("queue.requests_per_second must be positive"))
	}
	if c.Queue.DefaultRetryAfter <= 0 {
		errs = append(errs, errors.New("queue.default_retry_after must be positive"))
	}
	if c.Queue.MaxThrottleRetries < 0 {
		errs = append(errs, errors.New("queue.max_throttle_retries cannot be negative"))
	}

	if c.Walk.MaxScrollAttempts <= 0 || c.Walk.MaxConsecutiveNoNewItem <= 0 || c.Walk.MaxConsecutiveMissingAuthor <= 0 {
		errs = append(errs, errors.New("walk limits must be positive"))
	}
	if c.Walk.MaxItems < 0 {
		errs = append(errs, errors.New("walk.max_items cannot be negative"))
	}

	if c.Browser.ConcurrentPages <= 0 || c.Browser.ConcurrentPages > 8 {
		errs = append(errs, errors.New("browser.concurrent_pages must be between 1 and 8"))
	}
	if c.Browser.PageTimeout <= 0 {
		errs = append(errs, errors.New("browser.page_timeout must be positive"))
	}

	if len(c.Output.Targets) == 0 {
		errs = append(errs, errors.New("output.targets must name at least one target"))
	}
	for _, t := range c.Output.Targets {
		switch t {
		case TargetNotion:
			if c.Notion.BaseURL == "" {
				errs = append(errs, errors.New("notion.base_url is required"))
			}
		case TargetMarkdown:
			if c.Output.Directory == "" {
				errs = append(errs, errors.New("output.directory is required for markdown export"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown output target %q", t))
		}
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive.path is required when the archive is enabled"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	validNotifTypes := map[string]bool{"terminal": true, "desktop": true, "none": true}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, fmt.Errorf("invalid notification type %q", c.Notifications.NotificationType))
	}

	return errors.Join(errs...)
}

// HasTarget reports whether name is one of the configured delivery targets
func (c *Config) HasTarget(name string) bool {
	for _, t := range c.Output.Targets {
		if t == name {
			return true
		}
	}
	return false
}

// Save writes the configuration to path with owner-only permissions
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["database"].(string); ok && v != "" {
		c.Notion.DatabaseID = v
	}
	if v, ok := flags["rps"].(float64); ok && v > 0 {
		c.Queue.RequestsPerSecond = v
	}
	if v, ok := flags["targets"].([]string); ok && len(v) > 0 {
		c.Output.Targets = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Browser.ConcurrentPages = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["addr"].(string); ok && v != "" {
		c.Server.Addr = v
	}
}

// Load loads configuration from all sources.
// Precedence: flags > environment (including .env files) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".notionx.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
