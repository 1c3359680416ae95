package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "fieldlink"

	// DefaultTimeout bounds a single HTTP fetch of a remote page.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of documents rendered concurrently.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies fieldlink in HTTP requests.
	DefaultUserAgent = "fieldlink/1.0 (+https://github.com/nao1215/fieldlink)"

	// DefaultMaxBodySize limits the response body read from a remote page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultPollInterval is how often the watch command checks for changed
	// snapshots.
	DefaultPollInterval = 2 * time.Second

	// DefaultPageChangeDelay is the wait between a page change and its scan.
	DefaultPageChangeDelay = 100 * time.Millisecond

	// DefaultObserveDelay is the wait before mutations trigger scans.
	DefaultObserveDelay = 500 * time.Millisecond

	// DefaultListenAddr is the proxy listen address.
	DefaultListenAddr = "127.0.0.1:8080"
)

// Config holds the options for one fieldlink invocation.
// It is filled from CLI flags and the optional config file, then passed
// down explicitly.
type Config struct {
	// Sources are the documents to render: file paths, http(s) URLs, or
	// "-" for stdin. For the watch command, the first source is the
	// directory to watch.
	Sources []string

	// Timeout is the HTTP timeout for fetching remote sources.
	Timeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs writes logs as JSON instead of text.
	JSONLogs bool

	// BatchSize is the number of documents rendered concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .fieldlink is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	SiteConfigs *File

	// JSONReport selects the JSON report format.
	JSONReport bool

	// MarkdownReport selects the Markdown report format.
	MarkdownReport bool

	// ReportFile is the report output path. Empty means stdout.
	ReportFile string

	// OutputDir receives the rendered documents. Empty means rendered
	// documents are not written, unless Stdout is set.
	OutputDir string

	// Stdout writes the rendered document to stdout instead of a report.
	// Only valid with a single source.
	Stdout bool

	// Selectors override the field selectors from the config file and the
	// built-in defaults.
	Selectors []string

	// SameTab disables target="_blank" on generated anchors regardless of
	// the site settings.
	SameTab bool

	// DisableEscapedHTML turns off decoding of entity-escaped anchors.
	DisableEscapedHTML bool

	// WholeField enables the whole-field URL shortcut.
	WholeField bool

	// DBDir is the directory of the history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records every render run in the history database.
	SaveToDB bool

	// SkipRecent skips sources the history database shows were rendered
	// within this window. Zero renders every source.
	SkipRecent time.Duration

	// UserAgent is sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// SocksProxy is a SOCKS5 proxy address (host:port) used for remote
	// requests. Empty means direct connections.
	SocksProxy string

	// PollInterval is the watch command's polling period.
	PollInterval time.Duration

	// PageChangeDelay is the observer's delay before a page change scan.
	PageChangeDelay time.Duration

	// ObserveDelay is the observer's delay before mutations trigger scans.
	ObserveDelay time.Duration

	// ListenAddr is the proxy listen address.
	ListenAddr string

	// Upstream is the base URL the proxy forwards to.
	Upstream string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		BatchSize:       DefaultBatchSize,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		PollInterval:    DefaultPollInterval,
		PageChangeDelay: DefaultPageChangeDelay,
		ObserveDelay:    DefaultObserveDelay,
		ListenAddr:      DefaultListenAddr,
	}
}

// XDGDataDir returns the XDG data directory for fieldlink.
// On Linux: ~/.local/share/fieldlink
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for fieldlink.
// On Linux: ~/.config/fieldlink
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks option values that every command shares.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.PageChangeDelay < 0 || c.ObserveDelay < 0 {
		return ErrInvalidDelay
	}
	if c.SkipRecent < 0 {
		return ErrInvalidSkipRecent
	}
	return nil
}

// ValidateSources checks the options of commands that render sources.
func (c *Config) ValidateSources() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Sources) == 0 {
		return ErrNoSource
	}
	if c.Stdout && len(c.Sources) > 1 {
		return ErrStdoutMultipleSources
	}
	return nil
}

// ValidateProxy checks the options of the proxy command.
func (c *Config) ValidateProxy() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Upstream == "" {
		return ErrNoUpstream
	}
	if c.ListenAddr == "" {
		return ErrNoListenAddr
	}
	return nil
}

// EffectiveSelectors returns the field selectors to use: CLI selectors
// first, then the config file, then nil for the built-in defaults.
func (c *Config) EffectiveSelectors() []string {
	if len(c.Selectors) > 0 {
		return c.Selectors
	}
	if c.SiteConfigs != nil && len(c.SiteConfigs.Selectors) > 0 {
		return c.SiteConfigs.Selectors
	}
	return nil
}

// EffectiveDBDir returns DBDir, or the XDG data directory when unset.
func (c *Config) EffectiveDBDir() string {
	if c.DBDir != "" {
		return c.DBDir
	}
	return XDGDataDir()
}
