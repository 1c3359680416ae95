package config

import "errors"

// Configuration validation errors returned by the Validate methods.
// Callers match them with errors.Is.
var (
	// ErrNoSource is returned when a command that renders documents is
	// given no source.
	ErrNoSource = errors.New("no source specified: provide a file, a URL, or - for stdin")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidPollInterval is returned when the poll interval is not positive.
	ErrInvalidPollInterval = errors.New("invalid poll interval: must be positive")

	// ErrInvalidDelay is returned when an observer delay is negative.
	ErrInvalidDelay = errors.New("invalid observer delay: must be non-negative")

	// ErrInvalidSkipRecent is returned when the skip-recent window is negative.
	ErrInvalidSkipRecent = errors.New("invalid skip-recent window: must be non-negative")

	// ErrStdoutMultipleSources is returned when --stdout is combined with
	// more than one source.
	ErrStdoutMultipleSources = errors.New("--stdout accepts exactly one source")

	// ErrNoUpstream is returned when the proxy has no upstream URL.
	ErrNoUpstream = errors.New("no upstream specified: use --upstream")

	// ErrNoListenAddr is returned when the proxy has no listen address.
	ErrNoListenAddr = errors.New("no listen address specified: use --listen")
)
