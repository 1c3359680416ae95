// Package config provides the configuration of fieldlink: CLI options with
// their defaults, and the optional YAML file holding renderer settings,
// selectors, and per-site request options.
package config
