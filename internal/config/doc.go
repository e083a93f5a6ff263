// Package config loads, validates, and normalizes couchlog configuration.
//
// Configuration lives in a TOML file (default ~/.config/couchlog/config.toml),
// with repository defaults applied first, then file values, then COUCHLOG_*
// environment overrides. All path fields are expanded to absolute paths before
// the config is handed to other packages.
package config
