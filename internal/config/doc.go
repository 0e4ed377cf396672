// ABOUTME: Configuration package documentation
// ABOUTME: Describes the file, environment and flag layering
// Package config loads CLI configuration. Values come from built-in
// defaults, then buzz.yaml, then BUZZ_* environment variables (a .env file
// is read first when present), then command line flags bound by the caller.
package config
