// Package config loads, normalizes, and validates the TOML configuration for
// the redub pipeline. A Config is constructed once at process start and passed
// explicitly to the orchestrator and stage handlers.
package config
