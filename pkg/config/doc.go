// Package config loads and validates the orchestrator configuration from a
// YAML file layered over built-in defaults. Durations are written as Go
// duration strings ("30m", "1h30m").
package config
