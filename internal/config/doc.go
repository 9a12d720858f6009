// Package config loads, validates, and normalizes the sublingo TOML
// configuration. The resolved Config is immutable after process start and is
// passed by reference into every adapter.
package config
