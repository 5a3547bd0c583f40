// Package config loads, validates, and normalizes podforge's TOML
// configuration. A sample config is embedded for `podforge config init`.
package config
