// Package config loads, normalizes, and validates trimsync configuration
// from TOML. All path fields are tilde-expanded and absolute after Load.
package config
