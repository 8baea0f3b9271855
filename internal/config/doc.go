// Package config loads, normalizes, and validates markercut configuration.
//
// Values are layered: repository defaults, then the TOML file, then
// MARKERCUT_* environment overrides. Paths are tilde-expanded and made
// absolute before validation, so downstream packages always receive clean
// directories and a usable detection profile.
package config
