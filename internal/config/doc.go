// Package config loads, validates, and normalizes reelsmith configuration.
//
// Configuration is TOML, resolved from an explicit path, ~/.config/reelsmith/
// config.toml, or a project-local reelsmith.toml. Defaults live in
// defaults.go; normalization expands paths and clamps zero values; validation
// rejects configurations that would fail mid-pipeline (missing provider
// models, rate bounds that cross, duplicate pricing rules).
//
// Pricing rules deserve a note: every paid provider call is preceded by a
// price lookup, and a missing rule fails the stage before any network call is
// made. Keep the pricing table in sync with the providers you configure.
package config
