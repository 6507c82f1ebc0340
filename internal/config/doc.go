// Package config loads, normalizes, and validates upscaler configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// UPSCALER_ENGINE. The Config type centralizes every knob the CLI and the
// frame pipeline need, so workspace roots, look-ahead limits, deletion retry
// budgets, and external tool locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
