// Package logging assembles structured slog loggers and formatting helpers used
// across upscaler components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs, partition indexes, and correlation IDs. The console
// handler folds the component and partition attributes into a short
// "reclaimer[p1]:" prefix so interleaved partition output stays readable.
package logging
