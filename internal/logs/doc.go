// Package logs reads upscaler's JSON log file for the `upscaler logs` command.
//
// Tail returns the last N records (optionally only one job's) with bounded
// memory, and the byte offset to resume from. Follow streams records appended
// after an offset until its context ends; it wakes on fsnotify write events
// and falls back to periodic polling when the watch cannot be established.
package logs
