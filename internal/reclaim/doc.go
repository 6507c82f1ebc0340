// Package reclaim keeps frame extraction a bounded distance ahead of the
// consumer and deletes per-frame artifacts once the consumer is safely past
// them.
//
// The Reclaimer owns the media decoder for one pipeline instance. Prime seeds
// the look-ahead window; Run then extracts exactly one new frame for every
// frame the consumer confirms, and hands the artifact set ReclaimLag frames
// behind the confirmed index to a bounded pool of deletion goroutines. File
// deletion failures are retried on a fixed budget and never surface as
// pipeline errors.
package reclaim
