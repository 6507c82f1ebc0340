// Package pipeline runs one upscaling pipeline instance: a frame reclaimer,
// a consumer, and a progress monitor sharing a single progress counter inside
// an isolated workspace.
//
// Job is the immutable description of that work. The partition orchestrator
// derives one Job per segment with ForPartition; nothing in a Job is shared
// between instances.
package pipeline
