// Package engine is the default frame consumer. It feeds every extracted
// frame through an external image upscaler, streams the result into the
// output encoder, and confirms the frame on the progress counter.
package engine
