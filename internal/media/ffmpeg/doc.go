// Package ffmpeg drives the ffmpeg binary for every media operation the
// upscaler needs: splitting a source into segments, decoding frames into the
// workspace, encoding upscaled frames, concatenating partition outputs, and
// remuxing the original audio and subtitle tracks.
//
// All invocations go through commandContext so tests can substitute a helper
// process. Non-zero exits are tagged with services.ErrExternalTool and carry
// the tail of ffmpeg's stderr.
package ffmpeg
