// Command upscaler upscales a video frame by frame through an external image
// upscaling engine, either as one pipeline or fanned out into partitions.
//
// Subcommands:
//   - run: single pipeline, then remux audio and subtitles from the source
//   - split: partition the source, upscale every segment concurrently, merge
//   - jobs: list, inspect, and clear persisted job history
//   - doctor: check external binaries, directories, and free space
//   - config: write a sample configuration or validate the current one
package main
