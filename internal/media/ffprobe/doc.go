// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe against a cut clip or source video; the Result
// helpers convert container duration into a timecode.Timestamp for caption
// timing and report stream counts so the concat filter graph can be checked
// before ffmpeg runs.
package ffprobe
