// Package ffmpeg wraps the ffmpeg invocations markercut needs: sampling still
// frames for the frame cache, cutting marker ranges out of a source video,
// and concatenating the cut clips into one compilation.
//
// Every entry point funnels through a Runner so tests can capture arguments
// without an ffmpeg binary on PATH.
package ffmpeg
