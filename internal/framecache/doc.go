// Package framecache maps (video, window, rate) keys to extracted still frames.
//
// A key is populated exactly once: the extractor writes into a staging
// directory that is renamed into place only after it exits cleanly, so an
// interrupted run never leaves a half-filled key that later looks complete.
// Repeated requests for a populated key list the stored frames without
// touching the extractor, which makes reruns over the same video resumable.
//
// The frame cache performs no locking of its own. Callers must not populate
// the same key from two goroutines; the detector verifies its refinement
// keys are distinct before fanning out.
package framecache
