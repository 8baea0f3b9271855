// Package detect finds the marker ranges of a video with a two-phase search.
//
// The coarse phase classifies every frame of a 1 fps sweep and coalesces
// consecutive matches into candidates. Candidates no longer than the minimum
// duration are dropped as noise. Each survivor is refined in parallel by
// resampling a narrow window around both rough edges at 30 fps: the start is
// the first matching frame, the end is the last match immediately followed
// by a non-match.
//
// Fan-out tasks never cancel one another. A failing refinement is reported
// only after its siblings finish, so their frame cache entries stay valid for
// the next run.
package detect
