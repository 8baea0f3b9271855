// Package preflight provides readiness checks for the filesystem paths and
// external programs markercut depends on.
//
// These checks run in two contexts:
//   - Batch commands call RunAll before touching the catalog. A failing check
//     aborts the run instead of failing every video one by one.
//   - The "markercut doctor" command prints every check plus the dependency
//     report from CheckSystemDeps and the tool versions.
//
// Checks gated by config (captions, CUDA) are skipped when disabled.
package preflight
