// Command markercut finds marker-card segments across a video catalog, cuts
// them into per-video clips, and concatenates the clips into a captioned
// compilation.
package main
