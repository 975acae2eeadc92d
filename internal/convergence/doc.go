// Package convergence estimates how well a chain has mixed.
//
//   - [IntegratedTime]: windowed integrated autocorrelation time, per dimension
//   - [PSRF]: Gelman-Rubin potential scale reduction factor for one parameter
//   - [Monitor]: applies both to a live chain with the gating rules of a run
//
// Estimates that cannot be computed are reported as absent rather than
// through sentinel values.
package convergence
