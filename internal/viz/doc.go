// Package viz renders fit progress in the terminal.
//
// [Monitor] is a Bubble Tea model fed by [ProgramReporter]; it shows the
// phase, per-rung scores, acceptance and convergence diagnostics along
// with a chart of the best cold-rung score. [Trace] renders a stored
// score history for the plot command.
//
// # Key Bindings
//
//	q, ctrl+c - stop the fit
package viz
