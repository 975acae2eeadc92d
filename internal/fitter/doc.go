// Package fitter drives a tempered ensemble sampler to a posterior.
//
// A [Fitter] draws a starting ensemble with the [Initializer], then iterates
// the sampler in chunks. During burn-in each iteration also runs the
// [Repairer], which replaces divergent walkers, and every few iterations the
// [Fracker], which injects locally optimized positions. After every
// iteration the convergence diagnostics are refreshed and a [Progress] is
// pushed to the configured [Reporter].
//
// Runs end when the iteration budget is exhausted, the walltime is exceeded,
// the chain converges (when requested) or the context is cancelled. On
// cancellation the pool is closed and the [Prompter] is asked once whether
// the incomplete chain should be kept.
package fitter
