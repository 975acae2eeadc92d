// Package pool provides the blocking parallel-map primitive used to
// evaluate likelihoods, draw walkers and run local optimizations.
//
// Three strategies implement [Pool]:
//
//   - [Serial]: evaluates tasks one after another in the calling goroutine.
//   - [Parallel]: a fixed set of goroutine workers, each owning its own
//     model instance built by the per-worker [model.Factory].
//   - [NATS]: ships tasks to worker processes subscribed to a queue group;
//     see [Serve] for the worker side.
//
// The strategy is chosen once at startup with [New] and never switched.
// Workers are pure: a task maps an input position to scores or an optimum
// and never touches sampler state.
package pool
