// Package sampler provides the parallel-tempered ensemble MCMC primitives.
//
// The package defines the state that the fitter drives iteration by
// iteration:
//
//   - [Walker]: one candidate position with its scores
//   - [Ensemble]: the ntemps × nwalkers matrix of walkers, plus the
//     inverse-temperature ladder
//   - [Chain]: the append-only history of ensemble snapshots
//   - [Kernel]: the affine-invariant stretch move with adjacent-rung
//     temperature swaps
//
// # Example
//
//	k := sampler.NewKernel(p, rng, sampler.KernelOptions{})
//	for step, err := range k.Sample(ctx, ens, 100, false) {
//	    if err != nil {
//	        return err
//	    }
//	    chain.Append(step.Ensemble)
//	}
//
// # Thread Safety
//
// Ensembles and chains are owned by a single coordinating goroutine. The
// kernel only hands plain position copies to the pool.
package sampler
