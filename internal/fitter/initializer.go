package fitter

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/san-kum/dynfit/internal/logging"
	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/pool"
	"github.com/san-kum/dynfit/internal/sampler"
)

// Initializer draws a starting ensemble in which every walker has a finite
// score.
type Initializer struct {
	pool   pool.Pool
	rng    *rand.Rand
	logger *zap.Logger

	// AboveLikelihood accepts a draw only when its score is at least the
	// running mean of the draws already accepted in its rung.
	AboveLikelihood bool
	// MaxAttempts bounds the draws spent on one rung.
	MaxAttempts int
}

func NewInitializer(p pool.Pool, rng *rand.Rand, logger *zap.Logger) *Initializer {
	return &Initializer{pool: p, rng: rng, logger: logging.OrNop(logger), MaxAttempts: DefaultConfig().MaxDrawAttempts}
}

// Draw fills a len(betas) × nwalkers ensemble. Draws for the remaining
// slots of a rung are submitted to the pool as one batch.
func (in *Initializer) Draw(ctx context.Context, betas []float64, nwalkers int) (*sampler.Ensemble, error) {
	ens := sampler.NewEnsemble(betas, nwalkers)
	for t := range betas {
		if err := in.fillRung(ctx, ens, t); err != nil {
			return nil, err
		}
	}
	return ens, nil
}

func (in *Initializer) fillRung(ctx context.Context, ens *sampler.Ensemble, t int) error {
	nwalkers := ens.NumWalkers()
	collected, attempts := 0, 0
	mean := 0.0

	for collected < nwalkers {
		if attempts >= in.MaxAttempts {
			return &InitError{Temperature: t, Attempts: attempts, Collected: collected}
		}
		batch := min(nwalkers-collected, in.MaxAttempts-attempts)
		tasks := make([]pool.Task, batch)
		for i := range tasks {
			tasks[i] = pool.Task{Kind: pool.TaskDraw, Seed: in.seed(), Test: true}
		}
		outcomes, err := in.pool.Map(ctx, tasks)
		if err != nil {
			return fmt.Errorf("fitter: draw walkers: %w", err)
		}
		attempts += batch

		for _, o := range outcomes {
			if collected == nwalkers {
				break
			}
			score := o.LogLikelihood + o.LogPrior
			if !model.IsFinite(score) {
				continue
			}
			if in.AboveLikelihood && collected > 0 && score < mean {
				continue
			}
			ens.Set(t, collected, o.X, o.LogLikelihood, o.LogPrior)
			collected++
			mean += (score - mean) / float64(collected)
		}
	}

	in.logger.Debug("rung initialized",
		zap.Int("temperature", t),
		zap.Int("draws", attempts),
		zap.Float64("mean_score", mean))
	return nil
}

// seed returns a non-zero seed so the worker does not fall back to its own
// generator.
func (in *Initializer) seed() int64 {
	for {
		if s := in.rng.Int63(); s != 0 {
			return s
		}
	}
}
