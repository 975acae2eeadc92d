package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/dynfit/internal/fitter"
	"github.com/san-kum/dynfit/internal/pool"
	"github.com/san-kum/dynfit/internal/sampler"
)

type Config struct {
	Model string
	Fit   fitter.Config
	Pool  pool.Options
}

// Experiment wires a registered model, a pool and a fitter for one run.
type Experiment struct {
	cfg      Config
	registry *Registry
	opts     []fitter.Option
}

func New(cfg Config, registry *Registry, opts ...fitter.Option) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, registry: registry, opts: opts}
}

// Run builds the pool, fits the model and closes the pool. initial may be
// nil to draw a fresh ensemble.
func (e *Experiment) Run(ctx context.Context, initial *sampler.Ensemble) (*fitter.Result, error) {
	factory, err := e.registry.Factory(e.cfg.Model)
	if err != nil {
		return nil, err
	}

	popts := e.cfg.Pool
	if popts.Seed == 0 {
		popts.Seed = e.cfg.Fit.Seed
	}
	p, err := pool.New(popts, factory)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	defer p.Close()

	f, err := fitter.New(p, e.cfg.Fit, e.opts...)
	if err != nil {
		return nil, err
	}
	return f.Run(ctx, initial)
}
