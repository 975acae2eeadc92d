package fitter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/dynfit/internal/convergence"
	"github.com/san-kum/dynfit/internal/logging"
	"github.com/san-kum/dynfit/internal/pool"
	"github.com/san-kum/dynfit/internal/prompt"
	"github.com/san-kum/dynfit/internal/sampler"
)

// SavePrompt is the question asked after an interrupt.
const SavePrompt = "save incomplete chain?"

// Prompter asks whether an interrupted run should be kept.
type Prompter interface {
	Confirm(message string) (bool, error)
}

type Option func(*Fitter)

func WithLogger(l *zap.Logger) Option {
	return func(f *Fitter) { f.logger = logging.OrNop(l) }
}

func WithReporter(r Reporter) Option {
	return func(f *Fitter) {
		if r != nil {
			f.reporter = r
		}
	}
}

func WithPrompter(p Prompter) Option {
	return func(f *Fitter) {
		if p != nil {
			f.prompter = p
		}
	}
}

// WithClock replaces time.Now for walltime checks and timing.
func WithClock(now func() time.Time) Option {
	return func(f *Fitter) {
		if now != nil {
			f.now = now
		}
	}
}

func WithSeedPolicy(s SeedPolicy) Option {
	return func(f *Fitter) { f.seeds = s }
}

// WithRand replaces the generator seeded from Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(f *Fitter) { f.rng = rng }
}

// Fitter runs the sampler against a pool. It is not safe for concurrent
// use; each Run owns the pool until it returns.
type Fitter struct {
	pool     pool.Pool
	cfg      Config
	logger   *zap.Logger
	reporter Reporter
	prompter Prompter
	now      func() time.Time
	seeds    SeedPolicy
	rng      *rand.Rand
}

func New(p pool.Pool, cfg Config, opts ...Option) (*Fitter, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil pool", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Fitter{
		pool:     p,
		cfg:      cfg,
		logger:   logging.Nop(),
		reporter: nopReporter{},
		prompter: prompt.Fixed{Answer: true},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	if f.seeds == nil {
		f.seeds = TimeSeeds()
	}
	return f, nil
}

// run is the mutable state of a single Run.
type run struct {
	start     time.Time
	burnIn    int
	total     int
	ens       *sampler.Ensemble
	initial   *sampler.Ensemble
	chain     *sampler.Chain
	iteration int
	chunks    int
	status    Status

	autocorr   convergence.Autocorr
	psrf       *float64
	acceptance []float64
	frack      FrackStats
}

// Run samples from initial, or from a freshly drawn ensemble when initial
// is nil. Walltime, convergence and exhaustion return a Result with the
// matching Status. Cancelling ctx closes the pool and asks the Prompter
// whether to keep the completed iterations; declining returns a Result with
// StatusDiscarded and a nil error. Pool failures close the pool and return
// an *IterationError.
func (f *Fitter) Run(ctx context.Context, initial *sampler.Ensemble) (*Result, error) {
	cfg := f.cfg
	burnIn, _ := cfg.BurnIn()

	// Independent streams keep the sampler sequence identical whether or
	// not repair and fracking consume random numbers.
	initRng := rand.New(rand.NewSource(f.rng.Int63()))
	repairRng := rand.New(rand.NewSource(f.rng.Int63()))
	frackRng := rand.New(rand.NewSource(f.rng.Int63()))

	st := &run{
		start:  f.now(),
		burnIn: burnIn,
		total:  cfg.Iterations,
		chain:  sampler.NewChain(),
		status: StatusRunning,
	}

	if initial == nil {
		in := NewInitializer(f.pool, initRng, f.logger)
		in.AboveLikelihood = cfg.DrawAboveLikelihood
		in.MaxAttempts = cfg.MaxDrawAttempts
		ens, err := in.Draw(ctx, sampler.Ladder(cfg.Temperatures, cfg.LadderStep), cfg.Walkers)
		if err != nil {
			f.closePool()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: during initialization", ErrInterrupted)
			}
			if errors.Is(err, ErrInitFailed) {
				return nil, err
			}
			return nil, &IterationError{Iteration: 0, Phase: string(PhaseInit), Err: err}
		}
		st.ens = ens
	} else {
		st.ens = initial.Clone()
	}
	if err := st.ens.Validate(); err != nil {
		return nil, fmt.Errorf("fitter: initial ensemble: %w", err)
	}
	st.initial = st.ens.Clone()

	kernel := sampler.NewKernel(f.pool, f.rng, sampler.KernelOptions{})
	repairer := NewRepairer(f.pool, repairRng, cfg.Jitter, cfg.repairFloor())
	var fracker *Fracker
	if cfg.Frack {
		fracker = NewFracker(f.pool, frackRng, f.seeds, f.now)
		fracker.Step = cfg.FrackStep
		fracker.Softening = cfg.Softening
	}

	f.logger.Info("run started",
		zap.Int("iterations", cfg.Iterations),
		zap.Int("burn_in", burnIn),
		zap.Int("temperatures", st.ens.NumTemps()),
		zap.Int("walkers", st.ens.NumWalkers()),
		zap.Int("pool_workers", f.pool.Workers()),
		zap.Bool("converge", cfg.Converge))

	for st.status == StatusRunning {
		for _, rg := range sampler.Chunks(st.iteration, st.total, burnIn, cfg.ChunkSize) {
			if err := f.runChunk(ctx, st, rg, kernel, repairer, fracker); err != nil {
				f.closePool()
				f.logger.Error("run aborted", zap.Error(err))
				return nil, err
			}
			if st.status != StatusRunning {
				break
			}
			if cfg.Converge && st.iteration >= cfg.Iterations {
				if p := cfg.Monitor.PSRF(st.chain, burnIn, st.iteration-1, st.chunks); p != nil {
					st.psrf = p
				}
				if cfg.Monitor.Converged(st.psrf) {
					st.status = StatusConverged
					break
				}
			}
		}
		if st.status != StatusRunning {
			break
		}
		if !cfg.Converge || (cfg.MaxIterations > 0 && st.total >= cfg.MaxIterations) {
			st.status = StatusExhausted
			break
		}
		st.total += cfg.ChunkSize
		if cfg.MaxIterations > 0 {
			st.total = min(st.total, cfg.MaxIterations)
		}
	}

	return f.finish(st)
}

func (f *Fitter) runChunk(ctx context.Context, st *run, rg sampler.Range, kernel *sampler.Kernel, repairer *Repairer, fracker *Fracker) error {
	chunk := sampler.NewChain()
	defer st.chain.Extend(chunk)

	gibbs := rg.Start < st.burnIn
	f.logger.Info("chunk started",
		zap.Int("start", rg.Start),
		zap.Int("end", rg.End),
		zap.Bool("gibbs", gibbs))

	for step, err := range kernel.Sample(ctx, st.ens, rg.Len(), gibbs) {
		i := rg.Start + step.Iteration
		if err != nil {
			return f.failed(ctx, st, i, "sample", err)
		}

		var rs RepairStats
		if i < st.burnIn {
			if rs, err = repairer.Repair(ctx, st.ens); err != nil {
				return f.failed(ctx, st, i, "repair", err)
			}
		}

		chunk.Append(st.ens)
		st.iteration = i + 1
		st.acceptance = step.Acceptance.Fractions()
		f.diagnose(st, chunk, i)

		var fs FrackStats
		if fracker != nil && fracker.Due(i, st.burnIn) {
			fs, err = fracker.Frack(ctx, st.ens)
			st.frack.add(fs)
			if err != nil {
				return f.failed(ctx, st, i, "frack", err)
			}
		}

		f.logger.Debug("iteration",
			zap.Int("iteration", i),
			zap.Int("repair_candidates", rs.Candidates),
			zap.Int("repaired", rs.Replaced),
			zap.Int("fracked", fs.Attempts),
			zap.Int("frack_improved", fs.Improved))
		f.report(st, i, rs, fs)

		if f.cfg.Walltime > 0 && f.now().Sub(st.start) > f.cfg.Walltime {
			st.status = StatusWalltime
			return nil
		}
		if ctx.Err() != nil {
			st.status = StatusInterrupted
			return nil
		}
	}
	if st.status == StatusRunning && chunk.Len() == rg.Len() {
		st.chunks++
	}
	return nil
}

// failed turns an error during iteration i into an interrupt when ctx was
// cancelled, and into an *IterationError otherwise.
func (f *Fitter) failed(ctx context.Context, st *run, i int, phase string, err error) error {
	if ctx.Err() != nil {
		st.status = StatusInterrupted
		return nil
	}
	return &IterationError{Iteration: i, Phase: phase, Err: err}
}

// diagnose refreshes the estimates that are due at iteration i. The
// combined view of the chain and the open chunk is only built when one is.
func (f *Fitter) diagnose(st *run, chunk *sampler.Chain, i int) {
	mon := f.cfg.Monitor
	autocorr := mon.Due(i, st.burnIn)
	if !autocorr && !mon.PSRFDue(i, st.burnIn, st.chunks) {
		return
	}
	view := st.chain.View(chunk)
	if autocorr && mon.Ready(view, st.burnIn) {
		ac, err := mon.Autocorr(view, st.burnIn)
		if err != nil {
			f.logger.Warn("autocorrelation estimate unavailable", zap.Int("iteration", i), zap.Error(err))
		}
		st.autocorr = ac
	}
	if p := mon.PSRF(view, st.burnIn, i, st.chunks); p != nil {
		st.psrf = p
	}
}

func (f *Fitter) report(st *run, i int, rs RepairStats, fs FrackStats) {
	phase := PhaseProduction
	if i < st.burnIn {
		phase = PhaseBurnIn
	}
	elapsed := f.now().Sub(st.start)

	var eta *time.Duration
	if !f.cfg.Converge {
		eta = remaining(elapsed, st.frack.Elapsed, i+1, st.total, st.burnIn)
	}

	var msgs []string
	if rs.Replaced > 0 {
		msgs = append(msgs, fmt.Sprintf("repaired %d/%d walkers", rs.Replaced, rs.Candidates))
	}
	if fs.Rounds > 0 {
		msgs = append(msgs, fmt.Sprintf("fracked %d walkers, %d improved", fs.Attempts, fs.Improved))
	}

	f.reporter.Report(Progress{
		Iteration:  i,
		Total:      st.total,
		BurnIn:     st.burnIn,
		Phase:      phase,
		Scores:     summarize(st.ens),
		Acceptance: st.acceptance,
		Autocorr:   st.autocorr,
		PSRF:       st.psrf,
		Remaining:  eta,
		Elapsed:    elapsed,
		Repair:     rs,
		Frack:      fs,
		Messages:   msgs,
	})
}

func (f *Fitter) finish(st *run) (*Result, error) {
	if st.status == StatusInterrupted {
		f.closePool()
		keep, err := f.prompter.Confirm(SavePrompt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		if !keep {
			f.logger.Info("run discarded", zap.Int("iterations", st.chain.Len()))
			return &Result{Status: StatusDiscarded}, nil
		}
		// The live ensemble may hold a partially evaluated iteration.
		if last := st.chain.Last(); last != nil {
			st.ens = last.Ensemble(st.ens.Betas)
		} else {
			st.ens = st.initial
		}
	}

	mon := f.cfg.Monitor
	ac := st.autocorr
	if mon.Ready(st.chain, st.burnIn) {
		var err error
		if ac, err = mon.Autocorr(st.chain, st.burnIn); err != nil {
			f.logger.Warn("final autocorrelation estimate unavailable", zap.Error(err))
		}
	}
	psrf := st.psrf
	if st.chain.Len() > st.burnIn {
		if p := mon.FinalPSRF(st.chain, st.burnIn); p != nil {
			psrf = p
		}
	}

	res := &Result{
		Status:     st.status,
		Iterations: st.chain.Len(),
		BurnIn:     st.burnIn,
		Ensemble:   st.ens,
		Chain:      st.chain,
		Autocorr:   ac,
		PSRF:       psrf,
		States:     Assemble(st.ens, st.chain, st.burnIn, ac),
		Acceptance: st.acceptance,
		Frack:      st.frack,
		Elapsed:    f.now().Sub(st.start),
	}
	fields := []zap.Field{
		zap.String("status", res.Status.String()),
		zap.Int("iterations", res.Iterations),
		zap.Duration("elapsed", res.Elapsed),
	}
	if psrf != nil {
		fields = append(fields, zap.Float64("psrf", *psrf))
	}
	f.logger.Info("run finished", fields...)
	return res, nil
}

func (f *Fitter) closePool() {
	if err := f.pool.Close(); err != nil {
		f.logger.Warn("closing pool", zap.Error(err))
	}
}
