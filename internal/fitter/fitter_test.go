package fitter_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/dynfit/internal/fitter"
	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/models"
	"github.com/san-kum/dynfit/internal/pool"
	"github.com/san-kum/dynfit/internal/prompt"
	"github.com/san-kum/dynfit/internal/sampler"
)

func serial(factory model.Factory) pool.Pool {
	p, err := pool.NewSerial(factory, 3)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(p.Close)
	return p
}

func smallConfig() fitter.Config {
	cfg := fitter.DefaultConfig()
	cfg.Iterations = 80
	cfg.Walkers = 10
	cfg.ChunkSize = 25
	cfg.Frack = false
	return cfg
}

func drawEnsemble(p pool.Pool, betas []float64, nwalkers int) *sampler.Ensemble {
	in := fitter.NewInitializer(p, rand.New(rand.NewSource(5)), nil)
	ens, err := in.Draw(context.Background(), betas, nwalkers)
	Expect(err).NotTo(HaveOccurred())
	return ens
}

var _ = Describe("Initializer", func() {
	It("fills every slot with a finite walker", func() {
		ens := drawEnsemble(serial(gaussianFactory), sampler.Ladder(3, 0), 12)
		Expect(ens.NumTemps()).To(Equal(3))
		Expect(ens.NumWalkers()).To(Equal(12))
		for t := range ens.Walkers {
			for _, wk := range ens.Walkers[t] {
				Expect(wk.Valid()).To(BeTrue())
				Expect(model.InBounds(wk.X)).To(BeTrue())
			}
		}
	})

	It("keeps accepted draws at or above the running mean", func() {
		p := serial(gaussianFactory)
		in := fitter.NewInitializer(p, rand.New(rand.NewSource(8)), nil)
		in.AboveLikelihood = true
		ens, err := in.Draw(context.Background(), []float64{1}, 15)
		Expect(err).NotTo(HaveOccurred())

		running := 0.0
		for i, wk := range ens.Walkers[0] {
			score := wk.LogLikelihood + wk.LogPrior
			if i > 0 {
				Expect(score).To(BeNumerically(">=", running))
			}
			running += (score - running) / float64(i+1)
		}
	})

	It("gives up after the attempt budget", func() {
		p := serial(func() (model.Model, error) { return hopeless{models.NewGaussian()}, nil })
		in := fitter.NewInitializer(p, rand.New(rand.NewSource(1)), nil)
		in.MaxAttempts = 50
		_, err := in.Draw(context.Background(), []float64{1}, 4)
		Expect(err).To(MatchError(fitter.ErrInitFailed))

		var ie *fitter.InitError
		Expect(errors.As(err, &ie)).To(BeTrue())
		Expect(ie.Attempts).To(Equal(50))
		Expect(ie.Collected).To(BeZero())
	})
})

var _ = Describe("Repairer", func() {
	It("only replaces walkers with better scores", func() {
		p := serial(gaussianFactory)
		ens := drawEnsemble(p, sampler.Ladder(2, 0), 20)
		ens.Set(0, 3, []float64{0.99, 0.01}, -400, 0)
		ens.Set(1, 7, []float64{0.5, 0.5}, math.Inf(-1), 0)
		before := ens.Clone()

		r := fitter.NewRepairer(p, rand.New(rand.NewSource(2)), 0.01, 20)
		stats, err := r.Repair(context.Background(), ens)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Candidates).To(BeNumerically(">=", 2))
		Expect(stats.Replaced).To(BeNumerically("<=", stats.Candidates))

		replaced := 0
		for t := range ens.Walkers {
			for w, wk := range ens.Walkers[t] {
				old := before.Walkers[t][w]
				if wk.LogPosterior == old.LogPosterior && slicesEqual(wk.X, old.X) {
					continue
				}
				replaced++
				if old.Valid() {
					Expect(wk.LogPosterior).To(BeNumerically(">", old.LogPosterior))
				}
				Expect(wk.Valid()).To(BeTrue())
			}
		}
		Expect(replaced).To(Equal(stats.Replaced))
		Expect(ens.Walkers[1][7].Valid()).To(BeTrue())
	})
})

var _ = Describe("Fracker", func() {
	frackOnce := func(factory model.Factory) (before, after *sampler.Ensemble, stats fitter.FrackStats) {
		p, err := pool.NewParallel(4, factory, 1)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)

		after = drawEnsemble(p, sampler.Ladder(2, 0), 10)
		before = after.Clone()
		f := fitter.NewFracker(p, rand.New(rand.NewSource(4)), fitter.FixedSeeds(1), nil)
		stats, err = f.Frack(context.Background(), after)
		Expect(err).NotTo(HaveOccurred())
		return before, after, stats
	}

	It("leaves walkers alone when the optimizer does not improve", func() {
		before, after, stats := frackOnce(func() (model.Model, error) { return worseFrack{models.NewGaussian()}, nil })
		Expect(stats.Attempts).To(Equal(4))
		Expect(stats.Improved).To(BeZero())
		Expect(after.Walkers).To(Equal(before.Walkers))
	})

	It("moves at most one walker per worker and only upwards", func() {
		before, after, stats := frackOnce(func() (model.Model, error) { return peakFrack{models.NewGaussian()}, nil })
		Expect(stats.Improved).To(BeNumerically(">=", 1))
		Expect(stats.Improved).To(BeNumerically("<=", 4))

		changed := 0
		for t := range after.Walkers {
			for w, wk := range after.Walkers[t] {
				old := before.Walkers[t][w]
				if slicesEqual(wk.X, old.X) {
					continue
				}
				changed++
				Expect(wk.X).To(Equal([]float64{0.5, 0.5}))
				Expect(wk.LogPosterior).To(BeNumerically(">", old.LogPosterior))
			}
		}
		Expect(changed).To(BeNumerically("<=", stats.Improved))
		Expect(changed).To(BeNumerically(">=", 1))
	})
})

var _ = Describe("Fitter", func() {
	It("recovers the mean of a Gaussian", func() {
		cfg := fitter.DefaultConfig()
		cfg.Temperatures = 1
		cfg.Walkers = 40
		cfg.Iterations = 2000
		cfg.Frack = false

		f, err := fitter.New(serial(gaussianFactory), cfg)
		Expect(err).NotTo(HaveOccurred())
		res, err := f.Run(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Status).To(Equal(fitter.StatusExhausted))
		Expect(res.Iterations).To(Equal(2000))
		Expect(res.BurnIn).To(Equal(1000))

		final := make([][]float64, 0, 40)
		for _, wk := range res.Ensemble.Walkers[0] {
			final = append(final, wk.X)
		}
		Expect(mean(final, 0)).To(BeNumerically("~", 0.5, 0.05))
		Expect(mean(final, 1)).To(BeNumerically("~", 0.5, 0.05))

		Expect(res.PSRF).NotTo(BeNil())
		Expect(*res.PSRF).To(BeNumerically(">=", 1.0))
		Expect(*res.PSRF).To(BeNumerically("<", 1.2))
	})

	It("appends every iteration to the chain exactly once across chunks", func() {
		cfg := smallConfig()
		var maxima []float64
		rep := fitter.ReporterFunc(func(p fitter.Progress) {
			Expect(p.Iteration).To(Equal(len(maxima)))
			maxima = append(maxima, p.Scores[0].Max)
		})

		f, err := fitter.New(serial(gaussianFactory), cfg, fitter.WithReporter(rep))
		Expect(err).NotTo(HaveOccurred())
		res, err := f.Run(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Chain.Len()).To(Equal(cfg.Iterations))
		Expect(maxima).To(HaveLen(cfg.Iterations))
		for i, want := range maxima {
			Expect(slicesMax(res.Chain.At(i).LogPosterior[0])).To(Equal(want))
		}
	})

	It("reproduces the same scores with fracking off and a no-op optimizer", func() {
		run := func(frack bool) *fitter.Result {
			cfg := smallConfig()
			cfg.Temperatures = 2
			cfg.Frack = frack
			cfg.FrackStep = 5
			p := serial(func() (model.Model, error) { return noopFrack{models.NewGaussian()}, nil })
			f, err := fitter.New(p, cfg)
			Expect(err).NotTo(HaveOccurred())
			res, err := f.Run(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			return res
		}

		off, on := run(false), run(true)
		Expect(on.Frack.Rounds).To(BeNumerically(">", 0))
		Expect(on.Frack.Improved).To(BeZero())
		Expect(on.Chain.Len()).To(Equal(off.Chain.Len()))
		for i := 0; i < off.Chain.Len(); i++ {
			Expect(on.Chain.At(i).LogPosterior).To(Equal(off.Chain.At(i).LogPosterior))
		}
	})

	It("keeps running when fracking finds no finite point", func() {
		cfg := smallConfig()
		cfg.Walkers = 8
		cfg.Iterations = 20
		cfg.ChunkSize = 10
		cfg.Frack = true
		cfg.FrackStep = 1

		p := serial(func() (model.Model, error) { return ridge{models.NewGaussian()}, nil })
		f, err := fitter.New(p, cfg)
		Expect(err).NotTo(HaveOccurred())
		res, err := f.Run(context.Background(), ridgeEnsemble(8))
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Status).To(Equal(fitter.StatusExhausted))
		Expect(res.Frack.Rounds).To(Equal(res.BurnIn))
		for _, wk := range res.Ensemble.Walkers[0] {
			Expect(wk.Valid()).To(BeTrue())
			Expect(wk.X[0]).To(BeNumerically("~", 0.3, 1e-4))
		}
	})

	It("repairs and fracks only during burn-in", func() {
		cfg := smallConfig()
		cfg.Temperatures = 2
		cfg.Frack = true
		cfg.FrackStep = 5

		var phases []fitter.Phase
		var burnFracks int
		rep := fitter.ReporterFunc(func(p fitter.Progress) {
			phases = append(phases, p.Phase)
			if p.Phase == fitter.PhaseProduction {
				Expect(p.Repair.Candidates).To(BeZero(), "iteration %d", p.Iteration)
				Expect(p.Frack.Rounds).To(BeZero(), "iteration %d", p.Iteration)
				return
			}
			Expect(p.Iteration).To(BeNumerically("<", p.BurnIn))
			burnFracks += p.Frack.Rounds
		})

		core, logs := observer.New(zap.DebugLevel)
		p := serial(func() (model.Model, error) { return peakFrack{models.NewGaussian()}, nil })
		f, err := fitter.New(p, cfg, fitter.WithReporter(rep), fitter.WithLogger(zap.New(core)))
		Expect(err).NotTo(HaveOccurred())
		res, err := f.Run(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())

		chunks := logs.FilterMessage("chunk started").All()
		Expect(chunks).NotTo(BeEmpty())
		for _, entry := range chunks {
			fields := entry.ContextMap()
			start := fields["start"].(int64)
			Expect(fields["gibbs"]).To(Equal(start < int64(res.BurnIn)), "chunk at %d", start)
		}

		Expect(phases).To(HaveLen(cfg.Iterations))
		for i, ph := range phases {
			if i < res.BurnIn {
				Expect(ph).To(Equal(fitter.PhaseBurnIn), "iteration %d", i)
			} else {
				Expect(ph).To(Equal(fitter.PhaseProduction), "iteration %d", i)
			}
		}
		Expect(burnFracks).To(Equal(res.BurnIn / cfg.FrackStep))
		Expect(res.Frack.Rounds).To(Equal(burnFracks))
	})

	It("stops at the walltime and keeps the partial chunk", func() {
		cfg := smallConfig()
		cfg.Walltime = 20 * time.Second

		f, err := fitter.New(serial(gaussianFactory), cfg, fitter.WithClock(stepClock(time.Second)))
		Expect(err).NotTo(HaveOccurred())
		res, err := f.Run(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Status).To(Equal(fitter.StatusWalltime))
		Expect(res.Iterations).To(BeNumerically(">", 0))
		Expect(res.Iterations).To(BeNumerically("<", cfg.Iterations))
		Expect(res.Iterations % cfg.ChunkSize).NotTo(BeZero())
		Expect(res.Chain.Len()).To(Equal(res.Iterations))
	})

	It("reports an estimate of the remaining time", func() {
		cfg := smallConfig()
		var etas []*time.Duration
		rep := fitter.ReporterFunc(func(p fitter.Progress) { etas = append(etas, p.Remaining) })

		f, err := fitter.New(serial(gaussianFactory), cfg, fitter.WithReporter(rep), fitter.WithClock(stepClock(time.Millisecond)))
		Expect(err).NotTo(HaveOccurred())
		_, err = f.Run(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(etas).To(HaveLen(cfg.Iterations))
		Expect(etas[0]).NotTo(BeNil())
		Expect(*etas[len(etas)-1]).To(BeZero())
	})

	It("keeps sampling until converged", func() {
		cfg := smallConfig()
		cfg.Walkers = 20
		cfg.Iterations = 200
		cfg.ChunkSize = 50
		cfg.Converge = true
		cfg.MaxIterations = 5000

		var sawETA bool
		rep := fitter.ReporterFunc(func(p fitter.Progress) { sawETA = sawETA || p.Remaining != nil })
		f, err := fitter.New(serial(gaussianFactory), cfg, fitter.WithReporter(rep))
		Expect(err).NotTo(HaveOccurred())
		res, err := f.Run(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Status).To(Equal(fitter.StatusConverged))
		Expect(res.Iterations).To(BeNumerically(">=", 200))
		Expect(res.PSRF).NotTo(BeNil())
		Expect(*res.PSRF).To(BeNumerically("<", 1.1))
		Expect(sawETA).To(BeFalse())
	})

	Context("when interrupted", func() {
		interrupt := func(answer bool) (*fitter.Result, error, *prompt.Recorder, pool.Pool) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			rec := prompt.NewRecorder(prompt.Fixed{Answer: answer})
			rep := fitter.ReporterFunc(func(p fitter.Progress) {
				if p.Iteration == 29 {
					cancel()
				}
			})
			p := serial(gaussianFactory)
			f, err := fitter.New(p, smallConfig(), fitter.WithReporter(rep), fitter.WithPrompter(rec))
			Expect(err).NotTo(HaveOccurred())
			res, err := f.Run(ctx, nil)
			return res, err, rec, p
		}

		It("discards the run when the user declines", func() {
			res, err, rec, p := interrupt(false)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(fitter.StatusDiscarded))
			Expect(res.Chain).To(BeNil())
			Expect(res.States).To(BeEmpty())
			Expect(rec.Calls()).To(Equal(1))
			Expect(rec.Messages()).To(ConsistOf(fitter.SavePrompt))

			_, err = p.Map(context.Background(), nil)
			Expect(err).To(MatchError(pool.ErrClosed))
		})

		It("keeps the completed iterations when the user accepts", func() {
			res, err, rec, _ := interrupt(true)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(fitter.StatusInterrupted))
			Expect(res.Iterations).To(Equal(30))
			Expect(res.Chain.Len()).To(Equal(30))
			Expect(rec.Calls()).To(Equal(1))
			Expect(res.States).NotTo(BeEmpty())
			for _, s := range res.States[:10] {
				Expect(s.X).To(Equal(res.Chain.Last().X[0][s.Walker]))
			}
		})

		It("returns the prompt error", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			cfg := smallConfig()
			p := serial(gaussianFactory)
			ens := drawEnsemble(p, []float64{1}, cfg.Walkers)
			boom := errors.New("tty gone")
			f, err := fitter.New(p, cfg, fitter.WithPrompter(prompt.Fixed{Err: boom}))
			Expect(err).NotTo(HaveOccurred())

			_, err = f.Run(ctx, ens)
			Expect(err).To(MatchError(fitter.ErrInterrupted))
			Expect(err).To(MatchError(boom))
		})
	})

	It("aborts and closes the pool when a worker fails", func() {
		inner, err := pool.NewSerial(gaussianFactory, 1)
		Expect(err).NotTo(HaveOccurred())
		p := &flakyPool{Pool: inner, failAt: 7}

		f, err := fitter.New(p, smallConfig())
		Expect(err).NotTo(HaveOccurred())
		res, err := f.Run(context.Background(), nil)
		Expect(res).To(BeNil())
		Expect(err).To(MatchError(fitter.ErrPoolFailure))
		Expect(err).To(MatchError(errWorkerLost))

		var ie *fitter.IterationError
		Expect(errors.As(err, &ie)).To(BeTrue())
		Expect(ie.Phase).NotTo(BeEmpty())

		_, err = inner.Map(context.Background(), nil)
		Expect(err).To(MatchError(pool.ErrClosed))
	})

	It("fails initialization with a bounded error", func() {
		p := serial(func() (model.Model, error) { return hopeless{models.NewGaussian()}, nil })
		cfg := smallConfig()
		cfg.MaxDrawAttempts = 30
		f, err := fitter.New(p, cfg)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.Run(context.Background(), nil)
		Expect(err).To(MatchError(fitter.ErrInitFailed))
	})

	It("rejects invalid configuration", func() {
		cfg := smallConfig()
		cfg.Walkers = 1
		_, err := fitter.New(serial(gaussianFactory), cfg)
		Expect(err).To(MatchError(fitter.ErrInvalidConfig))
	})
})

func slicesEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func slicesMax(xs []float64) float64 {
	best := math.Inf(-1)
	for _, x := range xs {
		if !math.IsNaN(x) {
			best = math.Max(best, x)
		}
	}
	return best
}
