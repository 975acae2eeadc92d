package sampler

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/pool"
)

type gaussian struct {
	mean, sigma float64
}

func (g *gaussian) Name() string  { return "gaussian" }
func (g *gaussian) NumDims() int { return 2 }
func (g *gaussian) Likelihood(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		d := (v - g.mean) / g.sigma
		s += d * d
	}
	return -0.5 * s
}
func (g *gaussian) Prior(x []float64) float64 {
	if !model.InBounds(x) {
		return math.Inf(-1)
	}
	return 0
}
func (g *gaussian) DrawWalker(rng *rand.Rand, test bool) (model.Draw, error) {
	return model.UniformDraw(g, rng, test), nil
}
func (g *gaussian) Frack(x []float64, seed int64) (model.FrackResult, error) {
	return model.FrackResult{X: x, Fun: -g.Likelihood(x)}, nil
}

func newPool(t *testing.T) pool.Pool {
	t.Helper()
	p, err := pool.NewSerial(func() (model.Model, error) { return &gaussian{mean: 0.5, sigma: 0.05}, nil }, 1)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func seedEnsemble(rng *rand.Rand, betas []float64, nwalkers int) *Ensemble {
	g := &gaussian{mean: 0.5, sigma: 0.05}
	e := NewEnsemble(betas, nwalkers)
	for t := range betas {
		for w := 0; w < nwalkers; w++ {
			x := []float64{0.3 + 0.4*rng.Float64(), 0.3 + 0.4*rng.Float64()}
			e.Set(t, w, x, g.Likelihood(x), g.Prior(x))
		}
	}
	return e
}

func TestLadder(t *testing.T) {
	betas := Ladder(4, 2)
	assert.Equal(t, []float64{1, 0.5, 0.25, 0.125}, betas)

	def := Ladder(3, 0)
	assert.InDelta(t, 1/math.Sqrt2, def[1], 1e-12)
	assert.Equal(t, []float64{1}, Ladder(1, 2))
}

func TestTempered(t *testing.T) {
	assert.Equal(t, -3.0, Tempered(0.5, -4, -1))
	assert.Equal(t, -1.0, Tempered(0, math.Inf(-1), -1))
}

func TestEnsemble_SetCopiesPosition(t *testing.T) {
	e := NewEnsemble([]float64{1, 0.5}, 2)
	x := []float64{0.1, 0.2}
	e.Set(1, 0, x, -2, -1)
	x[0] = 99

	w := e.Walkers[1][0]
	assert.Equal(t, 0.1, w.X[0])
	assert.Equal(t, -2.0, w.LogPosterior)
	assert.True(t, w.Valid())

	c := e.Clone()
	c.Walkers[1][0].X[1] = 42
	assert.Equal(t, 0.2, e.Walkers[1][0].X[1])
}

func TestEnsemble_Validate(t *testing.T) {
	e := NewEnsemble([]float64{1}, 1)
	e.Set(0, 0, []float64{0.5}, 0, 0)
	assert.ErrorIs(t, e.Validate(), ErrInvalidConfig)

	e = NewEnsemble([]float64{1}, 2)
	e.Set(0, 0, []float64{0.5}, 0, 0)
	e.Set(0, 1, []float64{0.5, 0.5}, 0, 0)
	assert.ErrorIs(t, e.Validate(), ErrDimensionMismatch)
}

func TestAcceptance(t *testing.T) {
	var a Acceptance
	a.Reset(2, 3)
	a.Proposed[0][0], a.Accepted[0][0] = 4, 1
	a.Proposed[0][1], a.Accepted[0][1] = 4, 3
	assert.Equal(t, 0.5, a.Fraction(0))
	assert.Equal(t, []float64{0.5, 0}, a.Fractions())

	a.Reset(2, 3)
	assert.Zero(t, a.Proposed[0][0])
}

func TestChain_AppendOnly(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	e := seedEnsemble(rng, []float64{1}, 4)

	c := NewChain()
	c.Append(e)
	first := c.At(0).X[0][0][0]

	e.Walkers[0][0].X[0] = 0.999
	assert.Equal(t, first, c.At(0).X[0][0][0], "snapshots must not alias the live ensemble")

	chunk := NewChain()
	chunk.Append(e)
	chunk.Append(e)

	view := c.View(chunk)
	assert.Equal(t, 3, view.Len())
	assert.Equal(t, 1, c.Len(), "view must not modify the receiver")

	prev := c.Len()
	c.Extend(chunk)
	require.Equal(t, prev+chunk.Len(), c.Len())
	assert.Same(t, view.At(0), c.At(0))
	assert.Equal(t, 0.999, c.Last().X[0][0][0])
}

func TestChain_TraceAndPositions(t *testing.T) {
	e := NewEnsemble([]float64{1, 0.5}, 2)
	c := NewChain()
	for i := 0; i < 5; i++ {
		for tt := 0; tt < 2; tt++ {
			for w := 0; w < 2; w++ {
				e.Set(tt, w, []float64{float64(i), float64(10 * i)}, float64(-i), 0)
			}
		}
		c.Append(e)
	}

	assert.Equal(t, []float64{20, 30, 40}, c.Trace(1, 1, 1, 2))
	assert.Nil(t, c.Trace(0, 0, 0, 9))
	assert.Equal(t, []float64{0, -1, -2, -3, -4}, c.Scores(0, 0))

	pos := c.Positions([]int{0}, []int{0, 1}, 3)
	require.Len(t, pos, 1)
	require.Len(t, pos[0], 2)
	require.Len(t, pos[0][1], 2)
	assert.Equal(t, []float64{4, 40}, pos[0][1][1])
}

func TestSnapshot_Ensemble(t *testing.T) {
	e := NewEnsemble([]float64{1, 0.5}, 2)
	for tt := 0; tt < 2; tt++ {
		for w := 0; w < 2; w++ {
			e.Set(tt, w, []float64{0.1 * float64(w+1)}, -2, -1)
		}
	}
	c := NewChain()
	c.Append(e)

	rebuilt := c.Last().Ensemble(e.Betas)
	assert.Equal(t, e.Walkers, rebuilt.Walkers)
	rebuilt.Walkers[1][1].X[0] = 0.9
	assert.Equal(t, 0.2, c.Last().X[1][1][0])
}

func TestBurnIn(t *testing.T) {
	intp := func(v int) *int { return &v }
	tests := []struct {
		name       string
		iterations int
		burn, post *int
		wantBurn   int
		wantPost   int
	}{
		{"default split", 1000, nil, nil, 500, 500},
		{"explicit burn", 1000, intp(700), nil, 700, 300},
		{"explicit post burn", 1000, nil, intp(900), 100, 900},
		{"post burn exceeds budget", 1000, nil, intp(1200), 0, 1000},
		{"burn exceeds budget", 1000, intp(1500), nil, 1000, 0},
		{"odd budget rounds to even", 5, nil, nil, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, p := BurnIn(tt.iterations, tt.burn, tt.post)
			assert.Equal(t, tt.wantBurn, b)
			assert.Equal(t, tt.wantPost, p)
		})
	}
}

func TestChunks(t *testing.T) {
	assert.Equal(t, []Range{{0, 1000}, {1000, 1500}, {1500, 2500}, {2500, 3000}}, Chunks(0, 3000, 1500, 1000))
	assert.Equal(t, []Range{{0, 300}, {300, 500}}, Chunks(0, 500, 300, 1000))
	assert.Equal(t, []Range{{10, 20}}, Chunks(10, 20, 0, 1000))
	assert.Empty(t, Chunks(5, 5, 0, 10))

	total := 0
	for _, r := range Chunks(0, 2345, 1000, 333) {
		assert.LessOrEqual(t, r.Len(), 333)
		total += r.Len()
	}
	assert.Equal(t, 2345, total)
}

func TestKernel_ConvergesOnGaussian(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ens := seedEnsemble(rng, []float64{1}, 32)
	k := NewKernel(newPool(t), rng, KernelOptions{})

	var sum [2]float64
	n := 0
	for step, err := range k.Sample(context.Background(), ens, 600, false) {
		require.NoError(t, err)
		if step.Iteration < 200 {
			continue
		}
		for _, w := range step.Ensemble.Walkers[0] {
			sum[0] += w.X[0]
			sum[1] += w.X[1]
			n++
		}
	}
	assert.InDelta(t, 0.5, sum[0]/float64(n), 0.02)
	assert.InDelta(t, 0.5, sum[1]/float64(n), 0.02)
}

func TestKernel_GibbsMovesOneDimension(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ens := seedEnsemble(rng, []float64{1}, 16)
	k := NewKernel(newPool(t), rng, KernelOptions{NoSwaps: true})

	for i := 0; i < 20; i++ {
		before := ens.Clone()
		require.NoError(t, k.Advance(context.Background(), ens, true))
		for w := range ens.Walkers[0] {
			changed := 0
			for d := range ens.Walkers[0][w].X {
				if ens.Walkers[0][w].X[d] != before.Walkers[0][w].X[d] {
					changed++
				}
			}
			// Each walker is proposed once per iteration.
			assert.LessOrEqual(t, changed, 1)
		}
	}
}

func TestKernel_CountsProposals(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	ens := seedEnsemble(rng, Ladder(3, 2), 10)
	k := NewKernel(newPool(t), rng, KernelOptions{})

	require.NoError(t, k.Advance(context.Background(), ens, false))
	for tt := 0; tt < 3; tt++ {
		for w := 0; w < 10; w++ {
			assert.Equal(t, 1, k.Acceptance.Proposed[tt][w])
		}
		assert.Equal(t, Tempered(ens.Betas[tt], ens.Walkers[tt][0].LogLikelihood, ens.Walkers[tt][0].LogPrior),
			ens.Walkers[tt][0].LogPosterior)
	}
	assert.Equal(t, 10, k.Acceptance.SwapProposed[1])
	assert.Zero(t, k.Acceptance.SwapProposed[0])
}

func TestKernel_SwapsKeepTemperedScores(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	ens := seedEnsemble(rng, Ladder(3, 2), 10)
	k := NewKernel(newPool(t), rng, KernelOptions{})

	proposed, accepted := 0, 0
	for i := 0; i < 50; i++ {
		require.NoError(t, k.Advance(context.Background(), ens, false))
		require.Zero(t, k.Acceptance.SwapProposed[0])
		for tt := 1; tt < ens.NumTemps(); tt++ {
			proposed += k.Acceptance.SwapProposed[tt]
			accepted += k.Acceptance.SwapAccepted[tt]
			assert.LessOrEqual(t, k.Acceptance.SwapAccepted[tt], k.Acceptance.SwapProposed[tt])
		}
		for tt, row := range ens.Walkers {
			for w, wk := range row {
				require.Equal(t, Tempered(ens.Betas[tt], wk.LogLikelihood, wk.LogPrior), wk.LogPosterior,
					"rung %d walker %d at iteration %d", tt, w, i)
			}
		}
	}
	assert.Equal(t, 50*10*2, proposed)
	assert.Positive(t, accepted)
}

func TestKernel_StaysInUnitBox(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	ens := seedEnsemble(rng, Ladder(2, 4), 8)
	k := NewKernel(newPool(t), rng, KernelOptions{Scale: 4})

	for _, err := range k.Sample(context.Background(), ens, 100, false) {
		require.NoError(t, err)
	}
	for _, row := range ens.Walkers {
		for _, w := range row {
			assert.True(t, model.InBounds(w.X))
		}
	}
}

func TestKernel_StopsOnPoolError(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ens := seedEnsemble(rng, []float64{1}, 4)
	p := newPool(t)
	require.NoError(t, p.Close())

	k := NewKernel(p, rng, KernelOptions{})
	calls := 0
	for _, err := range k.Sample(context.Background(), ens, 10, false) {
		calls++
		assert.ErrorIs(t, err, pool.ErrClosed)
	}
	assert.Equal(t, 1, calls)
}

func TestKernel_RejectsInvalidEnsemble(t *testing.T) {
	k := NewKernel(newPool(t), rand.New(rand.NewSource(1)), KernelOptions{})
	for _, err := range k.Sample(context.Background(), NewEnsemble([]float64{1}, 1), 1, false) {
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}
