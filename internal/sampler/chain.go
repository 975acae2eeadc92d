package sampler

// Snapshot is the ensemble state recorded for one iteration.
type Snapshot struct {
	X             [][][]float64 // [temperature][walker][dim]
	LogPosterior  [][]float64
	LogLikelihood [][]float64
	LogPrior      [][]float64
}

func snapshotOf(e *Ensemble) *Snapshot {
	nt, nw := e.NumTemps(), e.NumWalkers()
	s := &Snapshot{
		X:             make([][][]float64, nt),
		LogPosterior:  make([][]float64, nt),
		LogLikelihood: make([][]float64, nt),
		LogPrior:      make([][]float64, nt),
	}
	for t := 0; t < nt; t++ {
		s.X[t] = make([][]float64, nw)
		s.LogPosterior[t] = make([]float64, nw)
		s.LogLikelihood[t] = make([]float64, nw)
		s.LogPrior[t] = make([]float64, nw)
		for w, wk := range e.Walkers[t] {
			s.X[t][w] = append([]float64(nil), wk.X...)
			s.LogPosterior[t][w] = wk.LogPosterior
			s.LogLikelihood[t][w] = wk.LogLikelihood
			s.LogPrior[t][w] = wk.LogPrior
		}
	}
	return s
}

// Walker rebuilds the walker stored at slot (t, w).
func (s *Snapshot) Walker(t, w int) Walker {
	return Walker{
		X:             append([]float64(nil), s.X[t][w]...),
		LogLikelihood: s.LogLikelihood[t][w],
		LogPrior:      s.LogPrior[t][w],
		LogPosterior:  s.LogPosterior[t][w],
	}
}

// Ensemble rebuilds a live ensemble from the snapshot.
func (s *Snapshot) Ensemble(betas []float64) *Ensemble {
	e := NewEnsemble(append([]float64(nil), betas...), len(s.X[0]))
	for t := range s.X {
		for w := range s.X[t] {
			e.Walkers[t][w] = s.Walker(t, w)
		}
	}
	return e
}

// Chain is the append-only iteration history. Snapshots are immutable once
// appended, so chains may share them.
type Chain struct {
	steps []*Snapshot
}

func NewChain() *Chain {
	return &Chain{}
}

func (c *Chain) Len() int { return len(c.steps) }

// Append records a copy of the current ensemble.
func (c *Chain) Append(e *Ensemble) {
	c.steps = append(c.steps, snapshotOf(e))
}

// Extend concatenates other onto c.
func (c *Chain) Extend(other *Chain) {
	if other == nil {
		return
	}
	c.steps = append(c.steps, other.steps...)
}

// View returns a chain holding c followed by tail without modifying c.
func (c *Chain) View(tail *Chain) *Chain {
	v := &Chain{steps: c.steps[:len(c.steps):len(c.steps)]}
	v.Extend(tail)
	return v
}

// At returns the snapshot of iteration i.
func (c *Chain) At(i int) *Snapshot { return c.steps[i] }

// Last returns the most recent snapshot, or nil for an empty chain.
func (c *Chain) Last() *Snapshot {
	if len(c.steps) == 0 {
		return nil
	}
	return c.steps[len(c.steps)-1]
}

// Trace returns coordinate d of walker (t, w) from iteration from onward.
func (c *Chain) Trace(t, w, d, from int) []float64 {
	if from < 0 {
		from = 0
	}
	if from >= len(c.steps) {
		return nil
	}
	out := make([]float64, 0, len(c.steps)-from)
	for _, s := range c.steps[from:] {
		out = append(out, s.X[t][w][d])
	}
	return out
}

// Scores returns the tempered score trace of walker (t, w).
func (c *Chain) Scores(t, w int) []float64 {
	out := make([]float64, len(c.steps))
	for i, s := range c.steps {
		out[i] = s.LogPosterior[t][w]
	}
	return out
}

// Positions returns the (temperature, walker, iteration, dim) array for the
// selected temperatures and walkers, from iteration from onward.
func (c *Chain) Positions(temps, walkers []int, from int) [][][][]float64 {
	if from < 0 {
		from = 0
	}
	if from > len(c.steps) {
		from = len(c.steps)
	}
	steps := c.steps[from:]
	out := make([][][][]float64, len(temps))
	for i, t := range temps {
		out[i] = make([][][]float64, len(walkers))
		for j, w := range walkers {
			trace := make([][]float64, len(steps))
			for k, s := range steps {
				trace[k] = s.X[t][w]
			}
			out[i][j] = trace
		}
	}
	return out
}
