package models

import (
	"math"
	"math/rand"

	"github.com/san-kum/dynfit/internal/integrators"
	"github.com/san-kum/dynfit/internal/optim"
)

// Pendulum is a damped pendulum: theta'' = -(g/L) sin(theta) - b theta'.
type Pendulum struct {
	Length  float64
	Damping float64
	Gravity float64
}

func (p Pendulum) Derive(x []float64, t float64) []float64 {
	theta, omega := x[0], x[1]
	alpha := -p.Gravity/p.Length*math.Sin(theta) - p.Damping*omega
	return []float64{omega, alpha}
}

// PendulumFit recovers the length and damping of a pendulum from a noisy
// record of its angle.
type PendulumFit struct {
	box
	Times  []float64
	Angles []float64
	Noise  float64

	Theta0      float64
	Dt          float64
	LengthRange [2]float64
	DampRange   [2]float64

	integ *integrators.RK4
}

// Truth of the synthetic record.
const (
	PendulumLength  = 1.2
	PendulumDamping = 0.3
)

func NewPendulumFit() *PendulumFit {
	return NewPendulumFitWithData(40, 0.02, 7)
}

// NewPendulumFitWithData simulates the true pendulum and samples n angles
// over five seconds with Gaussian noise.
func NewPendulumFitWithData(n int, noise float64, seed int64) *PendulumFit {
	p := &PendulumFit{
		Noise:       noise,
		Theta0:      0.5,
		Dt:          0.01,
		LengthRange: [2]float64{0.5, 2},
		DampRange:   [2]float64{0, 1},
		integ:       integrators.NewRK4(),
	}
	p.box = box{self: p, settings: optim.DefaultSettings()}

	truth := p.simulate(Pendulum{Length: PendulumLength, Damping: PendulumDamping, Gravity: 9.81}, 5.0)
	rng := rand.New(rand.NewSource(seed))
	p.Times = make([]float64, n)
	p.Angles = make([]float64, n)
	stride := max((len(truth)-1)/n, 1)
	for i := range p.Times {
		k := min((i+1)*stride, len(truth)-1)
		p.Times[i] = float64(k) * p.Dt
		p.Angles[i] = truth[k][0] + noise*rng.NormFloat64()
	}
	return p
}

func (p *PendulumFit) Name() string { return "pendulum" }
func (p *PendulumFit) NumDims() int { return 2 }

// Params maps x onto length and damping.
func (p *PendulumFit) Params(x []float64) Pendulum {
	return Pendulum{
		Length:  lerp(x[0], p.LengthRange[0], p.LengthRange[1]),
		Damping: lerp(x[1], p.DampRange[0], p.DampRange[1]),
		Gravity: 9.81,
	}
}

func (p *PendulumFit) simulate(sys Pendulum, duration float64) [][]float64 {
	steps := int(math.Round(duration / p.Dt))
	return p.integ.Trajectory(sys, []float64{p.Theta0, 0}, p.Dt, steps)
}

func (p *PendulumFit) Likelihood(x []float64) float64 {
	if len(p.Times) == 0 {
		return 0
	}
	traj := p.simulate(p.Params(x), p.Times[len(p.Times)-1])
	ll := 0.0
	for i, t := range p.Times {
		k := min(int(math.Round(t/p.Dt)), len(traj)-1)
		ll += logNormal(p.Angles[i]-traj[k][0], p.Noise)
	}
	if math.IsNaN(ll) {
		return math.Inf(-1)
	}
	return ll
}
