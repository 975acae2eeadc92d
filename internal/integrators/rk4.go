// Package integrators steps ordinary differential equations forward in
// time for models whose likelihood needs a simulated trajectory.
package integrators

// System is a first-order ODE dx/dt = f(x, t).
type System interface {
	Derive(x []float64, t float64) []float64
}

// RK4 is the classic fourth-order Runge-Kutta stepper. It reuses scratch
// buffers between steps and is not safe for concurrent use.
type RK4 struct {
	k1, k2, k3, k4 []float64
	scratch        []float64
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.scratch = make([]float64, n)
	}
}

func (r *RK4) Step(sys System, x []float64, t, dt float64) []float64 {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k1, sys.Derive(x, t))
	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	copy(r.k2, sys.Derive(r.scratch, t+dt*0.5))
	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	copy(r.k3, sys.Derive(r.scratch, t+dt*0.5))
	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	copy(r.k4, sys.Derive(r.scratch, t+dt))

	out := make([]float64, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		out[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return out
}

// Trajectory integrates sys from x0 and returns the state after every
// step, starting with x0 itself.
func (r *RK4) Trajectory(sys System, x0 []float64, dt float64, steps int) [][]float64 {
	out := make([][]float64, 0, steps+1)
	x := append([]float64(nil), x0...)
	out = append(out, x)
	for i := 0; i < steps; i++ {
		x = r.Step(sys, x, float64(i)*dt, dt)
		out = append(out, x)
	}
	return out
}
