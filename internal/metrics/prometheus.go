// Package metrics exports fit progress as Prometheus metrics.
package metrics

import (
	"math"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/dynfit/internal/fitter"
	"github.com/san-kum/dynfit/internal/model"
)

// Prometheus is a fitter.Reporter that mirrors progress into gauges and
// counters registered on reg.
type Prometheus struct {
	iteration  prometheus.Gauge
	total      prometheus.Gauge
	bestScore  *prometheus.GaugeVec
	acceptance *prometheus.GaugeVec
	psrf       prometheus.Gauge
	tau        prometheus.Gauge
	remaining  prometheus.Gauge
	repaired   prometheus.Counter
	fracked    prometheus.Counter
}

func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	p := &Prometheus{
		iteration: gauge("iteration", "Index of the last completed iteration."),
		total:     gauge("iterations_total", "Planned number of iterations."),
		bestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_score", Help: "Highest tempered score per rung.",
		}, []string{"rung"}),
		acceptance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "acceptance_fraction", Help: "Stretch-move acceptance per rung.",
		}, []string{"rung"}),
		psrf:      gauge("psrf", "Latest potential scale reduction factor."),
		tau:       gauge("autocorr_time", "Latest integrated autocorrelation time."),
		remaining: gauge("remaining_seconds", "Estimated time left."),
		repaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "repaired_walkers_total", Help: "Divergent walkers replaced.",
		}),
		fracked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frack_improvements_total", Help: "Walkers improved by fracking.",
		}),
	}
	for _, c := range []prometheus.Collector{
		p.iteration, p.total, p.bestScore, p.acceptance, p.psrf, p.tau, p.remaining, p.repaired, p.fracked,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	p.psrf.Set(math.NaN())
	p.tau.Set(math.NaN())
	return p, nil
}

func rungLabel(t int) string {
	return strconv.Itoa(t)
}

func (p *Prometheus) Report(pr fitter.Progress) {
	p.iteration.Set(float64(pr.Iteration))
	p.total.Set(float64(pr.Total))
	for t, s := range pr.Scores {
		if model.IsFinite(s.Max) {
			p.bestScore.WithLabelValues(rungLabel(t)).Set(s.Max)
		}
	}
	for t, a := range pr.Acceptance {
		p.acceptance.WithLabelValues(rungLabel(t)).Set(a)
	}
	if pr.PSRF != nil {
		p.psrf.Set(*pr.PSRF)
	}
	if pr.Autocorr.Defined() {
		p.tau.Set(*pr.Autocorr.Tau)
	}
	if pr.Remaining != nil {
		p.remaining.Set(pr.Remaining.Seconds())
	}
	p.repaired.Add(float64(pr.Repair.Replaced))
	p.fracked.Add(float64(pr.Frack.Improved))
}
