package fitter

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/san-kum/dynfit/internal/convergence"
	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/sampler"
)

// RungSummary condenses the scores of one temperature rung.
type RungSummary struct {
	Beta float64
	Max  float64
	Mean float64
}

// Progress is pushed to the Reporter after every iteration.
type Progress struct {
	Iteration  int
	Total      int
	BurnIn     int
	Phase      Phase
	Scores     []RungSummary
	Acceptance []float64
	Autocorr   convergence.Autocorr
	PSRF       *float64
	Remaining  *time.Duration
	Elapsed    time.Duration
	Repair     RepairStats
	Frack      FrackStats
	Messages   []string
}

// Reporter receives progress. Implementations must not retain the Progress
// slices beyond the call.
type Reporter interface {
	Report(Progress)
}

type ReporterFunc func(Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

// MultiReporter fans progress out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(p Progress) {
	for _, r := range m {
		if r != nil {
			r.Report(p)
		}
	}
}

type nopReporter struct{}

func (nopReporter) Report(Progress) {}

// LineReporter writes one status line per iteration.
type LineReporter struct {
	w io.Writer
}

func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

func (r *LineReporter) Report(p Progress) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d/%d", p.Phase, p.Iteration+1, p.Total)
	if len(p.Scores) > 0 {
		fmt.Fprintf(&b, " best=%.3f", p.Scores[0].Max)
	}
	if len(p.Acceptance) > 0 {
		fmt.Fprintf(&b, " acc=%.2f", p.Acceptance[0])
	}
	if p.Autocorr.Defined() {
		fmt.Fprintf(&b, " tau=%.1f", *p.Autocorr.Tau)
	}
	if p.PSRF != nil {
		fmt.Fprintf(&b, " psrf=%.3f", *p.PSRF)
	}
	if p.Remaining != nil {
		fmt.Fprintf(&b, " eta=%s", p.Remaining.Round(time.Second))
	}
	for _, m := range p.Messages {
		b.WriteString(" | ")
		b.WriteString(m)
	}
	fmt.Fprintln(r.w, b.String())
}

func summarize(ens *sampler.Ensemble) []RungSummary {
	out := make([]RungSummary, ens.NumTemps())
	for t := range out {
		best := math.Inf(-1)
		sum, n := 0.0, 0
		for _, s := range ens.Scores(t) {
			if !model.IsFinite(s) {
				continue
			}
			best = math.Max(best, s)
			sum += s
			n++
		}
		mean := math.Inf(-1)
		if n > 0 {
			mean = sum / float64(n)
		}
		out[t] = RungSummary{Beta: ens.Betas[t], Max: best, Mean: mean}
	}
	return out
}

// remaining estimates the time left given the elapsed time, the time spent
// fracking and the iterations done so far.
func remaining(elapsed, frackTime time.Duration, done, total, burnIn int) *time.Duration {
	if done <= 0 {
		return nil
	}
	left := max(total-done, 0)
	burnLeft := max(burnIn-done, 0)
	sampling := float64(elapsed-frackTime) / float64(done)
	fracking := float64(frackTime) / float64(done)
	d := time.Duration(sampling*float64(left) + fracking*float64(burnLeft))
	return &d
}
