package pool

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/dynfit/internal/model"
)

type TaskKind int

const (
	// TaskEvaluate scores X: LogLikelihood and LogPrior.
	TaskEvaluate TaskKind = iota
	// TaskDraw draws a new walker; Test requests scoring.
	TaskDraw
	// TaskFrack locally optimizes X with Seed.
	TaskFrack
)

func (k TaskKind) String() string {
	switch k {
	case TaskEvaluate:
		return "evaluate"
	case TaskDraw:
		return "draw"
	case TaskFrack:
		return "frack"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Task is one unit of work. It carries only plain data so it can cross a
// process boundary.
type Task struct {
	Kind TaskKind
	X    []float64
	Seed int64
	Test bool
}

// Outcome is the result of a Task. Fun is only set by TaskFrack.
type Outcome struct {
	X             []float64
	LogLikelihood float64
	LogPrior      float64
	Fun           float64
}

// Evaluate builds a TaskEvaluate for each position.
func Evaluate(xs [][]float64) []Task {
	tasks := make([]Task, len(xs))
	for i, x := range xs {
		tasks[i] = Task{Kind: TaskEvaluate, X: x}
	}
	return tasks
}

// Execute runs a single task against m. It is the only worker entry point
// and is shared by every strategy.
func Execute(m model.Model, rng *rand.Rand, t Task) (Outcome, error) {
	switch t.Kind {
	case TaskEvaluate:
		lp := m.Prior(t.X)
		out := Outcome{X: t.X, LogPrior: lp}
		if model.IsFinite(lp) {
			out.LogLikelihood = m.Likelihood(t.X)
		} else {
			out.LogLikelihood = math.Inf(-1)
		}
		return out, nil
	case TaskDraw:
		if t.Seed != 0 {
			rng = rand.New(rand.NewSource(t.Seed))
		}
		d, err := m.DrawWalker(rng, t.Test)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{X: d.X, LogLikelihood: d.LogLikelihood, LogPrior: d.LogPrior}, nil
	case TaskFrack:
		res, err := m.Frack(t.X, t.Seed)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{X: res.X, Fun: res.Fun, LogPrior: m.Prior(res.X), LogLikelihood: -res.Fun}, nil
	}
	return Outcome{}, ErrUnknownTask
}
