package pool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dynfit/internal/model"
)

// Pool maps tasks to outcomes. Map blocks until every task has finished and
// returns outcomes positionally aligned with tasks.
type Pool interface {
	Map(ctx context.Context, tasks []Task) ([]Outcome, error)
	// Workers is the number of tasks that can run concurrently.
	Workers() int
	// Close releases workers. It is safe to call more than once.
	Close() error
}

// Strategy names accepted by New.
const (
	StrategySerial   = "serial"
	StrategyParallel = "parallel"
	StrategyNATS     = "nats"
)

type worker struct {
	id    int
	model model.Model
	rng   *rand.Rand
}

func newWorker(id int, factory model.Factory, seed int64) (*worker, error) {
	m, err := factory()
	if err != nil {
		return nil, fmt.Errorf("pool: init worker %d: %w", id, err)
	}
	return &worker{id: id, model: m, rng: rand.New(rand.NewSource(seed + int64(id)*7919))}, nil
}

// Serial runs every task in the calling goroutine.
type Serial struct {
	w      *worker
	closed atomic.Bool
}

// NewSerial builds a serial pool with a single model instance.
func NewSerial(factory model.Factory, seed int64) (*Serial, error) {
	w, err := newWorker(0, factory, seed)
	if err != nil {
		return nil, err
	}
	return &Serial{w: w}, nil
}

func (s *Serial) Map(ctx context.Context, tasks []Task) ([]Outcome, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	out := make([]Outcome, len(tasks))
	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o, err := Execute(s.w.model, s.w.rng, t)
		if err != nil {
			return nil, &TaskError{Index: i, Kind: t.Kind, Wrapped: err}
		}
		out[i] = o
	}
	return out, nil
}

func (s *Serial) Workers() int { return 1 }

func (s *Serial) Close() error {
	s.closed.Store(true)
	return nil
}

// Parallel runs tasks on a fixed set of goroutine workers. Each worker owns
// its model instance and random source for the lifetime of the pool.
type Parallel struct {
	idle   chan *worker
	size   int
	mu     sync.RWMutex
	closed bool
}

// NewParallel builds n workers, calling factory once per worker.
func NewParallel(n int, factory model.Factory, seed int64) (*Parallel, error) {
	if n < 1 {
		n = 1
	}
	p := &Parallel{idle: make(chan *worker, n), size: n}
	for i := 0; i < n; i++ {
		w, err := newWorker(i, factory, seed)
		if err != nil {
			return nil, err
		}
		p.idle <- w
	}
	return p, nil
}

func (p *Parallel) Map(ctx context.Context, tasks []Task) ([]Outcome, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	out := make([]Outcome, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i := range tasks {
		g.Go(func() error {
			var w *worker
			select {
			case w = <-p.idle:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { p.idle <- w }()

			o, err := Execute(w.model, w.rng, tasks[i])
			if err != nil {
				return &TaskError{Index: i, Kind: tasks[i].Kind, Wrapped: err}
			}
			out[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return out, nil
}

func (p *Parallel) Workers() int { return p.size }

// Close waits for in-flight Map calls and rejects new ones.
func (p *Parallel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Options configures New.
type Options struct {
	Strategy string
	Workers  int
	Seed     int64
	NATS     NATSOptions
}

// New builds the pool strategy named by opts.Strategy.
func New(opts Options, factory model.Factory) (Pool, error) {
	switch opts.Strategy {
	case "", StrategySerial:
		return NewSerial(factory, opts.Seed)
	case StrategyParallel:
		return NewParallel(opts.Workers, factory, opts.Seed)
	case StrategyNATS:
		if opts.NATS.Timeout == 0 {
			opts.NATS.Timeout = 30 * time.Second
		}
		return DialNATS(opts.NATS, opts.Workers)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
}
