package pool

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dynfit/internal/model"
)

const (
	// DefaultSubject is the request subject workers listen on.
	DefaultSubject = "dynfit.tasks"
	// QueueGroup load-balances requests across worker processes.
	QueueGroup = "dynfit-workers"
)

// NATSOptions configures the master side of a NATS pool.
type NATSOptions struct {
	URL     string
	Subject string
	Timeout time.Duration
	// Conn, when set, is used instead of dialing URL and is not closed by
	// the pool.
	Conn *nats.Conn
}

// NATS dispatches tasks to remote workers over request/reply. Positions in
// the result slice match the task slice regardless of which worker answered.
type NATS struct {
	conn    *nats.Conn
	owned   bool
	subject string
	timeout time.Duration
	workers int
	closed  atomic.Bool
}

type reply struct {
	Outcome Outcome
	Err     string
}

// NewNATS wraps an existing connection. workers bounds in-flight requests
// and should match the number of remote worker subscriptions.
func NewNATS(conn *nats.Conn, subject string, workers int, timeout time.Duration) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NATS{conn: conn, subject: subject, timeout: timeout, workers: workers}
}

// DialNATS connects to opts.URL unless opts.Conn is provided.
func DialNATS(opts NATSOptions, workers int) (*NATS, error) {
	if opts.Conn != nil {
		return NewNATS(opts.Conn, opts.Subject, workers, opts.Timeout), nil
	}
	url := opts.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("dynfit-master"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("pool: connect %s: %w", url, err)
	}
	p := NewNATS(nc, opts.Subject, workers, opts.Timeout)
	p.owned = true
	return p, nil
}

func (p *NATS) Map(ctx context.Context, tasks []Task) ([]Outcome, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	out := make([]Outcome, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range tasks {
		g.Go(func() error {
			data, err := encode(tasks[i])
			if err != nil {
				return err
			}
			rctx, cancel := context.WithTimeout(gctx, p.timeout)
			defer cancel()

			msg, err := p.conn.RequestWithContext(rctx, p.subject, data)
			if err != nil {
				return &TaskError{Index: i, Kind: tasks[i].Kind, Wrapped: err}
			}
			var r reply
			if err := decode(msg.Data, &r); err != nil {
				return &TaskError{Index: i, Kind: tasks[i].Kind, Wrapped: err}
			}
			if r.Err != "" {
				return &TaskError{Index: i, Kind: tasks[i].Kind, Wrapped: errors.New(r.Err)}
			}
			out[i] = r.Outcome
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

func (p *NATS) Workers() int { return p.workers }

func (p *NATS) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.owned {
		p.conn.Close()
	}
	return nil
}

// ServeOptions configures the worker side of a NATS pool.
type ServeOptions struct {
	Subject string
	// Workers is the number of subscriptions, each with its own model.
	Workers int
	Seed    int64
}

// Serve answers task requests until ctx is done. It never runs driver code:
// a worker process only maps tasks to outcomes.
func Serve(ctx context.Context, conn *nats.Conn, factory model.Factory, opts ServeOptions) error {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	subs := make([]*nats.Subscription, 0, opts.Workers)
	defer func() {
		for _, s := range subs {
			_ = s.Drain()
		}
	}()

	for i := 0; i < opts.Workers; i++ {
		w, err := newWorker(i, factory, opts.Seed)
		if err != nil {
			return err
		}
		sub, err := conn.QueueSubscribe(opts.Subject, QueueGroup, func(msg *nats.Msg) {
			var t Task
			var r reply
			if err := decode(msg.Data, &t); err != nil {
				r.Err = err.Error()
			} else if o, err := Execute(w.model, w.rng, t); err != nil {
				r.Err = err.Error()
			} else {
				r.Outcome = o
			}
			data, err := encode(r)
			if err != nil {
				return
			}
			_ = msg.Respond(data)
		})
		if err != nil {
			return fmt.Errorf("pool: subscribe %s: %w", opts.Subject, err)
		}
		subs = append(subs, sub)
	}
	if err := conn.Flush(); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

// Tasks and outcomes carry -Inf scores, which gob encodes faithfully.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
