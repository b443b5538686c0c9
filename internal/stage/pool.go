// Package stage implements the pool-of-workers topology of spec §2: a
// fixed-size set of identical workers consuming from an upstream
// Queue and producing to a downstream Queue. Generalized from the
// teacher's internal/driver/jpeg.Farm (a fixed set of compressor
// goroutines draining a task channel) into a reusable generic Pool
// that every pipeline stage (Encoder, Sender, Receiver, Outputter)
// builds on.
package stage

import (
	"context"
	"sync"
	"time"

	"github.com/warpcomdev/inferpipe/internal/metrics"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/queue"
)

// Worker transforms one item of type In into zero or one item of type
// Out. Returning (zero, false, nil) drops the item silently (used by
// Receiver when a frame's backend call ultimately yields nothing
// sink-worthy); returning a non-nil error fails the frame per spec §7.
type Worker[In, Out any] func(ctx context.Context, item In) (Out, bool, error)

// ErrorHandler decides what a stage does when a Worker returns an
// error: log and drop, or escalate and trigger a hard stop. The
// Supervisor wires this (spec §4.7).
type ErrorHandler func(err error)

// Pool runs a fixed number of workers, each pulling from in and
// pushing to out, until in is closed and drained and every worker has
// exited.
type Pool[In, Out any] struct {
	name    string
	in      queue.Queue[In]
	out     queue.Queue[Out]
	workers int
	fn      Worker[In, Out]
	onError ErrorHandler
	log     pipelog.Logger
	wg      sync.WaitGroup
}

// New builds a Pool. name is used as the Prometheus label and in log
// lines, matching the teacher's per-stage structured logging idiom.
func New[In, Out any](name string, workers int, in queue.Queue[In], out queue.Queue[Out], fn Worker[In, Out], onError ErrorHandler, log pipelog.Logger) *Pool[In, Out] {
	if log == nil {
		log = pipelog.Nop()
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Pool[In, Out]{name: name, in: in, out: out, workers: workers, fn: fn, onError: onError, log: log}
}

// Run starts the worker goroutines; it returns immediately. Call Wait
// to block until every worker has exited (the upstream queue was
// closed and drained).
func (p *Pool[In, Out]) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool[In, Out]) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With(pipelog.String("stage", p.name), pipelog.Int("worker", id))
	for {
		item, ok := p.in.Get(ctx)
		if !ok {
			return
		}
		start := time.Now()
		result, keep, err := p.fn(ctx, item)
		metrics.StageLatency.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.StageProcessed.WithLabelValues(p.name, "error").Inc()
			log.Error("stage worker failed", pipelog.Error(err))
			p.onError(err)
			continue
		}
		if !keep {
			metrics.StageProcessed.WithLabelValues(p.name, "dropped").Inc()
			continue
		}
		metrics.StageProcessed.WithLabelValues(p.name, "ok").Inc()
		if p.out != nil {
			if err := p.out.Put(ctx, result); err != nil {
				return
			}
		}
	}
}

// Wait blocks until all workers have exited, then closes out (if set),
// the teacher's Farm.Stop idiom generalized to a chained pipeline: a
// stage only signals "done" downstream once every one of its own
// workers has drained.
func (p *Pool[In, Out]) Wait() {
	p.wg.Wait()
	if p.out != nil {
		p.out.Close()
	}
}
