// Package task provides a serial executor: a runner that owns one goroutine
// and executes submitted functions on it in order. Binding work to a runner
// gives a component a single execution context without locking.
package task

import (
	"context"
	"errors"
	"sync"

	"github.com/petermattis/goid"
)

// ErrRunnerClosed is returned when submitting work to a closed runner.
var ErrRunnerClosed = errors.New("runner closed")

// Runner executes functions one at a time on its own goroutine. Tasks
// submitted through Do run in submission order; a task that calls Do on its
// own runner is executed inline rather than deadlocking on itself.
type Runner struct {
	tasks     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// loopID is the goroutine id of the loop, written before the runner is
	// returned to the caller and read-only afterwards.
	loopID int64
}

// NewRunner starts a runner. The caller must Close it when done.
func NewRunner() *Runner {
	r := &Runner{
		tasks: make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	started := make(chan struct{})
	go r.loop(started)
	<-started
	return r
}

func (r *Runner) loop(started chan<- struct{}) {
	r.loopID = goid.Get()
	close(started)
	defer close(r.done)

	for {
		select {
		case fn := <-r.tasks:
			fn()
		case <-r.quit:
			// Drain submissions that already rendezvoused with the channel.
			for {
				select {
				case fn := <-r.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// OnLoop reports whether the caller is running on the runner's goroutine.
func (r *Runner) OnLoop() bool {
	return goid.Get() == r.loopID
}

// Do executes fn on the runner's goroutine and returns its error. When called
// from the runner's own goroutine, fn runs inline. If ctx is done before the
// task is accepted, Do returns the context error without running fn; if ctx
// is done while waiting for a result, Do returns the context error but the
// task still runs to completion on the runner.
func (r *Runner) Do(ctx context.Context, fn func() error) error {
	if r.OnLoop() {
		return fn()
	}

	res := make(chan error, 1)
	select {
	case r.tasks <- func() { res <- fn() }:
	case <-r.quit:
		return ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the runner and waits for its goroutine to exit. Tasks already
// accepted still run; later submissions fail with ErrRunnerClosed. Close is
// safe to call more than once and from any goroutine except the runner's own.
func (r *Runner) Close() {
	r.closeOnce.Do(func() { close(r.quit) })
	<-r.done
}
