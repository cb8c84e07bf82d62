// Package race runs competing workers over a shared search space and keeps the
// first result. The first worker to succeed raises a shared stop flag; the others
// observe it between steps and return without a result.
package race

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by a worker that gave up because another worker won.
var ErrStopped = errors.New("stopped by winning worker")

// ErrNoWinner is returned by Wait when every worker finished without a result.
var ErrNoWinner = errors.New("no worker produced a result")

// Worker searches until it finds a result, exhausts its space, or sees stop set.
// It must check stop at least once per step.
type Worker[T any] func(stop *atomic.Bool) (T, error)

type Group[T any] struct {
	g      errgroup.Group
	stop   atomic.Bool
	winner chan T

	mu   sync.Mutex
	errs []error
}

// NewGroup returns a group that runs at most limit workers at once. A limit of
// zero or less means no limit.
func NewGroup[T any](limit int) *Group[T] {
	g := &Group[T]{winner: make(chan T, 1)}
	if limit > 0 {
		g.g.SetLimit(limit)
	}
	return g
}

// Go starts w. Must not be called after Wait.
func (g *Group[T]) Go(w Worker[T]) {
	g.g.Go(func() error {
		if g.stop.Load() {
			return nil
		}
		v, err := w(&g.stop)
		if err != nil {
			if !errors.Is(err, ErrStopped) {
				g.mu.Lock()
				g.errs = append(g.errs, err)
				g.mu.Unlock()
			}
			return nil
		}
		if g.stop.CompareAndSwap(false, true) {
			g.winner <- v
		}
		return nil
	})
}

// Stopped reports whether a worker has already won.
func (g *Group[T]) Stopped() bool { return g.stop.Load() }

// Wait blocks until every worker has returned. It returns the winning result, or
// ErrNoWinner joined with every worker error.
func (g *Group[T]) Wait() (T, error) {
	_ = g.g.Wait() // worker errors are kept in g.errs
	select {
	case v := <-g.winner:
		return v, nil
	default:
	}
	return *new(T), errors.Join(append([]error{ErrNoWinner}, g.errs...)...)
}

// First races workers to completion with no concurrency limit.
func First[T any](workers ...Worker[T]) (T, error) {
	g := NewGroup[T](0)
	for _, w := range workers {
		g.Go(w)
	}
	return g.Wait()
}
