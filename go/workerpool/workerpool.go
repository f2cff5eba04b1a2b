// Package workerpool provides a simple worker pool with a fixed number of
// goroutines that run submitted functions.
package workerpool

import "sync"

// Pool runs submitted functions on a fixed number of worker goroutines. A
// Pool is single use: after Wait() has been called no more work may be
// submitted.
type Pool struct {
	work chan func()
	wg   sync.WaitGroup
	done bool
}

// New returns a Pool with the given number of worker goroutines.
func New(numWorkers int) *Pool {
	p := &Pool{
		work: make(chan func()),
	}
	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer p.wg.Done()
			for fn := range p.work {
				fn()
			}
		}()
	}
	return p
}

// Go submits a function to the pool, blocking until a worker is free to pick
// it up. Go panics if called after Wait.
func (p *Pool) Go(fn func()) {
	if p.done {
		panic("workerpool: Go called after Wait")
	}
	p.work <- fn
}

// Wait blocks until all submitted functions have finished and shuts the pool
// down. Wait panics if called twice.
func (p *Pool) Wait() {
	if p.done {
		panic("workerpool: Wait called twice")
	}
	p.done = true
	close(p.work)
	p.wg.Wait()
}
