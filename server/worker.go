package server

import (
	"fmt"

	"github.com/chazu/tickle/vm"
)

// request is a unit of work to be executed on the interpreter goroutine.
type request struct {
	fn   func(*vm.Interp) any
	done chan result
}

type result struct {
	value any
	err   error
}

// Worker serializes all interpreter access through a single goroutine.
// An Interp is not safe for concurrent use and LSP handlers run
// concurrently.
type Worker struct {
	interp   *vm.Interp
	requests chan request
	quit     chan struct{}
}

// NewWorker creates a Worker and starts its goroutine.
func NewWorker(in *vm.Interp) *Worker {
	w := &Worker{
		interp:   in,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, turning a panic into an error.
func (w *Worker) execute(fn func(*vm.Interp) any) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("%v", r)
		}
	}()
	res.value = fn(w.interp)
	return res
}

// Do runs fn on the interpreter goroutine and waits for it.
func (w *Worker) Do(fn func(*vm.Interp) any) (any, error) {
	select {
	case <-w.quit:
		return nil, errStopped
	default:
	}
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, errStopped
	}
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}
