package camera

import (
	"sync"
)

// worker runs posted tasks one at a time on a single goroutine. All hardware
// callbacks go through it so they are strictly serialized.
type worker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	started bool
	closed  bool
	done    chan struct{}
}

func newWorker() *worker {
	w := &worker{done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start launches the worker goroutine. Calling it again is a no-op.
func (w *worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.run()
}

// Post queues fn. It reports false once the worker is stopping.
func (w *worker) Post(fn func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.queue = append(w.queue, fn)
	w.cond.Signal()
	return true
}

// Stop rejects new tasks, runs the ones already queued and waits for the
// goroutine to exit. It is safe to call more than once.
func (w *worker) Stop() {
	w.mu.Lock()
	started := w.started
	if !w.closed {
		w.closed = true
		w.cond.Broadcast()
	}
	w.mu.Unlock()

	if started {
		<-w.done
	}
}

func (w *worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		fn := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.mu.Unlock()

		fn()
	}
}
