package chat

import "sync"

// Executor runs tasks strictly in enqueue order with concurrency one.
// Enqueue is synchronous and never blocks on the worker, so the order tasks
// are enqueued in is the order they run in — the pipeline relies on this for
// its global direct-message ordering guarantee.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewExecutor starts the single worker goroutine.
func NewExecutor() *Executor {
	e := &Executor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// Enqueue appends a task. Tasks enqueued after Close are dropped.
func (e *Executor) Enqueue(task func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.queue = append(e.queue, task)
	e.cond.Signal()
}

// Flush blocks until every task enqueued before the call has run.
func (e *Executor) Flush() {
	drained := make(chan struct{})
	e.Enqueue(func() { close(drained) })

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	<-drained
}

// Close drains the queue and stops the worker.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()
	<-e.done
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		task()
	}
}
