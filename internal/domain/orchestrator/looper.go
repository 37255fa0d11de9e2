package orchestrator

import "sync"

// command is one unit of work on the orchestrator queue.
type command struct {
	name string
	fn   func()
}

// looper is the single-owner command queue: one goroutine drains it in
// strict FIFO order. The queue is unbounded so callbacks running on
// the loop goroutine can always post follow-up commands without
// blocking themselves.
type looper struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []command
	stopped bool
	done    chan struct{}
}

func newLooper() *looper {
	l := &looper{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// post enqueues a command. Reports false once the loop is stopping.
func (l *looper) post(c command) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.queue = append(l.queue, c)
	l.cond.Signal()
	return true
}

// run drains the queue until stop is called and the queue empties.
// Must be called from exactly one goroutine.
func (l *looper) run(observe func(name string, depth int)) {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.stopped {
			l.mu.Unlock()
			return
		}
		c := l.queue[0]
		l.queue = l.queue[1:]
		depth := len(l.queue)
		l.mu.Unlock()

		if observe != nil {
			observe(c.name, depth)
		}
		c.fn()
	}
}

// stop rejects further posts; already-queued commands still run.
func (l *looper) stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// wait blocks until the loop goroutine exits.
func (l *looper) wait() { <-l.done }

func (l *looper) depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
