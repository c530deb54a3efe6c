// Package loop provides the serial executor that owns a transaction's mutable state.
//
// Closures posted to a [Loop] run one at a time, in posting order, on a single goroutine.
// Posting never blocks, so closures may post further work for a later turn.
package loop

import "sync"

// Loop is an unbounded FIFO of closures drained by one goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	signal  chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New starts a loop goroutine.
func New() *Loop {
	l := &Loop{
		queue:   make([]func(), 0, 16),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post schedules fn for a later turn. It returns false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	if l == nil || fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// Flush blocks until every closure posted before the call has run.
// It must not be called from the loop goroutine.
func (l *Loop) Flush() {
	ran := make(chan struct{})
	if !l.Post(func() { close(ran) }) {
		return
	}
	select {
	case <-ran:
	case <-l.stopped:
	}
}

// Close stops accepting work. Closures already queued still run. Close may be
// called from the loop goroutine.
func (l *Loop) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.done)
	})
}

// Stopped is closed when the loop goroutine has exited.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) run() {
	defer close(l.stopped)

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
		}
		select {
		case <-l.signal:
		case <-l.done:
			for {
				fn, ok := l.next()
				if !ok {
					return
				}
				fn()
			}
		}
	}
}
