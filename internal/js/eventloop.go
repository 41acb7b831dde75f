package js

import "sync"

// eventLoop collects completions of host operations. A host operation
// reserves a slot before going asynchronous and hands its completion to the
// returned enqueue function from any goroutine; the runtime owner runs the
// queued completions on its next poll.
type eventLoop struct {
	mu       sync.Mutex
	queue    []func() error
	reserved int
}

// reserve registers one outstanding operation. The returned function must be
// called at most once; further calls are ignored.
func (l *eventLoop) reserve() func(func() error) {
	l.mu.Lock()
	l.reserved++
	l.mu.Unlock()

	var once sync.Once
	return func(cb func() error) {
		once.Do(func() {
			l.mu.Lock()
			l.queue = append(l.queue, cb)
			l.reserved--
			l.mu.Unlock()
		})
	}
}

// take removes and returns every ready completion.
func (l *eventLoop) take() []func() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queue
	l.queue = nil
	return q
}

// pending reports operations that have not completed plus completions not yet
// run.
func (l *eventLoop) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved + len(l.queue)
}
