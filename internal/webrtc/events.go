package webrtc

import "sync"

// latch is a one-shot event. A handler set after the event fired runs
// immediately.
type latch struct {
	mu    sync.Mutex
	fired bool
	fn    func()
}

func (l *latch) set(fn func()) {
	l.mu.Lock()
	l.fn = fn
	fired := l.fired
	l.mu.Unlock()
	if fired && fn != nil {
		fn()
	}
}

func (l *latch) fire() bool {
	l.mu.Lock()
	if l.fired {
		l.mu.Unlock()
		return false
	}
	l.fired = true
	fn := l.fn
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
	return true
}

func (l *latch) done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fired
}

// errLatch keeps the first error and replays it to a late handler.
type errLatch struct {
	mu  sync.Mutex
	err error
	fn  func(error)
}

func (l *errLatch) set(fn func(error)) {
	l.mu.Lock()
	l.fn = fn
	err := l.err
	l.mu.Unlock()
	if err != nil && fn != nil {
		fn(err)
	}
}

func (l *errLatch) fire(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	fn := l.fn
	l.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// inbox buffers payloads until a handler is attached.
type inbox struct {
	mu      sync.Mutex
	pending [][]byte
	fn      func([]byte)
}

func (b *inbox) set(fn func([]byte)) {
	b.mu.Lock()
	b.fn = fn
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, d := range pending {
		fn(d)
	}
}

func (b *inbox) push(data []byte) {
	b.mu.Lock()
	fn := b.fn
	if fn == nil {
		b.pending = append(b.pending, data)
	}
	b.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}
