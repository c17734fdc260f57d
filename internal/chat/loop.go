package chat

import (
	"sync"
	"time"
)

// loop runs posted functions one at a time on its own goroutine. All manager
// state is owned by it.
type loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
	exited  chan struct{}
}

func newLoop() *loop {
	l := &loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.wake:
			for {
				l.mu.Lock()
				if len(l.queue) == 0 {
					l.mu.Unlock()
					break
				}
				fn := l.queue[0]
				l.queue[0] = nil
				l.queue = l.queue[1:]
				l.mu.Unlock()
				fn()
			}
		case <-l.done:
			return
		}
	}
}

// post queues fn and reports whether the loop accepted it.
func (l *loop) post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// call runs fn on the loop and waits for its result. It must not be used
// from the loop itself.
func (l *loop) call(fn func() error) error {
	res := make(chan error, 1)
	if !l.post(func() { res <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-res:
		return err
	case <-l.exited:
		return ErrClosed
	}
}

// after posts fn once d has elapsed. The returned func cancels it.
func (l *loop) after(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { l.post(fn) })
	return func() { t.Stop() }
}

// every posts fn each period until the returned func is called.
func (l *loop) every(period time.Duration, fn func()) func() {
	if period <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.post(fn)
			case <-stop:
				return
			case <-l.done:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

// stop drains nothing further and ends the goroutine once the current
// function returns.
func (l *loop) stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
}
