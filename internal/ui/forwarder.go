package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nikelwish/p2p-service/internal/chat"
)

// EventMsg carries a chat event into the bubbletea program.
type EventMsg struct {
	Event chat.Event
}

// Forwarder queues events from the manager and hands them to the program on
// its own goroutine. Notify never blocks, since program.Send would stall the
// manager until the UI drains its channel.
type Forwarder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []chat.Event
	closed bool
}

var _ chat.Notifier = (*Forwarder)(nil)

func NewForwarder() *Forwarder {
	f := &Forwarder{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Forwarder) Notify(e chat.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.queue = append(f.queue, e)
	f.cond.Signal()
}

// Run delivers queued events in order until Stop is called.
func (f *Forwarder) Run(send func(tea.Msg)) {
	for {
		f.mu.Lock()
		for len(f.queue) == 0 && !f.closed {
			f.cond.Wait()
		}
		if f.closed {
			f.mu.Unlock()
			return
		}
		batch := f.queue
		f.queue = nil
		f.mu.Unlock()

		for _, e := range batch {
			send(EventMsg{Event: e})
		}
	}
}

// Stop ends Run and drops anything not yet delivered.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	f.closed = true
	f.queue = nil
	f.cond.Broadcast()
	f.mu.Unlock()
}
