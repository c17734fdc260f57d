// Package presence tracks the local availability state.
//
// Busy is driven by the session lifecycle only. Away is user controlled and
// only reachable from, and returns to, available.
package presence

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nikelwish/p2p-service/internal/storage"
)

type Status string

const (
	Available Status = "available"
	Busy      Status = "busy"
	Away      Status = "away"
)

func (s Status) Valid() bool {
	switch s {
	case Available, Busy, Away:
		return true
	}
	return false
}

var (
	ErrBusy          = errors.New("status is locked while a session or call is active")
	ErrInvalidStatus = errors.New("invalid status")
)

// ChangeFunc observes a successful transition.
type ChangeFunc func(from, to Status)

type Tracker struct {
	kv  storage.Store
	log *slog.Logger

	mu       sync.Mutex
	status   Status
	onChange []ChangeFunc
}

func NewTracker(kv storage.Store, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{kv: kv, log: log, status: Available}
}

// OnChange registers fn for every transition. Handlers run synchronously on
// the goroutine that caused the transition.
func (t *Tracker) OnChange(fn ChangeFunc) {
	t.mu.Lock()
	t.onChange = append(t.onChange, fn)
	t.mu.Unlock()
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetStatus is the user-facing toggle between available and away.
func (t *Tracker) SetStatus(s Status) error {
	if s != Available && s != Away {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	if t.Status() == Busy {
		return ErrBusy
	}
	t.transition(s)
	return nil
}

// MarkBusy is called when a session, call or hosted room becomes active.
// Leaving away goes through available so observers see a legal sequence.
func (t *Tracker) MarkBusy() {
	switch t.Status() {
	case Busy:
		return
	case Away:
		t.transition(Available)
	}
	t.transition(Busy)
}

// Release returns from busy to available once everything is torn down.
func (t *Tracker) Release() {
	if t.Status() != Busy {
		return
	}
	t.transition(Available)
}

// Restore applies the persisted status at startup. Only away is restored;
// busy cannot outlive the session that caused it.
func (t *Tracker) Restore() Status {
	raw, ok, err := t.kv.Get(storage.KeyPresence)
	if err != nil {
		t.log.Warn("read persisted presence", "error", err)
		return t.Status()
	}
	if ok && Status(raw) == Away && t.Status() == Available {
		t.transition(Away)
	}
	return t.Status()
}

func (t *Tracker) transition(to Status) {
	t.mu.Lock()
	from := t.status
	if from == to {
		t.mu.Unlock()
		return
	}
	t.status = to
	handlers := make([]ChangeFunc, len(t.onChange))
	copy(handlers, t.onChange)
	t.mu.Unlock()

	if err := t.kv.Set(storage.KeyPresence, string(to)); err != nil {
		t.log.Warn("persist presence", "status", to, "error", err)
	}
	t.log.Debug("presence changed", "from", from, "to", to)

	for _, fn := range handlers {
		fn(from, to)
	}
}
