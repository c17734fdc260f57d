// Package chat coordinates sessions, calls and rooms for the local peer. All
// state lives on one goroutine; transport callbacks and timers post onto it
// and the exported methods wait for it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikelwish/p2p-service/internal/contacts"
	"github.com/nikelwish/p2p-service/internal/identity"
	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/metrics"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/session"
	"github.com/nikelwish/p2p-service/internal/transport"
)

// maxIDRetries bounds how often a taken generated id is replaced at startup.
const maxIDRetries = 3

// ProviderFactory opens a fresh transport for each identity.
type ProviderFactory func(ctx context.Context) (transport.Provider, error)

// Options wires a Manager to its stores, transport and media. A zero
// PendingTTL keeps requests until they are answered.
type Options struct {
	Identity    *identity.Store
	Contacts    *contacts.Book
	Presence    *presence.Tracker
	NewProvider ProviderFactory
	Acquirer    *media.Acquirer
	LocalSink   media.Player
	RemoteSink  media.Player
	Notifier    Notifier
	Metrics     *metrics.Collector
	Logger      *slog.Logger

	PendingTTL          time.Duration
	BusyGrace           time.Duration
	PlaybackInterval    time.Duration
	NegotiationInterval time.Duration
	RedialDelay         time.Duration
	RestorePresence     bool
}

// Manager owns the session, call and room state of one peer. All of it lives
// on a single event loop; public methods hand their work to that loop.
type Manager struct {
	opts     Options
	log      *slog.Logger
	notifier Notifier
	loop     *loop

	// Owned by the loop.
	started     bool
	closed      bool
	gen         int
	provider    transport.Provider
	localID     string
	registry    *session.Registry
	local       *media.Stream
	level       media.Level
	call        *activeCall
	room        *hostedRoom
	membership  *membership
	invitations []*invitation
	outInvites  map[transport.DataConn]string
	inInvites   map[transport.DataConn]bool
	onOpen      map[transport.DataConn][]func()
	expiry      map[string]func()
	stopHealth  func()
}

// New creates a Manager. Nothing touches the network until Start.
func New(opts Options) (*Manager, error) {
	switch {
	case opts.Identity == nil:
		return nil, errors.New("chat: identity store is required")
	case opts.Contacts == nil:
		return nil, errors.New("chat: contact book is required")
	case opts.Presence == nil:
		return nil, errors.New("chat: presence tracker is required")
	case opts.NewProvider == nil:
		return nil, errors.New("chat: provider factory is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Event) {})
	}
	if opts.LocalSink == nil {
		opts.LocalSink = media.NewSink()
	}
	if opts.RemoteSink == nil {
		opts.RemoteSink = media.NewSink()
	}

	m := &Manager{
		opts:       opts,
		log:        opts.Logger.With("component", "chat"),
		notifier:   opts.Notifier,
		loop:       newLoop(),
		registry:   session.NewRegistry(),
		level:      media.LevelNone,
		outInvites: make(map[transport.DataConn]string),
		inInvites:  make(map[transport.DataConn]bool),
		onOpen:     make(map[transport.DataConn][]func()),
		expiry:     make(map[string]func()),
	}

	opts.Presence.OnChange(func(from, to presence.Status) {
		m.opts.Metrics.Presence(string(to), string(presence.Available), string(presence.Busy), string(presence.Away))
		m.emit(PresenceChanged{From: from, To: to})
	})
	return m, nil
}

func (m *Manager) emit(e Event) {
	m.notifier.Notify(e)
}

func (m *Manager) notice(level NoticeLevel, format string, args ...any) {
	m.emit(Notice{Level: level, Text: fmt.Sprintf(format, args...)})
}

// Start acquires local media, registers the local id and begins health
// checks. A generated id that is already taken is replaced and retried.
func (m *Manager) Start(ctx context.Context) error {
	var res media.Result
	if m.opts.Acquirer != nil {
		res = m.opts.Acquirer.Acquire(ctx)
	} else {
		res = media.Result{Stream: media.EmptyStream(), Level: media.LevelNone}
	}

	id, err := m.opts.Identity.Load()
	if err != nil {
		return NewError("start", err)
	}
	provider, id, err := m.openProvider(ctx, id, true)
	if err != nil {
		return err
	}

	return m.loop.call(func() error {
		if m.closed || m.started {
			_ = provider.Close()
			return ErrClosed
		}
		if m.opts.RestorePresence {
			m.opts.Presence.Restore()
		}
		m.local = res.Stream
		m.level = res.Level
		m.opts.LocalSink.Attach(m.local)
		if res.Warning != "" {
			m.notice(LevelWarn, "%s", res.Warning)
		}
		m.emit(m.mediaState())

		m.attach(provider, id)
		m.startHealth()
		m.started = true
		return nil
	})
}

// openProvider registers id, regenerating it on conflict when allowed.
func (m *Manager) openProvider(ctx context.Context, id string, regenerate bool) (transport.Provider, string, error) {
	provider, err := m.opts.NewProvider(ctx)
	if err != nil {
		return nil, "", NewError("open transport", err)
	}
	for attempt := 0; ; attempt++ {
		got, err := provider.Open(ctx, id)
		if err == nil {
			return provider, got, nil
		}
		if !errors.Is(err, transport.ErrIDTaken) || !regenerate || attempt >= maxIDRetries {
			_ = provider.Close()
			return nil, "", NewPeerError("register", id, err)
		}
		m.log.Warn("Peer id taken, generating a new one", "id", id)
		if id, err = m.opts.Identity.Regenerate(); err != nil {
			_ = provider.Close()
			return nil, "", NewError("register", err)
		}
	}
}

// attach makes provider current and routes its callbacks onto the loop.
// Callbacks from a replaced provider are dropped.
func (m *Manager) attach(provider transport.Provider, id string) {
	m.gen++
	gen := m.gen
	m.provider = provider
	m.localID = id

	// The connection is announced before its handlers replay anything
	// that already happened on it.
	provider.OnConnection(func(conn transport.DataConn) {
		m.post(gen, func() { m.handleConnection(conn) })
		m.watchConn(gen, conn)
	})
	provider.OnCall(func(mc transport.MediaCall) {
		m.post(gen, func() { m.handleIncomingCall(mc) })
		m.watchCall(gen, mc)
	})
	provider.OnError(func(err error) {
		m.post(gen, func() { m.handleProviderError(err) })
	})

	m.log.Info("Registered", "id", id)
	m.emit(Ready{ID: id})
}

// post runs fn on the loop unless the provider generation changed.
func (m *Manager) post(gen int, fn func()) {
	m.loop.post(func() {
		if gen != m.gen || m.closed {
			return
		}
		fn()
	})
}

func (m *Manager) handleProviderError(err error) {
	m.log.Warn("Transport error", "error", err)
	switch {
	case errors.Is(err, transport.ErrPeerUnavailable):
		m.notice(LevelError, "peer is unavailable")
	default:
		m.notice(LevelError, "transport error: %v", err)
	}
}

// ChangeIdentity drops every session, call and room, then re-registers under
// id. If id is taken the previous id is restored and the error returned.
func (m *Manager) ChangeIdentity(ctx context.Context, id string) error {
	if err := identity.Validate(id); err != nil {
		return NewError("change id", err)
	}

	var previous string
	err := m.loop.call(func() error {
		if err := m.ready(); err != nil {
			return err
		}
		previous = m.localID
		if id == previous {
			return nil
		}
		m.resetAll("identity changed")
		m.gen++
		_ = m.provider.Close()
		m.provider = nil
		return nil
	})
	if err != nil || id == previous {
		return err
	}

	provider, got, err := m.openProvider(ctx, id, false)
	if err != nil {
		fallback, old, ferr := m.openProvider(ctx, previous, true)
		if ferr != nil {
			return errors.Join(err, ferr)
		}
		_ = m.loop.call(func() error {
			m.attach(fallback, old)
			return nil
		})
		return err
	}
	if err := m.opts.Identity.Set(got); err != nil {
		m.log.Warn("Failed to persist peer id", "error", err)
	}
	return m.loop.call(func() error {
		if m.closed {
			_ = provider.Close()
			return ErrClosed
		}
		m.attach(provider, got)
		return nil
	})
}

// resetAll tears down everything tied to the current registration.
func (m *Manager) resetAll(reason string) {
	if m.call != nil {
		m.endCall(m.call, reason, true)
	}
	if m.room != nil {
		m.closeRoom()
	}
	if s := m.registry.Current(); s != nil {
		m.sendSystemTo(s.Conn, disconnectedMsg)
		m.endSession(s, reason)
	}
	current, pending := m.registry.Reset()
	if current != nil {
		_ = current.Conn.Close()
	}
	for _, p := range pending {
		m.cancelExpiry(p.Peer)
		_ = p.Conn.Close()
		m.emit(RequestExpired{Peer: p.Peer, Reason: reason})
	}
	for conn := range m.outInvites {
		_ = conn.Close()
	}
	for conn := range m.inInvites {
		_ = conn.Close()
	}
	m.outInvites = make(map[transport.DataConn]string)
	m.inInvites = make(map[transport.DataConn]bool)
	m.invitations = nil
	m.onOpen = make(map[transport.DataConn][]func())
	m.syncPresence()
}

// Close disconnects everything and stops the manager.
func (m *Manager) Close() error {
	err := m.loop.call(func() error {
		if m.closed {
			return nil
		}
		if m.stopHealth != nil {
			m.stopHealth()
		}
		var err error
		if m.provider != nil {
			m.resetAll("shutting down")
			err = m.provider.Close()
		}
		if m.local != nil {
			m.local.Stop()
		}
		m.opts.LocalSink.Detach()
		m.closed = true
		return err
	})
	m.loop.stop()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Sync waits until everything posted so far has been handled.
func (m *Manager) Sync() {
	_ = m.loop.call(func() error { return nil })
}

// syncPresence derives busy from what is open: an agreed session, a call
// past ringing, or a hosted room.
func (m *Manager) syncPresence() {
	busy := false
	if s := m.registry.Current(); s.Active() && s.Accepted {
		busy = true
	}
	if m.call != nil && m.call.state != callRinging {
		busy = true
	}
	if m.room != nil {
		busy = true
	}
	if busy {
		m.opts.Presence.MarkBusy()
	} else {
		m.opts.Presence.Release()
	}
}

// engagedWith reports whether peer is the other end of something open.
func (m *Manager) engagedWith(peer string) bool {
	if s := m.registry.Current(); s.Active() && s.Peer == peer {
		return true
	}
	if m.call != nil && m.call.peer == peer && m.call.state != callRinging {
		return true
	}
	if m.room != nil {
		if _, ok := m.room.links[peer]; ok {
			return true
		}
	}
	return false
}

// ready reports whether a provider is registered.
func (m *Manager) ready() error {
	if !m.started || m.provider == nil {
		return ErrNotStarted
	}
	return nil
}

// SetPresence changes the user-selectable status.
func (m *Manager) SetPresence(status presence.Status) error {
	return m.loop.call(func() error {
		if err := m.opts.Presence.SetStatus(status); err != nil {
			return NewError("set status", err)
		}
		return nil
	})
}

// AddContact saves peer and, if named, gives it a display name.
func (m *Manager) AddContact(peer, name string) (contacts.Contact, error) {
	c, err := m.opts.Contacts.Add(peer, name)
	if err != nil {
		return contacts.Contact{}, NewPeerError("add contact", peer, err)
	}
	return c, nil
}

// ID returns the registered local id.
func (m *Manager) ID() string {
	var id string
	_ = m.loop.call(func() error {
		id = m.localID
		return nil
	})
	return id
}
