package chat

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nikelwish/p2p-service/internal/contacts"
	"github.com/nikelwish/p2p-service/internal/identity"
	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/media/mediatest"
	"github.com/nikelwish/p2p-service/internal/metrics"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/storage"
	"github.com/nikelwish/p2p-service/internal/transport"
	"github.com/nikelwish/p2p-service/internal/transport/transporttest"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func eventsOf[T Event](r *recorder) []T {
	var out []T
	for _, e := range r.all() {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type testPeer struct {
	id       string
	m        *Manager
	events   *recorder
	kv       *storage.Memory
	ids      *identity.Store
	book     *contacts.Book
	presence *presence.Tracker
	devices  *mediatest.Devices
	remote   *media.Sink

	mu        sync.Mutex
	providers []*transporttest.Provider
}

// transport returns the provider the manager registered with most recently.
func (p *testPeer) transport() *transporttest.Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providers[len(p.providers)-1]
}

func (p *testPeer) localTracks(kind media.Kind) []media.Track {
	var tracks []media.Track
	_ = p.m.loop.call(func() error {
		if p.m.local != nil {
			tracks = p.m.local.TracksOf(kind)
		}
		return nil
	})
	return tracks
}

func (p *testPeer) status() presence.Status {
	var st presence.Status
	_ = p.m.loop.call(func() error {
		st = p.presence.Status()
		return nil
	})
	return st
}

// run executes fn on the manager's loop.
func (p *testPeer) run(fn func()) {
	_ = p.m.loop.call(func() error {
		fn()
		return nil
	})
}

type peerOption func(p *testPeer, o *Options)

func withTTL(ttl time.Duration) peerOption {
	return func(_ *testPeer, o *Options) { o.PendingTTL = ttl }
}

func withCapture(fail map[mediatest.Request]error) peerOption {
	return func(p *testPeer, _ *Options) {
		for req, err := range fail {
			p.devices.Fail[req] = err
		}
	}
}

func newTestPeer(t *testing.T, net *transporttest.Network, id string, opts ...peerOption) *testPeer {
	t.Helper()

	kv := storage.NewMemory()
	require.NoError(t, kv.Set(storage.KeyPeerID, id))
	book, err := contacts.Load(kv)
	require.NoError(t, err)

	p := &testPeer{
		id:       id,
		events:   &recorder{},
		kv:       kv,
		ids:      identity.NewStore(kv),
		book:     book,
		presence: presence.NewTracker(kv, nil),
		devices:  mediatest.NewDevices(true, true),
		remote:   media.NewSink(),
	}
	o := Options{
		Identity: p.ids,
		Contacts: book,
		Presence: p.presence,
		NewProvider: func(context.Context) (transport.Provider, error) {
			prov := net.NewProvider()
			p.mu.Lock()
			p.providers = append(p.providers, prov)
			p.mu.Unlock()
			return prov, nil
		},
		Acquirer:    media.NewAcquirer(p.devices, nil),
		RemoteSink:  p.remote,
		Notifier:    p.events,
		Metrics:     metrics.NewCollector(),
		Logger:      slog.New(slog.DiscardHandler),
		PendingTTL:  time.Minute,
		RedialDelay: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p, &o)
	}

	p.m, err = New(o)
	require.NoError(t, err)
	require.NoError(t, p.m.Start(t.Context()))
	t.Cleanup(func() { _ = p.m.Close() })
	p.id = p.m.ID()
	return p
}

// settle lets events bounce between peers until every queue is drained.
func settle(peers ...*testPeer) {
	for range 10 {
		for _, p := range peers {
			p.m.Sync()
		}
	}
}

// connectPair has from request a session with to and to accept it.
func connectPair(t *testing.T, from, to *testPeer) {
	t.Helper()
	require.NoError(t, from.m.Connect(to.id, false))
	settle(from, to)
	require.NoError(t, to.m.Accept(from.id))
	settle(from, to)
}
