// Package transporttest is an in-memory transport. Every provider created
// from one Network can reach the others by id; events are delivered on the
// caller's goroutine.
package transporttest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/transport"
)

type Network struct {
	mu        sync.Mutex
	providers map[string]*Provider

	// HoldOpen leaves new data connections unopened until MarkOpen.
	HoldOpen bool
}

func NewNetwork() *Network {
	return &Network{providers: make(map[string]*Provider)}
}

func (n *Network) NewProvider() *Provider {
	return &Provider{net: n}
}

func (n *Network) register(id string, p *Provider) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if other, ok := n.providers[id]; ok && other != p {
		return transport.ErrIDTaken
	}
	n.providers[id] = p
	return nil
}

func (n *Network) unregister(id string, p *Provider) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.providers[id] == p {
		delete(n.providers, id)
	}
}

func (n *Network) lookup(id string) *Provider {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.providers[id]
}

// Reserve occupies id so that opening a provider with it fails.
func (n *Network) Reserve(id string) {
	n.mu.Lock()
	n.providers[id] = &Provider{net: n, id: id}
	n.mu.Unlock()
}

type Provider struct {
	net *Network

	// RestartUnsupported makes RestartICE fail on calls this provider places.
	RestartUnsupported bool

	mu           sync.Mutex
	id           string
	opened       bool
	onConn       func(transport.DataConn)
	onCall       func(transport.MediaCall)
	onErr        func(error)
	pendingConns []*Conn
	pendingCalls []*Call
	conns        []*Conn
	calls        []*Call
}

var _ transport.Provider = (*Provider)(nil)

func (p *Provider) Open(_ context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()[:8]
	}
	if err := p.net.register(id, p); err != nil {
		return "", err
	}
	p.mu.Lock()
	p.id = id
	p.opened = true
	p.mu.Unlock()
	return id, nil
}

func (p *Provider) ID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *Provider) Connect(remoteID string, opts transport.ConnectOptions) (transport.DataConn, error) {
	p.mu.Lock()
	if !p.opened {
		p.mu.Unlock()
		return nil, transport.ErrClosed
	}
	localID := p.id
	local := newConn(remoteID, opts.Metadata)
	p.conns = append(p.conns, local)
	p.mu.Unlock()

	target := p.net.lookup(remoteID)
	if target == nil || target == p {
		local.fail(transport.ErrPeerUnavailable)
		return local, nil
	}

	remote := newConn(localID, opts.Metadata)
	local.remote, remote.remote = remote, local
	target.acceptConn(remote)

	if !p.net.HoldOpen {
		local.MarkOpen()
	}
	return local, nil
}

func (p *Provider) acceptConn(c *Conn) {
	p.mu.Lock()
	p.conns = append(p.conns, c)
	fn := p.onConn
	if fn == nil {
		p.pendingConns = append(p.pendingConns, c)
	}
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (p *Provider) Call(remoteID string, stream *media.Stream, md protocol.CallMetadata) (transport.MediaCall, error) {
	p.mu.Lock()
	if !p.opened {
		p.mu.Unlock()
		return nil, transport.ErrClosed
	}
	localID := p.id
	local := &Call{peer: remoteID, local: stream, sent: md, restartUnsupported: p.RestartUnsupported}
	local.state = transport.NegotiationState{ICE: transport.StateChecking, Connection: transport.StateConnecting, Signaling: "have-local-offer"}
	p.calls = append(p.calls, local)
	p.mu.Unlock()

	target := p.net.lookup(remoteID)
	if target == nil || target == p {
		local.fail(transport.ErrPeerUnavailable)
		return local, nil
	}

	remote := &Call{peer: localID, md: md, remote: local}
	remote.state = transport.NegotiationState{ICE: transport.StateNew, Connection: transport.StateNew, Signaling: "have-remote-offer"}
	local.remote = remote
	target.acceptCall(remote)
	return local, nil
}

func (p *Provider) acceptCall(c *Call) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	fn := p.onCall
	if fn == nil {
		p.pendingCalls = append(p.pendingCalls, c)
	}
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (p *Provider) OnConnection(fn func(transport.DataConn)) {
	p.mu.Lock()
	p.onConn = fn
	pending := p.pendingConns
	p.pendingConns = nil
	p.mu.Unlock()
	for _, c := range pending {
		fn(c)
	}
}

func (p *Provider) OnCall(fn func(transport.MediaCall)) {
	p.mu.Lock()
	p.onCall = fn
	pending := p.pendingCalls
	p.pendingCalls = nil
	p.mu.Unlock()
	for _, c := range pending {
		fn(c)
	}
}

func (p *Provider) OnError(fn func(error)) {
	p.mu.Lock()
	p.onErr = fn
	p.mu.Unlock()
}

// Fail reports a provider level error.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	fn := p.onErr
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (p *Provider) Close() error {
	p.mu.Lock()
	id := p.id
	p.opened = false
	conns := append([]*Conn(nil), p.conns...)
	calls := append([]*Call(nil), p.calls...)
	p.mu.Unlock()

	p.net.unregister(id, p)
	for _, c := range conns {
		c.Close()
	}
	for _, c := range calls {
		c.Close()
	}
	return nil
}

// Conns returns every data connection this provider opened or accepted.
func (p *Provider) Conns() []*Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Conn(nil), p.conns...)
}

// Calls returns every call this provider placed or received.
func (p *Provider) Calls() []*Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Call(nil), p.calls...)
}

// ConnsTo filters Conns by remote peer.
func (p *Provider) ConnsTo(peer string) []*Conn {
	var out []*Conn
	for _, c := range p.Conns() {
		if c.Peer() == peer {
			out = append(out, c)
		}
	}
	return out
}

// CallsTo filters Calls by remote peer.
func (p *Provider) CallsTo(peer string) []*Call {
	var out []*Call
	for _, c := range p.Calls() {
		if c.Peer() == peer {
			out = append(out, c)
		}
	}
	return out
}
