// Package webrtc implements the transport contract on pion peer connections,
// negotiated through the rendezvous server. Every data connection and every
// call gets its own peer connection.
package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/signaling"
	"github.com/nikelwish/p2p-service/internal/transport"
	pion "github.com/pion/webrtc/v4"
)

// endpoint is what the provider tracks per connection id.
type endpoint interface {
	fail(err error)
	terminate(notify bool)
}

type Provider struct {
	sig     signaling.Signaler
	factory *Factory
	log     *slog.Logger

	mu        sync.Mutex
	id        string
	started   bool
	closed    bool
	links     map[string]*link
	endpoints map[string]endpoint
	calls     map[string]*mediaCall
	conns     map[string]*dataConn

	onConn       func(transport.DataConn)
	onCall       func(transport.MediaCall)
	onErr        func(error)
	pendingConns []transport.DataConn
	pendingCalls []transport.MediaCall
}

var _ transport.Provider = (*Provider)(nil)

func NewProvider(sig signaling.Signaler, factory *Factory, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		sig:       sig,
		factory:   factory,
		log:       log,
		links:     make(map[string]*link),
		endpoints: make(map[string]endpoint),
		calls:     make(map[string]*mediaCall),
		conns:     make(map[string]*dataConn),
	}
}

// Open registers id with the rendezvous server and starts routing signals.
func (p *Provider) Open(ctx context.Context, id string) (string, error) {
	if err := p.sig.Register(ctx, id); err != nil {
		if errors.Is(err, signaling.ErrIDTaken) {
			return "", transport.ErrIDTaken
		}
		return "", NewError("register", err)
	}

	p.mu.Lock()
	p.id = id
	start := !p.started
	p.started = true
	p.mu.Unlock()

	if start {
		go p.route()
	}
	return id, nil
}

func (p *Provider) ID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *Provider) route() {
	signals := p.sig.Signals()
	errs := p.sig.Errors()
	for {
		select {
		case msg, ok := <-signals:
			if !ok {
				p.log.Debug("Signaling channel closed")
				p.report(transport.ErrClosed)
				return
			}
			p.handle(msg)
		case err := <-errs:
			p.report(err)
		}
	}
}

func (p *Provider) handle(msg *signaling.Message) {
	if msg.Payload == nil || msg.Payload.ConnectionID == "" {
		// The server expires undeliverable frames by peer, not connection.
		switch msg.Type {
		case signaling.MessageTypeLeave:
			p.dropPeer(msg.Src, nil)
		case signaling.MessageTypeExpire:
			p.dropPeer(msg.Src, transport.ErrPeerUnavailable)
		}
		return
	}
	id := msg.Payload.ConnectionID

	p.mu.Lock()
	l := p.links[id]
	ep := p.endpoints[id]
	call := p.calls[id]
	p.mu.Unlock()

	switch msg.Type {
	case signaling.MessageTypeOffer:
		if l != nil {
			p.renegotiate(l, call, msg.Payload)
			return
		}
		switch msg.Payload.Kind {
		case signaling.KindData:
			p.acceptData(msg.Src, msg.Payload)
		case signaling.KindMedia:
			p.acceptMedia(msg.Src, msg.Payload)
		default:
			p.log.Warn("Offer of unknown kind", "kind", msg.Payload.Kind, "peer", msg.Src)
		}

	case signaling.MessageTypeAnswer:
		if l == nil {
			return
		}
		if call != nil {
			call.setRemoteMetadata(msg.Payload.Metadata)
		}
		if err := l.setRemote(pion.SDPTypeAnswer, msg.Payload.SDP); err != nil {
			ep.fail(err)
		}

	case signaling.MessageTypeCandidate:
		if l != nil {
			l.addCandidate(msg.Payload.Candidate)
		}

	case signaling.MessageTypeLeave:
		if ep != nil {
			ep.terminate(false)
		}

	case signaling.MessageTypeExpire:
		if ep != nil {
			ep.fail(transport.ErrPeerUnavailable)
		}
	}
}

// dropPeer ends every connection with peer, failing them with err when set.
func (p *Provider) dropPeer(peer string, err error) {
	p.mu.Lock()
	var eps []endpoint
	for id, l := range p.links {
		if l.peer == peer {
			eps = append(eps, p.endpoints[id])
		}
	}
	p.mu.Unlock()

	for _, ep := range eps {
		if err != nil {
			ep.fail(err)
		} else {
			ep.terminate(false)
		}
	}
}

func (p *Provider) renegotiate(l *link, call *mediaCall, payload *signaling.Payload) {
	if call != nil {
		call.setRemoteMetadata(payload.Metadata)
	}
	if err := l.setRemote(pion.SDPTypeOffer, payload.SDP); err != nil {
		l.log.Warn("Renegotiation offer rejected", "error", err)
		return
	}
	var md json.RawMessage
	if call != nil {
		call.mu.Lock()
		md, _ = json.Marshal(call.localMD)
		call.mu.Unlock()
	}
	if err := l.answer(md); err != nil {
		l.log.Warn("Renegotiation answer failed", "error", err)
	}
}

func (p *Provider) newLink(id, peer, kind string) (*link, error) {
	pc, err := p.factory.NewPeerConnection()
	if err != nil {
		return nil, err
	}
	return newLink(p, id, peer, kind, pc), nil
}

func (p *Provider) track(l *link, ep endpoint) {
	p.mu.Lock()
	p.links[l.id] = l
	p.endpoints[l.id] = ep
	switch v := ep.(type) {
	case *mediaCall:
		p.calls[l.id] = v
	case *dataConn:
		p.conns[l.id] = v
	}
	p.mu.Unlock()
}

func (p *Provider) forget(id string) {
	p.mu.Lock()
	delete(p.links, id)
	delete(p.endpoints, id)
	delete(p.calls, id)
	delete(p.conns, id)
	p.mu.Unlock()
}

func (p *Provider) Connect(remoteID string, opts transport.ConnectOptions) (transport.DataConn, error) {
	if p.isClosed() {
		return nil, transport.ErrClosed
	}
	id := "dc_" + uuid.NewString()
	l, err := p.newLink(id, remoteID, signaling.KindData)
	if err != nil {
		return nil, err
	}
	conn := newDataConn(l, opts.Metadata)

	ordered := true
	init := &pion.DataChannelInit{Ordered: &ordered}
	if !opts.Reliable {
		retransmits := uint16(0)
		init.MaxRetransmits = &retransmits
	}
	dc, err := l.pc.CreateDataChannel(id, init)
	if err != nil {
		l.pc.Close()
		return nil, NewError("create data channel", err)
	}
	conn.attach(dc)
	p.track(l, conn)

	md, err := json.Marshal(opts.Metadata)
	if err != nil {
		conn.terminate(false)
		return nil, NewError("encode metadata", err)
	}
	if err := l.offer(false, &signaling.Payload{Metadata: md, Label: id, Reliable: opts.Reliable}); err != nil {
		conn.terminate(false)
		return nil, err
	}
	return conn, nil
}

func (p *Provider) acceptData(peer string, payload *signaling.Payload) {
	l, err := p.newLink(payload.ConnectionID, peer, signaling.KindData)
	if err != nil {
		p.report(err)
		return
	}
	var md protocol.ConnMetadata
	if len(payload.Metadata) > 0 {
		if err := json.Unmarshal(payload.Metadata, &md); err != nil {
			l.log.Debug("Ignoring connection metadata", "error", err)
		}
	}
	conn := newDataConn(l, md)
	l.pc.OnDataChannel(conn.attach)
	p.track(l, conn)

	if err := l.setRemote(pion.SDPTypeOffer, payload.SDP); err != nil {
		conn.fail(err)
		return
	}
	if err := l.answer(nil); err != nil {
		conn.fail(err)
		return
	}
	p.deliverConn(conn)
}

func (p *Provider) Call(remoteID string, stream *media.Stream, md protocol.CallMetadata) (transport.MediaCall, error) {
	if p.isClosed() {
		return nil, transport.ErrClosed
	}
	if stream == nil {
		stream = media.EmptyStream()
	}
	id := "mc_" + uuid.NewString()
	l, err := p.newLink(id, remoteID, signaling.KindMedia)
	if err != nil {
		return nil, err
	}
	call := newMediaCall(l)
	call.localMD = md
	call.addLocal(stream)
	p.track(l, call)

	raw, err := json.Marshal(md)
	if err != nil {
		call.terminate(false)
		return nil, NewError("encode call metadata", err)
	}
	if err := l.offer(false, &signaling.Payload{Metadata: raw}); err != nil {
		call.terminate(false)
		return nil, err
	}
	return call, nil
}

func (p *Provider) acceptMedia(peer string, payload *signaling.Payload) {
	l, err := p.newLink(payload.ConnectionID, peer, signaling.KindMedia)
	if err != nil {
		p.report(err)
		return
	}
	call := newMediaCall(l)
	call.setRemoteMetadata(payload.Metadata)
	p.track(l, call)

	if err := l.setRemote(pion.SDPTypeOffer, payload.SDP); err != nil {
		call.fail(err)
		return
	}
	p.deliverCall(call)
}

func (p *Provider) deliverConn(c transport.DataConn) {
	p.mu.Lock()
	fn := p.onConn
	if fn == nil {
		p.pendingConns = append(p.pendingConns, c)
	}
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (p *Provider) deliverCall(c transport.MediaCall) {
	p.mu.Lock()
	fn := p.onCall
	if fn == nil {
		p.pendingCalls = append(p.pendingCalls, c)
	}
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (p *Provider) report(err error) {
	p.mu.Lock()
	fn := p.onErr
	p.mu.Unlock()
	if fn != nil {
		fn(err)
		return
	}
	p.log.Warn("Transport error", "error", err)
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

func (p *Provider) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close tears down every connection and the signaling session.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	eps := make([]endpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		eps = append(eps, ep)
	}
	p.mu.Unlock()

	for _, ep := range eps {
		ep.terminate(true)
	}
	return p.sig.Close()
}
