package webrtc

import (
	"encoding/json"
	"sync"

	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/signaling"
	"github.com/nikelwish/p2p-service/internal/transport"
	pion "github.com/pion/webrtc/v4"
)

// mediaCall is a transport.MediaCall over one peer connection.
type mediaCall struct {
	*link

	mu         sync.Mutex
	md         protocol.CallMetadata
	localMD    protocol.CallMetadata
	local      *media.Stream
	remote     *media.Stream
	senders    map[media.Kind]*pion.RTPSender
	bound      map[*pion.RTPSender]*LocalTrack
	answered   bool
	streamSeen bool
	onStream   func(*media.Stream)

	closed latch
	errs   errLatch
}

var _ transport.MediaCall = (*mediaCall)(nil)

func newMediaCall(l *link) *mediaCall {
	c := &mediaCall{
		link:    l,
		remote:  media.NewStream(),
		senders: make(map[media.Kind]*pion.RTPSender),
		bound:   make(map[*pion.RTPSender]*LocalTrack),
	}
	l.pc.OnTrack(func(tr *pion.TrackRemote, _ *pion.RTPReceiver) {
		c.remote.AddTrack(newRemoteTrack(tr))
		c.emitStream()
	})
	l.pc.OnConnectionStateChange(func(s pion.PeerConnectionState) {
		switch s {
		case pion.PeerConnectionStateConnected:
			// A peer with nothing to send never triggers OnTrack.
			c.mu.Lock()
			seen := c.streamSeen
			c.mu.Unlock()
			if !seen {
				c.emitStream()
			}
		case pion.PeerConnectionStateClosed:
			c.terminate(false)
		}
	})
	return c
}

func (c *mediaCall) emitStream() {
	c.mu.Lock()
	c.streamSeen = true
	fn := c.onStream
	remote := c.remote
	c.mu.Unlock()
	if fn != nil {
		fn(remote)
	}
}

// addLocal attaches every sendable track of stream and a receive-only
// transceiver for each kind it lacks, so the offer always asks for both.
func (c *mediaCall) addLocal(stream *media.Stream) {
	c.mu.Lock()
	c.local = stream
	c.mu.Unlock()

	have := map[media.Kind]bool{}
	for _, t := range stream.Tracks() {
		lt, ok := t.(*LocalTrack)
		if !ok {
			continue
		}
		sender, err := c.pc.AddTrack(lt.Local())
		if err != nil {
			c.log.Warn("AddTrack failed", "kind", lt.Kind(), "error", err)
			continue
		}
		lt.bind(sender)
		have[lt.Kind()] = true
		c.mu.Lock()
		c.senders[lt.Kind()] = sender
		c.bound[sender] = lt
		c.mu.Unlock()
	}

	for kind, codec := range map[media.Kind]pion.RTPCodecType{
		media.KindVideo: pion.RTPCodecTypeVideo,
		media.KindAudio: pion.RTPCodecTypeAudio,
	} {
		if have[kind] || c.hasTransceiver(codec) {
			continue
		}
		if _, err := c.pc.AddTransceiverFromKind(codec, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			c.log.Warn("AddTransceiver failed", "kind", kind, "error", err)
		}
	}
}

func (c *mediaCall) hasTransceiver(codec pion.RTPCodecType) bool {
	for _, tr := range c.pc.GetTransceivers() {
		if tr.Kind() == codec {
			return true
		}
	}
	return false
}

func (c *mediaCall) Peer() string { return c.peer }

func (c *mediaCall) Metadata() protocol.CallMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.md
}

func (c *mediaCall) setRemoteMetadata(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var md protocol.CallMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		c.log.Debug("Ignoring call metadata", "error", err)
		return
	}
	c.mu.Lock()
	c.md = md
	c.mu.Unlock()
}

func (c *mediaCall) Answer(stream *media.Stream, md protocol.CallMetadata) error {
	c.mu.Lock()
	if c.answered {
		c.mu.Unlock()
		return nil
	}
	c.answered = true
	c.localMD = md
	c.mu.Unlock()

	if c.isClosed() {
		return transport.ErrClosed
	}
	if stream == nil {
		stream = media.EmptyStream()
	}
	c.addLocal(stream)

	raw, err := json.Marshal(md)
	if err != nil {
		return NewError("encode call metadata", err)
	}
	if err := c.answer(raw); err != nil {
		c.errs.fire(err)
		return err
	}
	return nil
}

func (c *mediaCall) Close() error {
	c.terminate(true)
	return nil
}

func (c *mediaCall) terminate(notify bool) {
	if c.closed.done() {
		return
	}
	c.mu.Lock()
	bound := c.bound
	c.bound = map[*pion.RTPSender]*LocalTrack{}
	c.mu.Unlock()
	for sender, lt := range bound {
		lt.unbind(sender)
	}
	for _, t := range c.remote.Tracks() {
		t.Stop()
	}
	c.shutdown(notify)
	c.closed.fire()
}

func (c *mediaCall) fail(err error) {
	c.errs.fire(err)
	c.terminate(false)
}

func (c *mediaCall) OnStream(fn func(*media.Stream)) {
	c.mu.Lock()
	c.onStream = fn
	seen := c.streamSeen
	remote := c.remote
	c.mu.Unlock()
	if seen {
		fn(remote)
	}
}

func (c *mediaCall) OnClose(fn func())          { c.closed.set(fn) }
func (c *mediaCall) OnError(fn func(err error)) { c.errs.set(fn) }

func (c *mediaCall) State() transport.NegotiationState {
	return transport.NegotiationState{
		ICE:        c.pc.ICEConnectionState().String(),
		Connection: c.pc.ConnectionState().String(),
		Signaling:  c.pc.SignalingState().String(),
	}
}

// RestartICE sends a fresh offer with new ICE credentials on the same
// connection. It is refused while another negotiation is in flight.
func (c *mediaCall) RestartICE() error {
	if c.isClosed() {
		return transport.ErrClosed
	}
	if c.pc.SignalingState() != pion.SignalingStateStable {
		return transport.ErrRestartUnsupported
	}
	c.mu.Lock()
	md := c.localMD
	c.mu.Unlock()
	md.Reconnect = true
	raw, err := json.Marshal(md)
	if err != nil {
		return NewError("encode call metadata", err)
	}
	return c.offer(true, &signaling.Payload{Metadata: raw})
}

func (c *mediaCall) ReplaceVideoTrack(track media.Track) error {
	c.mu.Lock()
	sender := c.senders[media.KindVideo]
	old := c.bound[sender]
	c.mu.Unlock()
	if sender == nil {
		return ErrNoVideoSender
	}

	lt, ok := track.(*LocalTrack)
	if !ok {
		return WrapError("replace track", ErrUnexpectedSignal, "track cannot be sent")
	}
	if err := sender.ReplaceTrack(lt.Local()); err != nil {
		return NewConnError("replace track", c.id, err)
	}
	if old != nil {
		old.unbind(sender)
	}
	lt.bind(sender)
	c.mu.Lock()
	c.bound[sender] = lt
	c.mu.Unlock()
	return nil
}
