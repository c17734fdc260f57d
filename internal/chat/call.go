package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/session"
	"github.com/nikelwish/p2p-service/internal/transport"
)

type callState string

const (
	callDialing callState = "dialing"
	callRinging callState = "ringing"
	callActive  callState = "active"
)

const (
	directionInbound  = string(session.Inbound)
	directionOutbound = string(session.Outbound)
)

type activeCall struct {
	peer      string
	mc        transport.MediaCall
	state     callState
	direction string
	reconnect bool
	audioOnly bool
	remote    *media.Stream
	startedAt time.Time
}

func (m *Manager) watchCall(gen int, mc transport.MediaCall) {
	mc.OnStream(func(s *media.Stream) { m.post(gen, func() { m.handleStream(mc, s) }) })
	mc.OnError(func(err error) { m.post(gen, func() { m.handleCallError(mc, err) }) })
	mc.OnClose(func() { m.post(gen, func() { m.handleCallClose(mc) }) })
}

func (m *Manager) localMetadata(reconnect bool) protocol.CallMetadata {
	md := protocol.CallMetadata{UserID: m.localID, Reconnect: reconnect}
	if m.local != nil {
		md.HasVideo = m.local.HasVideo()
		md.HasAudio = m.local.HasAudio()
	}
	return md
}

// dial places a call to peer with the local stream.
func (m *Manager) dial(peer string, reconnect bool) error {
	if m.local == nil {
		return NewPeerError("call", peer, ErrNoLocalMedia)
	}
	mc, err := m.provider.Call(peer, m.local, m.localMetadata(reconnect))
	if err != nil {
		return NewPeerError("call", peer, err)
	}
	c := &activeCall{
		peer:      peer,
		mc:        mc,
		state:     callDialing,
		direction: directionOutbound,
		reconnect: reconnect,
		startedAt: time.Now(),
	}
	m.call = c
	m.watchCall(m.gen, mc)
	m.opts.Metrics.CallStarted(directionOutbound)
	m.log.Info("Calling", "peer", peer, "reconnect", reconnect)
	m.emit(CallDialing{Peer: peer, Reconnect: reconnect})
	m.syncPresence()
	return nil
}

func (m *Manager) handleIncomingCall(mc transport.MediaCall) {
	peer := mc.Peer()
	md := mc.Metadata()

	otherCall := m.call != nil && m.call.peer != peer
	if otherCall || (m.opts.Presence.Status() == presence.Busy && !m.engagedWith(peer)) {
		m.log.Info("Busy, declining call", "peer", peer)
		_ = mc.Close()
		if s := m.registry.Current(); s.Active() && s.Peer == peer {
			m.sendSystemTo(s.Conn, protocol.System(protocol.ActionBusy, "user is busy"))
		}
		m.notice(LevelInfo, "declined call from %s while busy", m.displayName(peer))
		return
	}
	if m.call != nil {
		m.endCall(m.call, "replaced", true)
	}

	c := &activeCall{
		peer:      peer,
		mc:        mc,
		state:     callRinging,
		direction: directionInbound,
		reconnect: md.Reconnect,
	}
	m.call = c

	if s := m.registry.Current(); s.Active() && s.Accepted && s.Peer == peer {
		if err := m.answer(c); err != nil {
			m.log.Warn("Auto-answer failed", "peer", peer, "error", err)
		}
		return
	}
	m.emit(CallRinging{Peer: peer, HasVideo: md.HasVideo, HasAudio: md.HasAudio, Reconnect: md.Reconnect})
	m.emit(Ringtone{On: true})
}

func (m *Manager) answer(c *activeCall) error {
	if c.state == callRinging {
		m.emit(Ringtone{On: false})
	}
	stream := m.local
	if stream == nil {
		stream = media.EmptyStream()
	}
	if err := c.mc.Answer(stream, m.localMetadata(false)); err != nil {
		m.endCall(c, "answer failed", true)
		return NewPeerError("answer", c.peer, err)
	}
	if c.state == callRinging {
		c.state = callActive
		c.startedAt = time.Now()
	}
	m.opts.Metrics.CallStarted(directionInbound)
	m.syncPresence()

	if m.registry.Current() == nil {
		if _, err := m.connect(c.peer, protocol.ConnMetadata{RequestType: protocol.RequestConnection}); err != nil {
			m.log.Warn("Failed to open session alongside call", "peer", c.peer, "error", err)
		}
	}
	return nil
}

func (m *Manager) handleStream(mc transport.MediaCall, stream *media.Stream) {
	c := m.call
	if c == nil || c.mc != mc {
		return
	}
	if c.state != callActive {
		c.state = callActive
		c.startedAt = time.Now()
	}
	c.remote = stream
	c.audioOnly = !stream.HasVideo() || !mc.Metadata().HasVideo
	m.opts.RemoteSink.Attach(stream)
	m.log.Info("Remote stream attached", "peer", c.peer, "audio_only", c.audioOnly)
	m.emit(StreamAttached{Peer: c.peer, AudioOnly: c.audioOnly, Stream: stream})
	m.syncPresence()
}

func (m *Manager) handleCallClose(mc transport.MediaCall) {
	c := m.call
	if c == nil || c.mc != mc {
		return
	}
	m.notice(LevelInfo, "call with %s ended", m.displayName(c.peer))
	m.endCall(c, "remote hung up", false)
}

func (m *Manager) handleCallError(mc transport.MediaCall, err error) {
	m.log.Warn("Call error", "peer", mc.Peer(), "error", err)
	if c := m.call; c != nil && c.mc == mc {
		if errors.Is(err, transport.ErrPeerUnavailable) {
			m.notice(LevelError, "%s is unavailable", m.displayName(c.peer))
			return
		}
		m.notice(LevelError, "call error: %v", err)
	}
}

// endCall forgets c and optionally hangs up its transport.
func (m *Manager) endCall(c *activeCall, reason string, hangup bool) {
	if m.call != c {
		return
	}
	m.call = nil
	if c.state == callRinging {
		m.emit(Ringtone{On: false})
	}
	m.opts.RemoteSink.Detach()

	var d time.Duration
	if c.state == callActive {
		d = time.Since(c.startedAt)
		m.opts.Metrics.CallEnded(d)
	}
	if hangup {
		_ = c.mc.Close()
	}
	m.log.Info("Call ended", "peer", c.peer, "reason", reason, "duration", d)
	m.emit(CallEnded{Peer: c.peer, Reason: reason, Duration: d})
	m.syncPresence()
}

// StartCall calls peer, or the current session's peer when peer is empty.
// Another call or a session with someone else is torn down only when
// replace is set.
func (m *Manager) StartCall(peer string, replace bool) error {
	peer = strings.TrimSpace(peer)
	return m.loop.call(func() error {
		if err := m.ready(); err != nil {
			return err
		}
		cur := m.registry.Current()
		if peer == "" {
			if !cur.Active() || !cur.Accepted {
				return NewError("call", ErrNoSession)
			}
			peer = cur.Peer
		}
		if peer == m.localID {
			return NewPeerError("call", peer, ErrSelfConnect)
		}

		if c := m.call; c != nil {
			if c.state == callRinging && c.peer == peer {
				return m.answer(c)
			}
			if !replace {
				return NewPeerError("call", c.peer, ErrCallActive)
			}
			m.endCall(c, "replaced", true)
		}
		if cur != nil && cur.Peer != peer {
			if !replace {
				return NewPeerError("call", cur.Peer, ErrSessionActive)
			}
			m.sendSystemTo(cur.Conn, disconnectedMsg)
			m.endSession(cur, "replaced")
			m.closeLater(cur.Conn)
		}
		return m.dial(peer, false)
	})
}

// Answer picks up the ringing call.
func (m *Manager) Answer() error {
	return m.loop.call(func() error {
		c := m.call
		if c == nil || c.state != callRinging {
			return NewError("answer", ErrNoIncomingCall)
		}
		return m.answer(c)
	})
}

// Decline turns down the ringing call.
func (m *Manager) Decline() error {
	return m.loop.call(func() error {
		c := m.call
		if c == nil || c.state != callRinging {
			return NewError("decline", ErrNoIncomingCall)
		}
		m.endCall(c, "declined", true)
		return nil
	})
}

// Hangup ends the current call but keeps the session.
func (m *Manager) Hangup() error {
	return m.loop.call(func() error {
		if m.call == nil {
			return NewError("hang up", ErrNoCall)
		}
		m.endCall(m.call, "hung up", true)
		return nil
	})
}
