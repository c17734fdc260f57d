package chat

import (
	"strings"
	"time"

	"github.com/nikelwish/p2p-service/internal/metrics"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/session"
	"github.com/nikelwish/p2p-service/internal/transport"
)

var disconnectedMsg = protocol.System(protocol.ActionDisconnected, "peer disconnected")

// watchConn forwards conn's events onto the loop.
func (m *Manager) watchConn(gen int, conn transport.DataConn) {
	conn.OnOpen(func() { m.post(gen, func() { m.handleOpen(conn) }) })
	conn.OnData(func(data []byte) { m.post(gen, func() { m.handleData(conn, data) }) })
	conn.OnError(func(err error) { m.post(gen, func() { m.handleConnError(conn, err) }) })
	conn.OnClose(func() { m.post(gen, func() { m.handleClose(conn) }) })
}

// whenOpen runs fn now if conn is open, otherwise once it opens.
func (m *Manager) whenOpen(conn transport.DataConn, fn func()) {
	if conn.IsOpen() {
		fn()
		return
	}
	m.onOpen[conn] = append(m.onOpen[conn], fn)
}

// closeLater gives a final control message time to leave before closing.
func (m *Manager) closeLater(conn transport.DataConn) {
	if m.opts.BusyGrace <= 0 {
		_ = conn.Close()
		return
	}
	time.AfterFunc(m.opts.BusyGrace, func() { _ = conn.Close() })
}

func (m *Manager) sendTo(conn transport.DataConn, msg protocol.Message) error {
	if conn == nil || !conn.IsOpen() {
		return transport.ErrClosed
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return conn.Send(data)
}

func (m *Manager) sendSystemTo(conn transport.DataConn, msg protocol.SystemMessage) {
	if err := m.sendTo(conn, msg); err != nil {
		m.log.Debug("Failed to send control message", "action", msg.Action, "error", err)
	}
}

func (m *Manager) handleOpen(conn transport.DataConn) {
	fns := m.onOpen[conn]
	delete(m.onOpen, conn)
	for _, fn := range fns {
		fn()
	}
}

func (m *Manager) handleConnection(conn transport.DataConn) {
	md := conn.Metadata()
	peer := conn.Peer()
	m.log.Debug("Inbound connection", "peer", peer, "request", md.RequestType)

	switch md.RequestType {
	case protocol.RequestRoomInvitation:
		m.inInvites[conn] = true
		return
	case protocol.RequestRoomJoin:
		m.handleJoinConn(conn, md.RoomID)
		return
	}

	switch {
	case m.opts.Contacts.IsContact(peer) || m.engagedWith(peer):
		m.opts.Metrics.Request(metrics.OutcomeAuto)
		m.acceptConn(conn)
		m.notice(LevelInfo, "connected to %s", m.displayName(peer))
	case m.opts.Presence.Status() == presence.Busy:
		m.opts.Metrics.Request(metrics.OutcomeBusy)
		m.log.Info("Busy, turning away request", "peer", peer)
		m.whenOpen(conn, func() {
			m.sendSystemTo(conn, protocol.System(protocol.ActionBusy, "user is busy"))
			m.closeLater(conn)
		})
	default:
		m.enqueue(conn)
	}
}

func (m *Manager) enqueue(conn transport.DataConn) {
	p := &session.PendingRequest{Peer: conn.Peer(), Conn: conn, ReceivedAt: time.Now()}
	if prev := m.registry.Enqueue(p); prev != nil && prev.Conn != conn {
		_ = prev.Conn.Close()
	}
	m.opts.Metrics.Request(metrics.OutcomeQueued)
	m.scheduleExpiry(p.Peer)
	m.emit(RequestReceived{Peer: p.Peer, At: p.ReceivedAt})
}

func (m *Manager) scheduleExpiry(peer string) {
	m.cancelExpiry(peer)
	ttl := m.opts.PendingTTL
	if ttl <= 0 {
		return
	}
	gen := m.gen
	m.expiry[peer] = m.loop.after(ttl, func() {
		if gen != m.gen || m.closed {
			return
		}
		m.expirePending()
	})
}

func (m *Manager) cancelExpiry(peer string) {
	if cancel, ok := m.expiry[peer]; ok {
		cancel()
		delete(m.expiry, peer)
	}
}

// expirePending rejects every request that has waited out its TTL.
func (m *Manager) expirePending() {
	for _, p := range m.registry.Expire(time.Now(), m.opts.PendingTTL) {
		delete(m.expiry, p.Peer)
		m.opts.Metrics.Request(metrics.OutcomeExpired)
		conn := p.Conn
		m.whenOpen(conn, func() {
			m.sendSystemTo(conn, protocol.System(protocol.ActionRejected, "request timed out"))
			m.closeLater(conn)
		})
		m.emit(RequestExpired{Peer: p.Peer, Reason: "timed out"})
	}
}

// acceptConn makes conn the current session, replacing whatever was there.
func (m *Manager) acceptConn(conn transport.DataConn) {
	peer := conn.Peer()
	if cur := m.registry.Current(); cur != nil {
		m.sendSystemTo(cur.Conn, disconnectedMsg)
		m.endSession(cur, "superseded")
		m.closeLater(cur.Conn)
	}
	if p, ok := m.registry.Take(peer); ok && p.Conn != conn {
		_ = p.Conn.Close()
	}
	m.cancelExpiry(peer)

	s := &session.Session{
		Peer:      peer,
		Conn:      conn,
		State:     session.StateConnecting,
		Direction: session.Inbound,
		Accepted:  true,
		CreatedAt: time.Now(),
	}
	if err := m.registry.Begin(s); err != nil {
		m.log.Error("Failed to begin session", "peer", peer, "error", err)
		return
	}
	m.whenOpen(conn, func() {
		if m.registry.ByConn(conn) != s {
			return
		}
		s.State = session.StateOpen
		m.sendSystemTo(conn, protocol.System(protocol.ActionAccepted, "connection accepted"))
	})
	m.sessionEstablished(s)
}

func (m *Manager) sessionEstablished(s *session.Session) {
	m.opts.Metrics.SessionOpened(string(s.Direction))
	if err := m.opts.Contacts.Touch(s.Peer, time.Now()); err != nil {
		m.log.Warn("Failed to update contact", "peer", s.Peer, "error", err)
	}
	m.log.Info("Session open", "peer", s.Peer, "direction", s.Direction)
	m.emit(SessionOpened{Peer: s.Peer, Direction: s.Direction, RoomID: s.RoomID})
	m.syncPresence()
}

// endSession forgets s and whatever depended on it. It does not close the
// connection; callers decide whether a final message goes out first.
func (m *Manager) endSession(s *session.Session, reason string) {
	if !m.registry.End(s) {
		return
	}
	delete(m.onOpen, s.Conn)
	if m.call != nil && m.call.peer == s.Peer {
		m.endCall(m.call, reason, true)
	}
	if m.membership != nil && m.membership.hostID == s.Peer {
		m.membership = nil
		m.emit(RoomChanged{})
	}
	if s.Accepted {
		if err := m.opts.Contacts.Touch(s.Peer, time.Now()); err != nil {
			m.log.Warn("Failed to update contact", "peer", s.Peer, "error", err)
		}
	}
	m.log.Info("Session closed", "peer", s.Peer, "reason", reason)
	m.emit(SessionClosed{Peer: s.Peer, Reason: reason})
	if s.Accepted && !m.opts.Contacts.IsContact(s.Peer) {
		m.emit(ContactSuggested{Peer: s.Peer})
	}
	m.syncPresence()
}

func (m *Manager) handleData(conn transport.DataConn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		m.log.Warn("Dropping undecodable message", "peer", conn.Peer(), "error", err)
		return
	}

	if s := m.registry.ByConn(conn); s != nil {
		m.handleSessionMessage(s, msg)
		return
	}
	if m.room != nil && m.room.links[conn.Peer()] == conn {
		m.handleLinkMessage(conn, msg)
		return
	}
	if m.inInvites[conn] || m.outInvites[conn] != "" {
		if sys, ok := msg.(protocol.SystemMessage); ok {
			m.handleInviteMessage(conn, sys)
		}
		return
	}
	m.log.Debug("Ignoring message on idle connection", "peer", conn.Peer())
}

func (m *Manager) handleSessionMessage(s *session.Session, msg protocol.Message) {
	switch v := msg.(type) {
	case protocol.ChatMessage:
		m.emit(Message{From: s.Peer, To: m.localID, Text: v.Text, Link: protocol.IsLink(v.Text), RoomID: s.RoomID, At: time.Now()})
	case protocol.FileMessage:
		m.receiveFile(s.Peer, s.RoomID, v)
	case protocol.SystemMessage:
		m.handleSystem(s, v)
	}
}

func (m *Manager) handleSystem(s *session.Session, msg protocol.SystemMessage) {
	name := m.displayName(s.Peer)
	switch msg.Action {
	case protocol.ActionAccepted:
		if s.Direction != session.Outbound || s.Accepted {
			return
		}
		s.Accepted = true
		s.State = session.StateOpen
		m.sessionEstablished(s)
		m.notice(LevelInfo, "%s accepted your request", name)
		if s.RoomID == "" && m.call == nil && m.local != nil {
			if err := m.dial(s.Peer, false); err != nil {
				m.notice(LevelError, "could not call %s: %v", name, err)
			}
		}
	case protocol.ActionRejected:
		m.notice(LevelWarn, "%s rejected the request: %s", name, orDefault(msg.Message, "no reason given"))
		m.endSession(s, "rejected")
		_ = s.Conn.Close()
	case protocol.ActionBusy:
		m.notice(LevelWarn, "%s is busy", name)
		m.endSession(s, "busy")
		_ = s.Conn.Close()
	case protocol.ActionDisconnected:
		m.notice(LevelInfo, "%s disconnected", name)
		m.endSession(s, "peer disconnected")
		_ = s.Conn.Close()
	case protocol.ActionRoomInvitation:
		m.receiveInvitation(s.Conn, msg)
	case protocol.ActionRoomJoinRejected:
		m.emit(RoomJoinRejected{Peer: s.Peer, RoomID: msg.RoomID, Text: msg.Message})
	case protocol.ActionConnectionRequest, protocol.ActionRoomJoin:
		m.log.Debug("Ignoring control message on open session", "peer", s.Peer, "action", msg.Action)
	default:
		m.log.Warn("Unknown control message", "peer", s.Peer, "action", msg.Action)
	}
}

func (m *Manager) handleClose(conn transport.DataConn) {
	delete(m.onOpen, conn)

	if s := m.registry.ByConn(conn); s != nil {
		m.notice(LevelInfo, "connection to %s closed", m.displayName(s.Peer))
		m.endSession(s, "connection closed")
		return
	}
	if p, ok := m.registry.DropConn(conn); ok {
		m.cancelExpiry(p.Peer)
		m.emit(RequestExpired{Peer: p.Peer, Reason: "withdrawn"})
		return
	}
	if m.room != nil && m.room.links[conn.Peer()] == conn {
		m.removeLink(conn.Peer())
		return
	}
	delete(m.outInvites, conn)
	delete(m.inInvites, conn)
}

func (m *Manager) handleConnError(conn transport.DataConn, err error) {
	peer := conn.Peer()
	if s := m.registry.ByConn(conn); s != nil {
		m.log.Warn("Session connection failed", "peer", peer, "error", err)
		m.notice(LevelError, "could not reach %s: %v", m.displayName(peer), err)
		m.endSession(s, "connection failed")
		_ = conn.Close()
		return
	}
	if _, ok := m.outInvites[conn]; ok {
		delete(m.outInvites, conn)
		m.notice(LevelError, "could not deliver invitation to %s: %v", m.displayName(peer), err)
		return
	}
	m.log.Debug("Connection error", "peer", peer, "error", err)
}

// Connect sends a connection request to peer. If a session is already open
// it is replaced only when replace is set.
func (m *Manager) Connect(peer string, replace bool) error {
	peer = strings.TrimSpace(peer)
	return m.loop.call(func() error {
		if err := m.ready(); err != nil {
			return err
		}
		switch peer {
		case "":
			return NewError("connect", ErrEmptyPeer)
		case m.localID:
			m.notice(LevelWarn, "you cannot connect to yourself")
			return NewPeerError("connect", peer, ErrSelfConnect)
		}
		if cur := m.registry.Current(); cur != nil {
			if !replace {
				return NewPeerError("connect", cur.Peer, ErrSessionActive)
			}
			m.sendSystemTo(cur.Conn, disconnectedMsg)
			m.endSession(cur, "replaced")
			m.closeLater(cur.Conn)
		}
		_, err := m.connect(peer, protocol.ConnMetadata{RequestType: protocol.RequestConnection})
		return err
	})
}

// connect opens an outbound session. A room join counts as accepted from
// the start; a plain request waits for the peer's answer.
func (m *Manager) connect(peer string, md protocol.ConnMetadata) (*session.Session, error) {
	conn, err := m.provider.Connect(peer, transport.ConnectOptions{Reliable: true, Metadata: md})
	if err != nil {
		return nil, NewPeerError("connect", peer, err)
	}
	s := &session.Session{
		Peer:      peer,
		Conn:      conn,
		State:     session.StateConnecting,
		Direction: session.Outbound,
		Accepted:  md.RequestType == protocol.RequestRoomJoin,
		RoomID:    md.RoomID,
		CreatedAt: time.Now(),
	}
	if err := m.registry.Begin(s); err != nil {
		_ = conn.Close()
		return nil, NewPeerError("connect", peer, err)
	}
	m.watchConn(m.gen, conn)

	if s.Accepted {
		m.sessionEstablished(s)
		return s, nil
	}
	m.log.Info("Requesting connection", "peer", peer)
	m.whenOpen(conn, func() {
		if m.registry.ByConn(conn) != s {
			return
		}
		s.State = session.StateOpen
		m.sendSystemTo(conn, protocol.System(protocol.ActionConnectionRequest, "connection request"))
		m.emit(AwaitingResponse{Peer: peer})
	})
	return s, nil
}

// Accept takes the pending request from peer, or the oldest one if peer is
// empty, and makes it the current session.
func (m *Manager) Accept(peer string) error {
	return m.loop.call(func() error {
		p, err := m.takePending(peer)
		if err != nil {
			return NewError("accept", err)
		}
		m.opts.Metrics.Request(metrics.OutcomeAccepted)
		m.acceptConn(p.Conn)
		return nil
	})
}

// AcceptAndAdd accepts the request and saves the peer as a contact.
func (m *Manager) AcceptAndAdd(peer, name string) error {
	var accepted string
	err := m.loop.call(func() error {
		p, err := m.takePending(peer)
		if err != nil {
			return NewError("accept", err)
		}
		accepted = p.Peer
		m.opts.Metrics.Request(metrics.OutcomeAccepted)
		m.acceptConn(p.Conn)
		return nil
	})
	if err != nil {
		return err
	}
	_, err = m.AddContact(accepted, name)
	return err
}

// Reject declines the pending request from peer, or the oldest one.
func (m *Manager) Reject(peer string) error {
	return m.loop.call(func() error {
		p, err := m.takePending(peer)
		if err != nil {
			return NewError("reject", err)
		}
		m.opts.Metrics.Request(metrics.OutcomeRejected)
		conn := p.Conn
		m.whenOpen(conn, func() {
			m.sendSystemTo(conn, protocol.System(protocol.ActionRejected, "request rejected"))
			m.closeLater(conn)
		})
		m.emit(RequestExpired{Peer: p.Peer, Reason: "rejected"})
		return nil
	})
}

func (m *Manager) takePending(peer string) (*session.PendingRequest, error) {
	if peer == "" {
		oldest, ok := m.registry.Oldest()
		if !ok {
			return nil, ErrNoPendingRequest
		}
		peer = oldest.Peer
	}
	p, ok := m.registry.Take(peer)
	if !ok {
		return nil, ErrNoPendingRequest
	}
	m.cancelExpiry(peer)
	return p, nil
}

// Disconnect tells the peer and closes the session and any call with it.
func (m *Manager) Disconnect() error {
	return m.loop.call(func() error {
		s := m.registry.Current()
		if s == nil {
			return NewError("disconnect", ErrNoSession)
		}
		m.sendSystemTo(s.Conn, disconnectedMsg)
		m.endSession(s, "disconnected")
		m.closeLater(s.Conn)
		return nil
	})
}

func (m *Manager) displayName(peer string) string {
	if c, ok := m.opts.Contacts.Get(peer); ok {
		return c.Name()
	}
	return peer
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
