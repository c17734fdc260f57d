package chat

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/transport"
)

// hostedRoom is a room this peer hosts. Each member holds one link to the
// host; members do not link to each other.
type hostedRoom struct {
	id     string
	links  map[string]transport.DataConn
	joined map[string]string
}

// membership is a room this peer joined as a guest.
type membership struct {
	roomID string
	hostID string
}

type invitation struct {
	roomID string
	hostID string
	from   string
	conn   transport.DataConn
	at     time.Time
}

func (r *hostedRoom) participants(self string) []string {
	members := make([]string, 0, len(r.joined))
	for peer := range r.joined {
		members = append(members, peer)
	}
	sort.Strings(members)
	return append([]string{self}, members...)
}

func (m *Manager) roomState() RoomChanged {
	switch {
	case m.room != nil:
		return RoomChanged{RoomID: m.room.id, HostID: m.localID, Host: true, Participants: m.room.participants(m.localID)}
	case m.membership != nil:
		return RoomChanged{RoomID: m.membership.roomID, HostID: m.membership.hostID, Participants: []string{m.membership.hostID, m.localID}}
	}
	return RoomChanged{}
}

// CreateRoom starts hosting a room and returns its id.
func (m *Manager) CreateRoom() (string, error) {
	var id string
	err := m.loop.call(func() error {
		if err := m.ready(); err != nil {
			return err
		}
		if m.room != nil || m.membership != nil {
			return NewError("create room", ErrRoomActive)
		}
		id = strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
		m.room = &hostedRoom{id: id, links: make(map[string]transport.DataConn), joined: make(map[string]string)}
		m.log.Info("Room created", "room", id)
		m.emit(m.roomState())
		m.syncPresence()
		return nil
	})
	return id, err
}

// Invite sends a room invitation to each peer over its own connection.
func (m *Manager) Invite(peers []string) error {
	return m.loop.call(func() error {
		if err := m.ready(); err != nil {
			return err
		}
		if m.room == nil {
			return NewError("invite", ErrNotRoomHost)
		}
		roomID := m.room.id
		var errs []error
		for _, peer := range peers {
			peer = strings.TrimSpace(peer)
			if peer == "" {
				continue
			}
			if peer == m.localID {
				m.notice(LevelWarn, "skipping invitation to yourself")
				continue
			}
			conn, err := m.provider.Connect(peer, transport.ConnectOptions{
				Reliable: true,
				Metadata: protocol.ConnMetadata{RequestType: protocol.RequestRoomInvitation, RoomID: roomID},
			})
			if err != nil {
				errs = append(errs, NewPeerError("invite", peer, err))
				continue
			}
			m.outInvites[conn] = peer
			m.watchConn(m.gen, conn)
			m.whenOpen(conn, func() {
				if m.room == nil || m.room.id != roomID {
					_ = conn.Close()
					return
				}
				m.sendSystemTo(conn, protocol.RoomInvitation(roomID, m.localID, "join my room"))
				m.notice(LevelInfo, "invited %s", m.displayName(peer))
			})
		}
		return errors.Join(errs...)
	})
}

func (m *Manager) handleInviteMessage(conn transport.DataConn, msg protocol.SystemMessage) {
	switch {
	case m.inInvites[conn] && msg.Action == protocol.ActionRoomInvitation:
		m.receiveInvitation(conn, msg)
	case m.outInvites[conn] != "" && msg.Action == protocol.ActionRoomJoinRejected:
		peer := m.outInvites[conn]
		delete(m.outInvites, conn)
		_ = conn.Close()
		m.notice(LevelInfo, "%s declined the room invitation", m.displayName(peer))
		m.emit(RoomJoinRejected{Peer: peer, RoomID: msg.RoomID, Text: msg.Message})
	default:
		m.log.Debug("Ignoring message on invitation connection", "peer", conn.Peer(), "action", msg.Action)
	}
}

func (m *Manager) receiveInvitation(conn transport.DataConn, msg protocol.SystemMessage) {
	if msg.RoomID == "" || msg.HostID == "" {
		m.log.Warn("Invitation without room or host", "peer", conn.Peer())
		return
	}
	inv := &invitation{roomID: msg.RoomID, hostID: msg.HostID, from: conn.Peer(), conn: conn, at: time.Now()}
	kept := m.invitations[:0]
	for _, other := range m.invitations {
		if other.roomID != inv.roomID {
			kept = append(kept, other)
		}
	}
	m.invitations = append(kept, inv)
	m.emit(InvitationReceived{RoomID: inv.roomID, HostID: inv.hostID, From: inv.from, Text: msg.Message})
}

// takeInvitation removes the invitation to roomID, or the latest one.
func (m *Manager) takeInvitation(roomID string) *invitation {
	for i := len(m.invitations) - 1; i >= 0; i-- {
		inv := m.invitations[i]
		if roomID == "" || inv.roomID == roomID {
			m.invitations = append(m.invitations[:i], m.invitations[i+1:]...)
			return inv
		}
	}
	return nil
}

// dropInvitationConn closes conn if it only carried the invitation.
func (m *Manager) dropInvitationConn(conn transport.DataConn) {
	if m.inInvites[conn] {
		delete(m.inInvites, conn)
		m.closeLater(conn)
	}
}

// AcceptInvitation leaves the current session and joins the host's room.
func (m *Manager) AcceptInvitation(roomID string) error {
	return m.loop.call(func() error {
		if err := m.ready(); err != nil {
			return err
		}
		inv := m.takeInvitation(roomID)
		if inv == nil {
			return NewError("join room", ErrNoInvitation)
		}
		m.dropInvitationConn(inv.conn)

		if m.room != nil {
			m.closeRoom()
		}
		if cur := m.registry.Current(); cur != nil {
			m.sendSystemTo(cur.Conn, disconnectedMsg)
			m.endSession(cur, "joined room")
			m.closeLater(cur.Conn)
		}
		if m.call != nil {
			m.endCall(m.call, "joined room", true)
		}

		s, err := m.connect(inv.hostID, protocol.ConnMetadata{RequestType: protocol.RequestRoomJoin, RoomID: inv.roomID})
		if err != nil {
			return err
		}
		m.membership = &membership{roomID: inv.roomID, hostID: inv.hostID}
		conn := s.Conn
		m.whenOpen(conn, func() {
			if m.registry.ByConn(conn) != s {
				return
			}
			m.sendSystemTo(conn, protocol.RoomJoin(inv.roomID, m.localID, m.localID))
		})
		m.log.Info("Joining room", "room", inv.roomID, "host", inv.hostID)
		m.emit(m.roomState())
		return nil
	})
}

// DeclineInvitation tells the inviter no.
func (m *Manager) DeclineInvitation(roomID string) error {
	return m.loop.call(func() error {
		inv := m.takeInvitation(roomID)
		if inv == nil {
			return NewError("decline room", ErrNoInvitation)
		}
		msg := protocol.System(protocol.ActionRoomJoinRejected, "invitation declined")
		msg.RoomID = inv.roomID
		m.sendSystemTo(inv.conn, msg)
		m.dropInvitationConn(inv.conn)
		return nil
	})
}

// LeaveRoom closes a hosted room or leaves a joined one.
func (m *Manager) LeaveRoom() error {
	return m.loop.call(func() error {
		switch {
		case m.room != nil:
			m.closeRoom()
		case m.membership != nil:
			if s := m.registry.Current(); s != nil && s.Peer == m.membership.hostID {
				m.sendSystemTo(s.Conn, disconnectedMsg)
				m.endSession(s, "left room")
				m.closeLater(s.Conn)
			}
			if m.membership != nil {
				m.membership = nil
				m.emit(RoomChanged{})
			}
		default:
			return NewError("leave room", ErrNoRoom)
		}
		return nil
	})
}

func (m *Manager) closeRoom() {
	for _, conn := range m.room.links {
		m.sendSystemTo(conn, disconnectedMsg)
		m.closeLater(conn)
	}
	for conn := range m.outInvites {
		_ = conn.Close()
	}
	m.outInvites = make(map[transport.DataConn]string)
	m.log.Info("Room closed", "room", m.room.id)
	m.room = nil
	m.emit(RoomChanged{})
	m.syncPresence()
}

// handleJoinConn takes a member's link to a hosted room.
func (m *Manager) handleJoinConn(conn transport.DataConn, roomID string) {
	if m.room == nil || m.room.id != roomID {
		m.whenOpen(conn, func() {
			m.sendSystemTo(conn, protocol.System(protocol.ActionRejected, "room not found"))
			m.closeLater(conn)
		})
		return
	}
	peer := conn.Peer()
	if old := m.room.links[peer]; old != nil && old != conn {
		_ = old.Close()
	}
	m.room.links[peer] = conn
}

func (m *Manager) handleLinkMessage(conn transport.DataConn, msg protocol.Message) {
	peer := conn.Peer()
	switch v := msg.(type) {
	case protocol.SystemMessage:
		switch v.Action {
		case protocol.ActionRoomJoin:
			if v.RoomID != m.room.id {
				return
			}
			m.room.joined[peer] = orDefault(v.Username, peer)
			m.notice(LevelInfo, "%s joined the room", m.displayName(peer))
			m.emit(m.roomState())
		case protocol.ActionDisconnected:
			m.removeLink(peer)
			_ = conn.Close()
		default:
			m.log.Debug("Ignoring control message on room link", "peer", peer, "action", v.Action)
		}
	case protocol.ChatMessage:
		m.emit(Message{From: peer, To: m.localID, Text: v.Text, Link: protocol.IsLink(v.Text), RoomID: m.room.id, At: time.Now()})
	case protocol.FileMessage:
		m.receiveFile(peer, m.room.id, v)
	}
}

func (m *Manager) removeLink(peer string) {
	delete(m.room.links, peer)
	if _, ok := m.room.joined[peer]; ok {
		delete(m.room.joined, peer)
		m.notice(LevelInfo, "%s left the room", m.displayName(peer))
		m.emit(m.roomState())
	}
}
