package chat

import (
	"time"

	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/session"
)

type SessionInfo struct {
	Peer      string
	Direction session.Direction
	State     session.State
	Accepted  bool
	RoomID    string
	Since     time.Time
}

type CallInfo struct {
	Peer      string
	State     string
	Direction string
	AudioOnly bool
	Since     time.Time
}

type PendingInfo struct {
	Peer       string
	ReceivedAt time.Time
}

type InvitationInfo struct {
	RoomID string
	HostID string
	From   string
}

// Snapshot is a point-in-time view for status displays.
type Snapshot struct {
	ID          string
	Presence    presence.Status
	Session     *SessionInfo
	Call        *CallInfo
	Pending     []PendingInfo
	Room        RoomChanged
	Invitations []InvitationInfo
	Media       MediaChanged
}

func (m *Manager) Snapshot() Snapshot {
	var snap Snapshot
	_ = m.loop.call(func() error {
		snap = Snapshot{
			ID:       m.localID,
			Presence: m.opts.Presence.Status(),
			Room:     m.roomState(),
			Media:    m.mediaState(),
		}
		if s := m.registry.Current(); s.Active() {
			snap.Session = &SessionInfo{
				Peer:      s.Peer,
				Direction: s.Direction,
				State:     s.State,
				Accepted:  s.Accepted,
				RoomID:    s.RoomID,
				Since:     s.CreatedAt,
			}
		}
		if c := m.call; c != nil {
			snap.Call = &CallInfo{
				Peer:      c.peer,
				State:     string(c.state),
				Direction: c.direction,
				AudioOnly: c.audioOnly,
				Since:     c.startedAt,
			}
		}
		for _, p := range m.registry.Pending() {
			snap.Pending = append(snap.Pending, PendingInfo{Peer: p.Peer, ReceivedAt: p.ReceivedAt})
		}
		for _, inv := range m.invitations {
			snap.Invitations = append(snap.Invitations, InvitationInfo{RoomID: inv.roomID, HostID: inv.hostID, From: inv.from})
		}
		return nil
	})
	return snap
}
