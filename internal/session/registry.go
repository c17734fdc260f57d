// Package session tracks the single active pairwise session and the inbound
// requests waiting for a decision.
package session

import (
	"errors"
	"sort"
	"time"

	"github.com/nikelwish/p2p-service/internal/transport"
)

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// ErrActive is returned by Begin while another session is current.
var ErrActive = errors.New("a session is already active")

// Session is one conversation with one remote peer over one data channel.
type Session struct {
	Peer      string
	Conn      transport.DataConn
	State     State
	Direction Direction
	// Accepted is set once both ends agreed to talk: immediately for an
	// accepted inbound request, on the peer's "accepted" for an outbound one.
	Accepted  bool
	RoomID    string
	CreatedAt time.Time
}

func (s *Session) Active() bool {
	return s != nil && s.State != StateClosed
}

// PendingRequest is an inbound connection waiting for accept or reject.
type PendingRequest struct {
	Peer       string
	Conn       transport.DataConn
	ReceivedAt time.Time
}

// Registry holds at most one current session. It is not safe for concurrent
// use; its owner serializes access.
type Registry struct {
	current *Session
	pending map[string]*PendingRequest
}

// NewRegistry creates an empty registry with no current session.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*PendingRequest)}
}

func (r *Registry) Current() *Session {
	return r.current
}

// Begin makes s current. The previous session has to be ended first.
func (r *Registry) Begin(s *Session) error {
	if r.current != nil {
		return ErrActive
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.State == "" {
		s.State = StateConnecting
	}
	r.current = s
	return nil
}

// End clears s if it is still current and reports whether it was. Ending a
// session that was already superseded or ended is a no-op.
func (r *Registry) End(s *Session) bool {
	if s == nil || r.current != s {
		return false
	}
	s.State = StateClosed
	r.current = nil
	return true
}

// ByConn returns the current session if it runs over conn.
func (r *Registry) ByConn(conn transport.DataConn) *Session {
	if r.current != nil && r.current.Conn == conn {
		return r.current
	}
	return nil
}

// Enqueue records a request and returns the one it replaced from the same
// peer, if any.
func (r *Registry) Enqueue(p *PendingRequest) *PendingRequest {
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = time.Now()
	}
	prev := r.pending[p.Peer]
	r.pending[p.Peer] = p
	return prev
}

// Take removes and returns the request from peer.
func (r *Registry) Take(peer string) (*PendingRequest, bool) {
	p, ok := r.pending[peer]
	if ok {
		delete(r.pending, peer)
	}
	return p, ok
}

// Oldest returns the request that has waited longest without removing it.
func (r *Registry) Oldest() (*PendingRequest, bool) {
	list := r.Pending()
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// DropConn forgets a request whose connection went away.
func (r *Registry) DropConn(conn transport.DataConn) (*PendingRequest, bool) {
	for peer, p := range r.pending {
		if p.Conn == conn {
			delete(r.pending, peer)
			return p, true
		}
	}
	return nil, false
}

// Pending lists waiting requests, oldest first.
func (r *Registry) Pending() []*PendingRequest {
	out := make([]*PendingRequest, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].Peer < out[j].Peer
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out
}

// Expire removes and returns requests older than ttl. A zero ttl keeps
// requests forever.
func (r *Registry) Expire(now time.Time, ttl time.Duration) []*PendingRequest {
	if ttl <= 0 {
		return nil
	}
	var out []*PendingRequest
	for _, p := range r.Pending() {
		if now.Sub(p.ReceivedAt) >= ttl {
			delete(r.pending, p.Peer)
			out = append(out, p)
		}
	}
	return out
}

// Reset forgets everything and returns what was held so the caller can close
// the connections.
func (r *Registry) Reset() (*Session, []*PendingRequest) {
	cur := r.current
	if cur != nil {
		cur.State = StateClosed
	}
	pending := r.Pending()
	r.current = nil
	r.pending = make(map[string]*PendingRequest)
	return cur, pending
}
