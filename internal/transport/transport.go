// Package transport is the contract between the chat core and whatever
// carries its data channels and media calls between peers.
package transport

import (
	"context"
	"errors"

	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/protocol"
)

var (
	// ErrIDTaken means another live peer is registered under the same id.
	ErrIDTaken            = errors.New("peer id is already taken")
	ErrPeerUnavailable    = errors.New("peer is unavailable")
	ErrClosed             = errors.New("transport closed")
	ErrRestartUnsupported = errors.New("ice restart not supported")
)

type ConnectOptions struct {
	Reliable bool
	Metadata protocol.ConnMetadata
}

// DataConn is one reliable, ordered data channel to a remote peer. Handlers
// registered after the matching event already happened fire immediately.
type DataConn interface {
	Peer() string
	Metadata() protocol.ConnMetadata
	IsOpen() bool
	Send(data []byte) error
	Close() error

	OnOpen(fn func())
	OnData(fn func(data []byte))
	OnClose(fn func())
	OnError(fn func(err error))
}

// Connection states as reported by the underlying ICE agent and peer
// connection.
const (
	StateNew          = "new"
	StateChecking     = "checking"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateCompleted    = "completed"
	StateDisconnected = "disconnected"
	StateFailed       = "failed"
	StateClosed       = "closed"
	StateStable       = "stable"
)

type NegotiationState struct {
	ICE        string
	Connection string
	Signaling  string
}

// Broken reports whether the media path has failed or dropped.
func (s NegotiationState) Broken() bool {
	switch {
	case s.ICE == StateFailed, s.ICE == StateDisconnected:
		return true
	case s.Connection == StateFailed, s.Connection == StateDisconnected:
		return true
	}
	return false
}

// MediaCall is the media leg to a remote peer.
type MediaCall interface {
	Peer() string
	// Metadata is what the remote side declared: the offer's metadata on
	// an inbound call, the answer's once it arrives on an outbound one.
	Metadata() protocol.CallMetadata
	Answer(stream *media.Stream, md protocol.CallMetadata) error
	Close() error

	OnStream(fn func(remote *media.Stream))
	OnClose(fn func())
	OnError(fn func(err error))

	State() NegotiationState
	// RestartICE renegotiates in place; ErrRestartUnsupported means the
	// caller has to redial instead.
	RestartICE() error
	ReplaceVideoTrack(track media.Track) error
}

// Provider registers the local peer id with a rendezvous service and opens
// data channels and calls by remote id.
type Provider interface {
	Open(ctx context.Context, id string) (string, error)
	ID() string
	Connect(remoteID string, opts ConnectOptions) (DataConn, error)
	Call(remoteID string, stream *media.Stream, md protocol.CallMetadata) (MediaCall, error)

	OnConnection(fn func(conn DataConn))
	OnCall(fn func(call MediaCall))
	OnError(fn func(err error))

	Close() error
}
