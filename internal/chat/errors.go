package chat

import (
	"errors"
	"fmt"
)

var (
	ErrSelfConnect      = errors.New("cannot connect to yourself")
	ErrEmptyPeer        = errors.New("peer id is empty")
	ErrSessionActive    = errors.New("a session is already active")
	ErrNoSession        = errors.New("no active session")
	ErrCallActive       = errors.New("a call is already active")
	ErrNoCall           = errors.New("no active call")
	ErrNoLocalMedia     = errors.New("no local media")
	ErrNoIncomingCall   = errors.New("no incoming call")
	ErrNoPendingRequest = errors.New("no pending request")
	ErrNotRoomHost      = errors.New("not hosting a room")
	ErrRoomActive       = errors.New("already in a room")
	ErrNoRoom           = errors.New("not in a room")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrNoInvitation     = errors.New("no room invitation")
	ErrNotStarted       = errors.New("manager not started")
	ErrClosed           = errors.New("manager closed")
)

// Error is a failed chat operation.
type Error struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func NewPeerError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
