package webrtc

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedSignal = errors.New("unexpected signal")
	ErrNoVideoSender    = errors.New("call has no outgoing video")
	ErrNotOpen          = errors.New("data channel not open")
	ErrEmptyFrame       = errors.New("empty frame")
	ErrUnknownFrame     = errors.New("unknown frame flag")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

// Error is a failed negotiation step on one connection.
type Error struct {
	Op      string
	Conn    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Conn != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Conn, e.Err)
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

func NewConnError(op, conn string, err error) *Error {
	return &Error{Op: op, Conn: conn, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
