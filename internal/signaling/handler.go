package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultKey is the API key of the public PeerJS cloud.
const DefaultKey = "peerjs"

var (
	// ErrIDTaken is returned by Register when the id is in use.
	ErrIDTaken = errors.New("id is taken")
	// ErrInvalidKey is returned by Register when the server refuses the key.
	ErrInvalidKey = errors.New("invalid server key")
	// ErrPeerUnavailable reports that the server could not deliver to Dst.
	ErrPeerUnavailable = errors.New("peer unavailable")
)

// ServerError is an error frame from the server.
type ServerError struct {
	Peer    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("signaling: %s: %s", e.Peer, e.Message)
	}
	return "signaling: " + e.Message
}

// Signaler is what the peer connection layer needs from signaling.
type Signaler interface {
	Register(ctx context.Context, id string) error
	Send(msg *Message) error
	Signals() <-chan *Message
	Errors() <-chan error
	Close() error
}

// Handler owns the socket to a PeerJS server. The id is claimed when the
// socket opens, so every Register dials afresh; once one succeeds,
// negotiation frames go to Signals and server errors to Errors.
type Handler struct {
	serverURL string
	key       string
	log       *slog.Logger

	signal chan *Message
	errs   chan error

	mu     sync.Mutex
	client *Client
	id     string
	closed bool
	// ended is set once Signals is closed; the handler cannot register again.
	ended bool
}

var _ Signaler = (*Handler)(nil)

// NewHandler creates a handler for the server at serverURL. An empty key
// means DefaultKey.
func NewHandler(serverURL, key string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if key == "" {
		key = DefaultKey
	}
	return &Handler{
		serverURL: serverURL,
		key:       key,
		log:       log,
		signal:    make(chan *Message, 64),
		errs:      make(chan error, 8),
	}
}

// Register opens a socket claiming id and waits for the server's verdict.
// A previous socket is dropped first.
func (h *Handler) Register(ctx context.Context, id string) error {
	h.mu.Lock()
	if h.closed || h.ended {
		h.mu.Unlock()
		return ErrClientClosed
	}
	old := h.client
	h.client = nil
	h.id = ""
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}

	target, err := RegistrationURL(h.serverURL, h.key, id, uuid.NewString())
	if err != nil {
		return err
	}
	client := NewClient(target, h.log)
	if err := client.Connect(ctx); err != nil {
		return err
	}

	if err := h.awaitOpen(ctx, client); err != nil {
		client.Close()
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.Close()
		return ErrClientClosed
	}
	h.client = client
	h.id = id
	h.mu.Unlock()

	go h.route(client)
	return nil
}

// awaitOpen reads the first frame, which settles the registration.
func (h *Handler) awaitOpen(ctx context.Context, client *Client) error {
	for {
		select {
		case msg, ok := <-client.Incoming():
			if !ok {
				return ErrClientClosed
			}
			switch msg.Type {
			case MessageTypeOpen:
				return nil
			case MessageTypeIDTaken:
				return ErrIDTaken
			case MessageTypeInvalidKey:
				return ErrInvalidKey
			case MessageTypeError:
				return serverError(msg)
			default:
				h.log.Debug("Ignoring frame before open", "type", msg.Type)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// route forwards frames from client until its socket ends. Frames from a
// socket that was replaced are dropped.
func (h *Handler) route(client *Client) {
	for msg := range client.Incoming() {
		if !h.current(client) {
			continue
		}
		switch msg.Type {
		case MessageTypeOffer, MessageTypeAnswer, MessageTypeCandidate, MessageTypeLeave, MessageTypeExpire:
			h.signal <- msg

		case MessageTypeError:
			err := serverError(msg)
			select {
			case h.errs <- err:
			default:
				h.log.Warn("Dropping signaling error", "error", err)
			}

		default:
			h.log.Debug("Ignoring signaling message", "type", msg.Type)
		}
	}

	h.mu.Lock()
	last := h.client == client
	if last {
		h.ended = true
	}
	h.mu.Unlock()
	if last {
		close(h.signal)
	}
}

func (h *Handler) current(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client == client
}

func serverError(msg *Message) error {
	text := "unknown error from server"
	if msg.Payload != nil && msg.Payload.Msg != "" {
		text = msg.Payload.Msg
	}
	return &ServerError{Peer: msg.Src, Message: text}
}

// ID is the registered id, empty before Register succeeds.
func (h *Handler) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Send stamps msg with the registered id and forwards it.
func (h *Handler) Send(msg *Message) error {
	h.mu.Lock()
	client := h.client
	if msg.Src == "" {
		msg.Src = h.id
	}
	h.mu.Unlock()
	if client == nil {
		return ErrClientClosed
	}
	return client.SendMessage(msg)
}

func (h *Handler) Signals() <-chan *Message { return h.signal }
func (h *Handler) Errors() <-chan error     { return h.errs }

// Close ends the socket. Safe to call more than once.
func (h *Handler) Close() error {
	h.mu.Lock()
	h.closed = true
	client := h.client
	h.mu.Unlock()
	if client != nil {
		client.Close()
	}
	return nil
}
