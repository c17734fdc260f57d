package transporttest

import (
	"sync"

	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/transport"
)

type Call struct {
	peer   string
	remote *Call

	restartUnsupported bool

	mu       sync.Mutex
	md       protocol.CallMetadata
	sent     protocol.CallMetadata
	local    *media.Stream
	stream   *media.Stream
	answered bool
	closed   bool
	err      error
	state    transport.NegotiationState
	restarts int
	replaced []media.Track
	onStream func(*media.Stream)
	onClose  func()
	onErr    func(error)
}

var _ transport.MediaCall = (*Call)(nil)

func (c *Call) Peer() string { return c.peer }

func (c *Call) Metadata() protocol.CallMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.md
}

// LocalMetadata is what this end declared to the remote.
func (c *Call) LocalMetadata() protocol.CallMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// LocalStream is what this end offered or answered with.
func (c *Call) LocalStream() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

func (c *Call) Answer(stream *media.Stream, md protocol.CallMetadata) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	c.answered = true
	c.local = stream
	c.sent = md
	remote := c.remote
	c.mu.Unlock()

	connected := transport.NegotiationState{ICE: transport.StateConnected, Connection: transport.StateConnected, Signaling: transport.StateStable}
	c.SetState(connected)
	if remote == nil {
		return nil
	}
	remote.mu.Lock()
	remote.md = md
	offered := remote.local
	remote.mu.Unlock()
	remote.SetState(connected)

	remote.receive(stream)
	c.receive(offered)
	return nil
}

func (c *Call) Answered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answered
}

func (c *Call) receive(s *media.Stream) {
	if s == nil {
		s = media.EmptyStream()
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stream = s
	fn := c.onStream
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (c *Call) Close() error {
	c.shut()
	if c.remote != nil {
		c.remote.shut()
	}
	return nil
}

func (c *Call) shut() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = transport.NegotiationState{ICE: transport.StateClosed, Connection: transport.StateClosed, Signaling: transport.StateClosed}
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Call) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Call) fail(err error) {
	c.mu.Lock()
	c.err = err
	fn := c.onErr
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
	c.shut()
}

// Fail raises err on this end and closes it.
func (c *Call) Fail(err error) { c.fail(err) }

func (c *Call) OnStream(fn func(*media.Stream)) {
	c.mu.Lock()
	c.onStream = fn
	s := c.stream
	c.mu.Unlock()
	if s != nil {
		fn(s)
	}
}

func (c *Call) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	fire := c.closed
	c.mu.Unlock()
	if fire {
		fn()
	}
}

func (c *Call) OnError(fn func(error)) {
	c.mu.Lock()
	c.onErr = fn
	err := c.err
	c.mu.Unlock()
	if err != nil {
		fn(err)
	}
}

func (c *Call) State() transport.NegotiationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Call) SetState(s transport.NegotiationState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Call) RestartICE() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restartUnsupported {
		return transport.ErrRestartUnsupported
	}
	c.restarts++
	c.state = transport.NegotiationState{ICE: transport.StateChecking, Connection: transport.StateConnecting, Signaling: "have-local-offer"}
	return nil
}

func (c *Call) Restarts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restarts
}

func (c *Call) ReplaceVideoTrack(track media.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	c.replaced = append(c.replaced, track)
	return nil
}

func (c *Call) Replaced() []media.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]media.Track(nil), c.replaced...)
}
