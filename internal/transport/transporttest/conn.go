package transporttest

import (
	"sync"

	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/transport"
)

type Conn struct {
	peer   string
	md     protocol.ConnMetadata
	remote *Conn

	mu      sync.Mutex
	open    bool
	closed  bool
	err     error
	onOpen  func()
	onData  func([]byte)
	onClose func()
	onErr   func(error)
	inbox   [][]byte
	sent    [][]byte
}

var _ transport.DataConn = (*Conn)(nil)

func newConn(peer string, md protocol.ConnMetadata) *Conn {
	return &Conn{peer: peer, md: md}
}

func (c *Conn) Peer() string                    { return c.peer }
func (c *Conn) Metadata() protocol.ConnMetadata { return c.md }

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && !c.closed
}

// MarkOpen opens both ends.
func (c *Conn) MarkOpen() {
	c.setOpen()
	if c.remote != nil {
		c.remote.setOpen()
	}
}

func (c *Conn) setOpen() {
	c.mu.Lock()
	if c.open || c.closed {
		c.mu.Unlock()
		return
	}
	c.open = true
	fn := c.onOpen
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	if !c.open {
		c.mu.Unlock()
		return transport.ErrPeerUnavailable
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	remote := c.remote
	c.mu.Unlock()

	if remote != nil {
		remote.deliver(append([]byte(nil), data...))
	}
	return nil
}

func (c *Conn) deliver(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn := c.onData
	if fn == nil {
		c.inbox = append(c.inbox, data)
	}
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (c *Conn) Close() error {
	c.shut()
	if c.remote != nil {
		c.remote.shut()
	}
	return nil
}

func (c *Conn) shut() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Conn) fail(err error) {
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
func (c *Conn) Fail(err error) { c.fail(err) }

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) OnOpen(fn func()) {
	c.mu.Lock()
	c.onOpen = fn
	fire := c.open && !c.closed
	c.mu.Unlock()
	if fire {
		fn()
	}
}

func (c *Conn) OnData(fn func([]byte)) {
	c.mu.Lock()
	c.onData = fn
	inbox := c.inbox
	c.inbox = nil
	c.mu.Unlock()
	for _, d := range inbox {
		fn(d)
	}
}

func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	fire := c.closed
	c.mu.Unlock()
	if fire {
		fn()
	}
}

func (c *Conn) OnError(fn func(error)) {
	c.mu.Lock()
	c.onErr = fn
	err := c.err
	c.mu.Unlock()
	if err != nil {
		fn(err)
	}
}

// Sent returns every payload written on this end.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// SentMessages decodes Sent, skipping anything that does not parse.
func (c *Conn) SentMessages() []protocol.Message {
	var out []protocol.Message
	for _, raw := range c.Sent() {
		if msg, err := protocol.Decode(raw); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

// SentActions lists the actions of system messages written on this end.
func (c *Conn) SentActions() []protocol.Action {
	var out []protocol.Action
	for _, msg := range c.SentMessages() {
		if sys, ok := msg.(protocol.SystemMessage); ok {
			out = append(out, sys.Action)
		}
	}
	return out
}

// Inject delivers a raw payload as if the remote had sent it.
func (c *Conn) Inject(data []byte) { c.deliver(data) }
