package webrtc

import (
	"sync"

	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/transport"
	"github.com/nikelwish/p2p-service/internal/utils"
	pion "github.com/pion/webrtc/v4"
)

// dataConn is a transport.DataConn over one peer connection carrying one
// data channel. Payloads are framed so files larger than pion's receive
// buffer still arrive whole.
type dataConn struct {
	*link
	md protocol.ConnMetadata

	mu sync.Mutex
	dc *pion.DataChannel

	// sendMu keeps the frames of one payload together.
	sendMu sync.Mutex
	frames *assembler

	opened latch
	closed latch
	errs   errLatch
	data   inbox
}

var _ transport.DataConn = (*dataConn)(nil)

func newDataConn(l *link, md protocol.ConnMetadata) *dataConn {
	c := &dataConn{link: l, md: md, frames: newAssembler(maxAssembled)}
	l.pc.OnConnectionStateChange(func(s pion.PeerConnectionState) {
		switch s {
		case pion.PeerConnectionStateFailed:
			c.errs.fire(NewConnError("data connection", l.id, transport.ErrPeerUnavailable))
			c.terminate(false)
		case pion.PeerConnectionStateClosed:
			c.terminate(false)
		}
	})
	return c
}

func (c *dataConn) attach(dc *pion.DataChannel) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()

	dc.OnOpen(func() { c.opened.fire() })
	dc.OnClose(func() { c.terminate(false) })
	dc.OnError(func(err error) { c.errs.fire(err) })
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		payload, ok, err := c.frames.push(msg.Data)
		if err != nil {
			c.log.Warn("Dropping payload", "error", err)
			return
		}
		if ok {
			c.data.push(payload)
		}
	})
}

func (c *dataConn) Peer() string                    { return c.peer }
func (c *dataConn) Metadata() protocol.ConnMetadata { return c.md }

func (c *dataConn) IsOpen() bool {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()
	return dc != nil && dc.ReadyState() == pion.DataChannelStateOpen && !c.closed.done()
}

func (c *dataConn) Send(data []byte) error {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()
	if c.closed.done() {
		return transport.ErrClosed
	}
	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return NewConnError("send", c.id, ErrNotOpen)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	for _, frame := range splitFrames(data, utils.DefaultChunkSize) {
		if err := dc.Send(frame); err != nil {
			return NewConnError("send", c.id, err)
		}
	}
	return nil
}

func (c *dataConn) Close() error {
	c.terminate(true)
	return nil
}

func (c *dataConn) terminate(notify bool) {
	if c.closed.done() {
		return
	}
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()
	if dc != nil {
		dc.Close()
	}
	c.shutdown(notify)
	c.closed.fire()
}

func (c *dataConn) fail(err error) {
	c.errs.fire(err)
	c.terminate(false)
}

func (c *dataConn) OnOpen(fn func())            { c.opened.set(fn) }
func (c *dataConn) OnData(fn func(data []byte)) { c.data.set(fn) }
func (c *dataConn) OnClose(fn func())           { c.closed.set(fn) }
func (c *dataConn) OnError(fn func(err error))  { c.errs.set(fn) }
