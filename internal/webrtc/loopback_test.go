package webrtc

import (
	"bytes"
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/nikelwish/p2p-service/internal/config"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/signaling"
	"github.com/nikelwish/p2p-service/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeSignaler hands frames straight to its partner, standing in for the
// rendezvous server.
type pipeSignaler struct {
	id      string
	peer    *pipeSignaler
	signals chan *signaling.Message
	errs    chan error

	once sync.Once
	done chan struct{}
}

func newPipeSignalers(a, b string) (*pipeSignaler, *pipeSignaler) {
	sa := &pipeSignaler{id: a, signals: make(chan *signaling.Message, 256), errs: make(chan error, 1), done: make(chan struct{})}
	sb := &pipeSignaler{id: b, signals: make(chan *signaling.Message, 256), errs: make(chan error, 1), done: make(chan struct{})}
	sa.peer, sb.peer = sb, sa
	return sa, sb
}

func (s *pipeSignaler) Register(context.Context, string) error { return nil }

func (s *pipeSignaler) Send(msg *signaling.Message) error {
	copied := *msg
	copied.Src = s.id
	select {
	case s.peer.signals <- &copied:
		return nil
	case <-s.peer.done:
		return signaling.ErrClientClosed
	}
}

func (s *pipeSignaler) Signals() <-chan *signaling.Message { return s.signals }
func (s *pipeSignaler) Errors() <-chan error               { return s.errs }

func (s *pipeSignaler) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func openPair(t *testing.T) (*Provider, *Provider) {
	t.Helper()
	factory, err := NewFactory(&config.Config{}, nil)
	require.NoError(t, err)

	sa, sb := newPipeSignalers("alice", "bob")
	alice := NewProvider(sa, factory, nil)
	bob := NewProvider(sb, factory, nil)
	t.Cleanup(func() {
		alice.Close()
		bob.Close()
	})

	_, err = alice.Open(t.Context(), "alice")
	require.NoError(t, err)
	_, err = bob.Open(t.Context(), "bob")
	require.NoError(t, err)
	return alice, bob
}

func TestLargeFileOverDataChannel(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real peer connections")
	}
	alice, bob := openPair(t)

	incoming := make(chan transport.DataConn, 1)
	bob.OnConnection(func(c transport.DataConn) { incoming <- c })

	conn, err := alice.Connect("bob", transport.ConnectOptions{
		Reliable: true,
		Metadata: protocol.ConnMetadata{RequestType: protocol.RequestConnection},
	})
	require.NoError(t, err)
	opened := make(chan struct{})
	conn.OnOpen(func() { close(opened) })

	var remote transport.DataConn
	select {
	case remote = <-incoming:
	case <-time.After(20 * time.Second):
		t.Fatal("no incoming connection")
	}
	received := make(chan []byte, 4)
	remote.OnData(func(data []byte) { received <- data })

	select {
	case <-opened:
	case <-time.After(20 * time.Second):
		t.Fatal("data channel did not open")
	}

	data := make([]byte, 2*1024*1024+3)
	_, err = rand.Read(data)
	require.NoError(t, err)
	file, err := protocol.Encode(protocol.FileMessage{Name: "clip.bin", MimeType: "application/octet-stream", Data: data})
	require.NoError(t, err)
	text, err := protocol.Encode(protocol.ChatMessage{Text: "after"})
	require.NoError(t, err)

	require.NoError(t, conn.Send(file))
	require.NoError(t, conn.Send(text))

	select {
	case got := <-received:
		msg, err := protocol.Decode(got)
		require.NoError(t, err)
		fm, ok := msg.(protocol.FileMessage)
		require.True(t, ok)
		assert.Equal(t, "application/octet-stream", fm.MimeType)
		assert.Equal(t, int64(len(data)), fm.Size)
		assert.True(t, bytes.Equal(data, fm.Data))
	case <-time.After(60 * time.Second):
		t.Fatal("file not received")
	}
	select {
	case got := <-received:
		msg, err := protocol.Decode(got)
		require.NoError(t, err)
		assert.Equal(t, protocol.ChatMessage{Text: "after"}, msg)
	case <-time.After(10 * time.Second):
		t.Fatal("text after the file not received")
	}
}
