package chat

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nikelwish/p2p-service/internal/files"
	"github.com/nikelwish/p2p-service/internal/identity"
	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/media/mediatest"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/storage"
	"github.com/nikelwish/p2p-service/internal/transport"
	"github.com/nikelwish/p2p-service/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestStartRegeneratesTakenID(t *testing.T) {
	net := transporttest.NewNetwork()
	net.Reserve("alice")

	p := newTestPeer(t, net, "alice")

	assert.NotEqual(t, "alice", p.id)
	stored, _, err := p.kv.Get(storage.KeyPeerID)
	require.NoError(t, err)
	assert.Equal(t, p.id, stored)
	ready := eventsOf[Ready](p.events)
	require.Len(t, ready, 1)
	assert.Equal(t, p.id, ready[0].ID)
}

func TestChangeIdentity(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	connectPair(t, y, x)

	require.NoError(t, x.m.ChangeIdentity(t.Context(), "xander"))
	settle(x, y)

	assert.Equal(t, "xander", x.m.ID())
	stored, _, err := x.kv.Get(storage.KeyPeerID)
	require.NoError(t, err)
	assert.Equal(t, "xander", stored)
	ready := eventsOf[Ready](x.events)
	assert.Equal(t, "xander", ready[len(ready)-1].ID)

	assert.Nil(t, y.m.Snapshot().Session)
	assert.Nil(t, x.m.Snapshot().Session)

	require.NoError(t, y.m.Connect("xander", false))
	settle(x, y)
	require.Len(t, x.m.Snapshot().Pending, 1)
}

func TestChangeIdentityRejectsTakenAndInvalid(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	net.Reserve("taken")

	assert.ErrorIs(t, x.m.ChangeIdentity(t.Context(), "taken"), transport.ErrIDTaken)
	assert.Equal(t, "xavier", x.m.ID())
	assert.ErrorIs(t, x.m.ChangeIdentity(t.Context(), "not valid!"), identity.ErrInvalidID)

	require.NoError(t, y.m.Connect("xavier", false))
	settle(x, y)
	assert.Len(t, x.m.Snapshot().Pending, 1)
}

func TestCloseTellsThePeer(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	connectPair(t, y, x)

	require.NoError(t, x.m.Close())
	settle(y)

	assert.Nil(t, y.m.Snapshot().Session)
	assert.Nil(t, y.m.Snapshot().Call)
	assert.ErrorIs(t, x.m.Connect("yvonne", false), ErrClosed)
	assert.NoError(t, x.m.Close())
}

func TestToggleMedia(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")

	on, err := x.m.ToggleAudio()
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, x.m.Snapshot().Media.Audio)
	assert.True(t, x.m.Snapshot().Media.Video)

	on, err = x.m.ToggleAudio()
	require.NoError(t, err)
	assert.True(t, on)

	on, err = x.m.ToggleVideo()
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, x.m.Snapshot().Media.Video)
}

func TestSwitchCameraReplacesCallTrack(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	connectPair(t, y, x)
	mic := y.localTracks(media.KindAudio)
	require.Len(t, mic, 1)

	require.NoError(t, y.m.SwitchCamera(t.Context()))

	call := y.transport().CallsTo("xavier")[0]
	require.Len(t, call.Replaced(), 1)
	assert.Equal(t, media.KindVideo, call.Replaced()[0].Kind())
	assert.Equal(t, media.FacingEnvironment, y.m.Snapshot().Media.Facing)

	// The call keeps sending the same microphone, and muting still reaches it.
	after := y.localTracks(media.KindAudio)
	require.Len(t, after, 1)
	assert.Same(t, mic[0], after[0])
	assert.False(t, mic[0].(*mediatest.Track).Stopped())

	on, err := y.m.ToggleAudio()
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, mic[0].Enabled())
}

func TestSendTextDetectsLinks(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")

	assert.ErrorIs(t, y.m.SendText("hi"), ErrNoSession)
	connectPair(t, y, x)
	assert.ErrorIs(t, y.m.SendText("   "), ErrEmptyMessage)

	require.NoError(t, y.m.SendText("https://example.com/x"))
	require.NoError(t, y.m.SendText("plain words"))
	settle(x, y)

	got := eventsOf[Message](x.events)
	require.Len(t, got, 2)
	assert.Equal(t, "yvonne", got[0].From)
	assert.True(t, got[0].Link)
	assert.False(t, got[1].Link)

	sent := eventsOf[Message](y.events)
	require.Len(t, sent, 2)
	assert.True(t, sent[0].Outgoing)
	assert.Equal(t, "xavier", sent[0].To)
}

func TestSendFileBoundary(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	connectPair(t, y, x)

	dir := t.TempDir()
	over := sparseFile(t, filepath.Join(dir, "over.bin"), protocol.MaxFileSize+1)
	exact := sparseFile(t, filepath.Join(dir, "exact.bin"), protocol.MaxFileSize)

	conn := y.transport().ConnsTo("xavier")[0]
	before := len(conn.Sent())
	assert.ErrorIs(t, y.m.SendFile(over), files.ErrFileTooLarge)
	assert.Len(t, conn.Sent(), before)
	assert.True(t, hasNotice(y.events, LevelError, "over.bin"))

	require.NoError(t, y.m.SendFile(exact))
	settle(x, y)

	var received []*File
	for _, msg := range eventsOf[Message](x.events) {
		if msg.File != nil {
			received = append(received, msg.File)
		}
	}
	require.Len(t, received, 1)
	assert.Equal(t, "exact.bin", received[0].Name)
	assert.Equal(t, int64(protocol.MaxFileSize), received[0].Size)
	assert.Equal(t, protocol.KindFile, received[0].Kind)
}

func TestSendImageKeepsKind(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	connectPair(t, y, x)

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o600))
	require.NoError(t, y.m.SendFile(path))
	settle(x, y)

	msgs := eventsOf[Message](x.events)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].File)
	assert.Equal(t, protocol.KindImage, msgs[0].File.Kind)
	assert.Equal(t, "image/png", msgs[0].File.MimeType)
}

func TestLoopOrderAndStop(t *testing.T) {
	l := newLoop()
	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 50 {
		l.post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	require.NoError(t, l.call(func() error { return nil }))
	mu.Lock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	mu.Unlock()

	fired := make(chan struct{})
	l.after(5*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	l.stop()
	assert.False(t, l.post(func() {}))
	assert.ErrorIs(t, l.call(func() error { return nil }), ErrClosed)
}

func sparseFile(t *testing.T, path string, size int64) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}
