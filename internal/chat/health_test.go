package chat

import (
	"testing"
	"time"

	"github.com/nikelwish/p2p-service/internal/media/mediatest"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/transport"
	"github.com/nikelwish/p2p-service/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var broken = transport.NegotiationState{ICE: transport.StateFailed, Connection: transport.StateFailed, Signaling: transport.StateStable}

func TestBrokenCallRestartsICE(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	connectPair(t, y, x)

	call := y.transport().CallsTo("xavier")[0]
	call.SetState(broken)
	y.run(y.m.checkNegotiation)
	settle(x, y)

	assert.Equal(t, 1, call.Restarts())
	assert.False(t, call.Closed())
	assert.Len(t, y.transport().CallsTo("xavier"), 1)
}

func TestBrokenCallRedialsWhenRestartUnsupported(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	y.transport().RestartUnsupported = true
	connectPair(t, y, x)

	first := y.transport().CallsTo("xavier")[0]
	first.SetState(broken)
	y.run(y.m.checkNegotiation)

	require.Eventually(t, func() bool {
		settle(x, y)
		calls := y.transport().CallsTo("xavier")
		xc := x.m.Snapshot().Call
		return len(calls) == 2 && xc != nil && xc.State == "active"
	}, time.Second, 10*time.Millisecond)

	assert.True(t, first.Closed())
	second := y.transport().CallsTo("xavier")[1]
	assert.True(t, second.LocalMetadata().Reconnect)
	assert.Equal(t, "active", y.m.Snapshot().Call.State)
	assert.Equal(t, "yvonne", x.m.Snapshot().Session.Peer)
	assert.Equal(t, presence.Busy, x.status())
	assert.Empty(t, eventsOf[CallRinging](x.events), "the redial lands on an open session")
}

func TestPlaybackWatchdogResumesStalledStream(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	connectPair(t, y, x)

	tracks := remoteTracks(t, x)
	for _, tr := range tracks {
		tr.SetMuted(true)
	}
	require.False(t, x.remote.Playing())

	x.run(x.m.checkPlayback)

	for _, tr := range tracks {
		assert.Equal(t, 1, tr.Resumes())
	}
	assert.True(t, x.remote.Playing())
}

func TestNegotiationWatchdogUnmutesRemoteTracks(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")
	y := newTestPeer(t, net, "yvonne")
	connectPair(t, y, x)

	tracks := remoteTracks(t, x)
	muted := tracks[0]
	muted.SetMuted(true)
	muted.SetEnabled(false)

	x.run(x.m.checkNegotiation)

	assert.True(t, muted.Enabled())
	assert.False(t, muted.Muted())
	assert.Equal(t, 1, muted.Resumes())
	assert.Zero(t, x.transport().CallsTo("yvonne")[0].Restarts())
}

func TestWatchdogsIgnoreIdleManager(t *testing.T) {
	net := transporttest.NewNetwork()
	x := newTestPeer(t, net, "xavier")

	x.run(x.m.checkPlayback)
	x.run(x.m.checkNegotiation)
	assert.Nil(t, x.m.Snapshot().Call)
}

func remoteTracks(t *testing.T, p *testPeer) []*mediatest.Track {
	t.Helper()
	stream := p.remote.Stream()
	require.NotNil(t, stream)
	var out []*mediatest.Track
	for _, tr := range stream.Tracks() {
		ft, ok := tr.(*mediatest.Track)
		require.True(t, ok)
		out = append(out, ft)
	}
	require.NotEmpty(t, out)
	return out
}
