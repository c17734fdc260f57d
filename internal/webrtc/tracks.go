package webrtc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nikelwish/p2p-service/internal/media"
	pion "github.com/pion/webrtc/v4"
)

// silenceAfter is how long a remote track may go without packets before it
// counts as muted.
const silenceAfter = 3 * time.Second

func kindOf(k pion.RTPCodecType) media.Kind {
	if k == pion.RTPCodecTypeVideo {
		return media.KindVideo
	}
	return media.KindAudio
}

// LocalTrack is a captured track that can be sent on peer connections.
// Disabling it detaches it from every sender so nothing is transmitted.
type LocalTrack struct {
	track pion.TrackLocal
	kind  media.Kind
	close func() error

	mu      sync.Mutex
	enabled bool
	stopped bool
	senders []*pion.RTPSender
}

func NewLocalTrack(track pion.TrackLocal, close func() error) *LocalTrack {
	return &LocalTrack{track: track, kind: kindOf(track.Kind()), close: close, enabled: true}
}

func (t *LocalTrack) ID() string             { return t.track.ID() }
func (t *LocalTrack) Kind() media.Kind       { return t.kind }
func (t *LocalTrack) Muted() bool            { return false }
func (t *LocalTrack) Local() pion.TrackLocal { return t.track }

func (t *LocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *LocalTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	if t.enabled == enabled || t.stopped {
		t.mu.Unlock()
		return
	}
	t.enabled = enabled
	senders := append([]*pion.RTPSender(nil), t.senders...)
	t.mu.Unlock()

	var next pion.TrackLocal
	if enabled {
		next = t.track
	}
	for _, s := range senders {
		s.ReplaceTrack(next)
	}
}

func (t *LocalTrack) bind(s *pion.RTPSender) {
	t.mu.Lock()
	t.senders = append(t.senders, s)
	enabled := t.enabled
	t.mu.Unlock()
	if !enabled {
		s.ReplaceTrack(nil)
	}
}

func (t *LocalTrack) unbind(s *pion.RTPSender) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, cur := range t.senders {
		if cur == s {
			t.senders = append(t.senders[:i], t.senders[i+1:]...)
			return
		}
	}
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.senders = nil
	t.mu.Unlock()
	if t.close != nil {
		t.close()
	}
}

// remoteTrack drains an incoming track and remembers when it last carried a
// packet.
type remoteTrack struct {
	id    string
	kind  media.Kind
	track *pion.TrackRemote

	lastPacket atomic.Int64
	started    time.Time
	enabled    atomic.Bool
	stopped    atomic.Bool
}

func newRemoteTrack(tr *pion.TrackRemote) *remoteTrack {
	id := tr.ID()
	if id == "" {
		id = uuid.NewString()
	}
	t := &remoteTrack{id: id, kind: kindOf(tr.Kind()), track: tr, started: time.Now()}
	t.enabled.Store(true)
	go t.drain()
	return t
}

func (t *remoteTrack) drain() {
	buf := make([]byte, 1500)
	for {
		if _, _, err := t.track.Read(buf); err != nil {
			t.stopped.Store(true)
			return
		}
		if t.stopped.Load() {
			return
		}
		t.lastPacket.Store(time.Now().UnixNano())
	}
}

func (t *remoteTrack) ID() string        { return t.id }
func (t *remoteTrack) Kind() media.Kind  { return t.kind }
func (t *remoteTrack) Enabled() bool     { return t.enabled.Load() }
func (t *remoteTrack) SetEnabled(b bool) { t.enabled.Store(b) }
func (t *remoteTrack) Stop()             { t.stopped.Store(true) }

func (t *remoteTrack) Muted() bool {
	last := t.lastPacket.Load()
	if last == 0 {
		return time.Since(t.started) > silenceAfter
	}
	return time.Since(time.Unix(0, last)) > silenceAfter
}

// Resume re-enables playback of the track.
func (t *remoteTrack) Resume() error {
	t.enabled.Store(true)
	return nil
}
