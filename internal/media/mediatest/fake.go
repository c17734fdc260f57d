// Package mediatest provides in-memory capture devices and tracks.
package mediatest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nikelwish/p2p-service/internal/media"
)

type Track struct {
	id   string
	kind media.Kind

	mu      sync.Mutex
	enabled bool
	muted   bool
	stopped bool
	resumes int
}

func NewTrack(kind media.Kind) *Track {
	return &Track{id: uuid.NewString(), kind: kind, enabled: true}
}

func (t *Track) ID() string       { return t.id }
func (t *Track) Kind() media.Kind { return t.kind }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *Track) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

func (t *Track) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.mu.Unlock()
}

func (t *Track) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Track) Resume() error {
	t.mu.Lock()
	t.resumes++
	t.muted = false
	t.mu.Unlock()
	return nil
}

func (t *Track) Resumes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resumes
}

// Stream builds a stream with one fake track per kind.
func Stream(kinds ...media.Kind) *media.Stream {
	tracks := make([]media.Track, 0, len(kinds))
	for _, k := range kinds {
		tracks = append(tracks, NewTrack(k))
	}
	return media.NewStream(tracks...)
}

// Devices answers GetUserMedia according to Fail, keyed by which kinds were
// requested. A kind missing from Fail succeeds.
type Devices struct {
	Infos []media.DeviceInfo
	Fail  map[Request]error

	mu    sync.Mutex
	Calls []Request
}

type Request struct {
	Video bool
	Audio bool
}

var (
	AV        = Request{Video: true, Audio: true}
	AudioOnly = Request{Audio: true}
	VideoOnly = Request{Video: true}
)

func NewDevices(camera, microphone bool) *Devices {
	d := &Devices{Fail: map[Request]error{}}
	if camera {
		d.Infos = append(d.Infos, media.DeviceInfo{ID: "cam0", Label: "Fake Camera", Kind: media.KindVideo})
	}
	if microphone {
		d.Infos = append(d.Infos, media.DeviceInfo{ID: "mic0", Label: "Fake Microphone", Kind: media.KindAudio})
	}
	return d
}

func (d *Devices) Enumerate(context.Context) ([]media.DeviceInfo, error) {
	return d.Infos, nil
}

func (d *Devices) GetUserMedia(_ context.Context, c media.Constraints) (*media.Stream, error) {
	req := Request{Video: c.Video != nil, Audio: c.Audio != nil}
	d.mu.Lock()
	d.Calls = append(d.Calls, req)
	err := d.Fail[req]
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var kinds []media.Kind
	if req.Audio {
		kinds = append(kinds, media.KindAudio)
	}
	if req.Video {
		kinds = append(kinds, media.KindVideo)
	}
	return Stream(kinds...), nil
}

func (d *Devices) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.Calls...)
}
