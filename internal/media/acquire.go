package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Level records how far down the fallback ladder acquisition went.
type Level string

const (
	LevelAudioVideo Level = "audio+video"
	LevelAudioOnly  Level = "audio-only"
	LevelVideoOnly  Level = "video-only"
	LevelNone       Level = "none"
)

// Result is what Acquire produced. Warning is set when the stream is less
// than what was asked for and the user should hear about it once.
type Result struct {
	Stream  *Stream
	Level   Level
	Warning string
}

// Acquirer obtains the local stream, degrading rather than failing.
type Acquirer struct {
	devices Devices
	log     *slog.Logger

	mu     sync.Mutex
	facing Facing
	video  VideoConstraints
	audio  AudioConstraints
}

func NewAcquirer(devices Devices, log *slog.Logger) *Acquirer {
	if log == nil {
		log = slog.Default()
	}
	return &Acquirer{
		devices: devices,
		log:     log,
		facing:  FacingUser,
		video:   VideoConstraints{Width: 1280, Height: 720, FrameRate: 30},
		audio:   AudioConstraints{EchoCancellation: true},
	}
}

func (a *Acquirer) Facing() Facing {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.facing
}

func (a *Acquirer) constraints(video, audio bool) Constraints {
	a.mu.Lock()
	defer a.mu.Unlock()
	var c Constraints
	if video {
		v := a.video
		v.Facing = a.facing
		c.Video = &v
	}
	if audio {
		au := a.audio
		c.Audio = &au
	}
	return c
}

// Acquire walks the ladder: nothing to capture gives an empty stream, then
// camera and microphone together, then audio alone, then video alone, then
// empty. A permission denial short-circuits straight to empty.
func (a *Acquirer) Acquire(ctx context.Context) Result {
	if a.devices == nil {
		return Result{Stream: EmptyStream(), Level: LevelNone, Warning: "no capture backend; receive-only"}
	}

	infos, err := a.devices.Enumerate(ctx)
	if err != nil {
		a.log.Warn("Device enumeration failed", "error", err)
	}
	var hasCam, hasMic bool
	for _, d := range infos {
		switch d.Kind {
		case KindVideo:
			hasCam = true
		case KindAudio:
			hasMic = true
		}
	}
	if !hasCam && !hasMic {
		return Result{Stream: EmptyStream(), Level: LevelNone, Warning: "no camera or microphone found; receive-only"}
	}

	stream, err := a.devices.GetUserMedia(ctx, a.constraints(true, true))
	if err == nil {
		return Result{Stream: stream, Level: LevelAudioVideo}
	}
	if errors.Is(err, ErrPermissionDenied) {
		a.log.Warn("Media permission denied", "error", err)
		return Result{Stream: EmptyStream(), Level: LevelNone, Warning: "camera and microphone access denied; receive-only"}
	}
	a.log.Debug("Audio+video capture failed, trying audio only", "error", err)

	if stream, err = a.devices.GetUserMedia(ctx, a.constraints(false, true)); err == nil {
		return Result{Stream: stream, Level: LevelAudioOnly, Warning: "camera unavailable; audio only"}
	}
	a.log.Debug("Audio capture failed, trying video only", "error", err)

	if stream, err = a.devices.GetUserMedia(ctx, a.constraints(true, false)); err == nil {
		return Result{Stream: stream, Level: LevelVideoOnly, Warning: "microphone unavailable; video only"}
	}
	a.log.Warn("All capture attempts failed", "error", err)

	return Result{Stream: EmptyStream(), Level: LevelNone, Warning: "camera and microphone unavailable; receive-only"}
}

// SwitchFacing flips the camera. Only video is captured again: the old
// video tracks are stopped and the new one takes their place in local,
// keeping their enabled state. Audio tracks are left alone so a call keeps
// sending the same microphone. The new video track is returned so an active
// call can replace its sender.
func (a *Acquirer) SwitchFacing(ctx context.Context, local *Stream) (Track, error) {
	if a.devices == nil {
		return nil, ErrNoDevice
	}

	a.mu.Lock()
	a.facing = a.facing.Opposite()
	a.mu.Unlock()

	enabled := local.Enabled(KindVideo) || !local.HasVideo()
	for _, t := range local.TracksOf(KindVideo) {
		t.Stop()
	}

	fresh, err := a.devices.GetUserMedia(ctx, a.constraints(true, false))
	if err != nil {
		a.mu.Lock()
		a.facing = a.facing.Opposite()
		a.mu.Unlock()
		return nil, fmt.Errorf("switch camera: %w", err)
	}

	video := fresh.TracksOf(KindVideo)
	for _, t := range video {
		t.SetEnabled(enabled)
	}
	local.ReplaceTracks(KindVideo, video)
	if len(video) == 0 {
		return nil, nil
	}
	return video[0], nil
}
