//go:build linux

package webrtc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	pion "github.com/pion/webrtc/v4"
)

var (
	selectorOnce sync.Once
	selector     *mediadevices.CodecSelector
	selectorErr  error
)

// codecSelector encodes captured video as VP8 and audio as Opus.
func codecSelector() (*mediadevices.CodecSelector, error) {
	selectorOnce.Do(func() {
		vpxParams, err := vpx.NewVP8Params()
		if err != nil {
			selectorErr = err
			return
		}
		vpxParams.BitRate = 1_500_000

		opusParams, err := opus.NewParams()
		if err != nil {
			selectorErr = err
			return
		}

		selector = mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		)
	})
	return selector, selectorErr
}

func registerCodecs(me *pion.MediaEngine) error {
	sel, err := codecSelector()
	if err != nil {
		return me.RegisterDefaultCodecs()
	}
	sel.Populate(me)
	return nil
}

// captureDevices reads cameras and microphones through V4L2 and malgo.
type captureDevices struct {
	log *slog.Logger
}

// NewDevices returns the platform capture backend.
func NewDevices(log *slog.Logger) media.Devices {
	if log == nil {
		log = slog.Default()
	}
	return &captureDevices{log: log}
}

func (d *captureDevices) Enumerate(context.Context) ([]media.DeviceInfo, error) {
	var out []media.DeviceInfo
	for _, dev := range mediadevices.EnumerateDevices() {
		switch dev.Kind {
		case mediadevices.VideoInput:
			out = append(out, media.DeviceInfo{ID: dev.DeviceID, Label: dev.Label, Kind: media.KindVideo})
		case mediadevices.AudioInput:
			out = append(out, media.DeviceInfo{ID: dev.DeviceID, Label: dev.Label, Kind: media.KindAudio})
		}
	}
	return out, nil
}

// cameraFor maps a facing mode onto the attached cameras: the first one is
// taken as the user facing camera, the second as the environment one.
func (d *captureDevices) cameraFor(ctx context.Context, facing media.Facing) string {
	infos, _ := d.Enumerate(ctx)
	var cams []string
	for _, info := range infos {
		if info.Kind == media.KindVideo {
			cams = append(cams, info.ID)
		}
	}
	switch {
	case len(cams) == 0:
		return ""
	case facing == media.FacingEnvironment && len(cams) > 1:
		return cams[1]
	default:
		return cams[0]
	}
}

func (d *captureDevices) GetUserMedia(ctx context.Context, c media.Constraints) (*media.Stream, error) {
	sel, err := codecSelector()
	if err != nil {
		return nil, fmt.Errorf("codec setup: %w", err)
	}

	constraints := mediadevices.MediaStreamConstraints{Codec: sel}
	if v := c.Video; v != nil {
		camera := d.cameraFor(ctx, v.Facing)
		constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
			if camera != "" {
				mc.DeviceID = prop.String(camera)
			}
			// Raw formats only; MJPEG nodes on some cameras poison the encoder.
			mc.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			if v.Width > 0 {
				mc.Width = prop.IntRanged{Max: v.Width, Ideal: v.Width}
			}
			if v.Height > 0 {
				mc.Height = prop.IntRanged{Max: v.Height, Ideal: v.Height}
			}
			if v.FrameRate > 0 {
				mc.FrameRate = prop.Float(v.FrameRate)
			}
		}
	}
	if c.Audio != nil {
		// Echo cancellation is left to the capture driver.
		constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, classify(err)
	}

	tracks := stream.GetTracks()
	out := make([]media.Track, 0, len(tracks))
	for _, t := range tracks {
		t.OnEnded(func(err error) {
			if err != nil {
				d.log.Debug("Local track ended", "kind", t.Kind().String(), "error", err)
			}
		})
		out = append(out, NewLocalTrack(t, t.Close))
	}
	return media.NewStream(out...), nil
}

func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not permitted") {
		return fmt.Errorf("%w: %v", media.ErrPermissionDenied, err)
	}
	if strings.Contains(msg, "not found") || strings.Contains(msg, "no driver") {
		return fmt.Errorf("%w: %v", media.ErrNoDevice, err)
	}
	return err
}
