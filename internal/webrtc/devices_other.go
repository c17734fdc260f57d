//go:build !linux

package webrtc

import (
	"context"
	"log/slog"

	"github.com/nikelwish/p2p-service/internal/media"
	pion "github.com/pion/webrtc/v4"
)

func registerCodecs(me *pion.MediaEngine) error {
	return me.RegisterDefaultCodecs()
}

// noDevices reports no capture hardware; calls run receive-only.
type noDevices struct{}

// NewDevices returns the platform capture backend.
func NewDevices(*slog.Logger) media.Devices {
	return noDevices{}
}

func (noDevices) Enumerate(context.Context) ([]media.DeviceInfo, error) {
	return nil, nil
}

func (noDevices) GetUserMedia(context.Context, media.Constraints) (*media.Stream, error) {
	return nil, media.ErrNoDevice
}
