package media

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied means the user or OS refused capture access.
	ErrPermissionDenied = errors.New("media permission denied")
	ErrNoDevice         = errors.New("no matching capture device")
)

type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

func (f Facing) Opposite() Facing {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

type DeviceInfo struct {
	ID    string
	Label string
	Kind  Kind
}

type VideoConstraints struct {
	Facing    Facing
	Width     int
	Height    int
	FrameRate float32
}

type AudioConstraints struct {
	EchoCancellation bool
}

// Constraints asks for video, audio or both. A nil member is not requested.
type Constraints struct {
	Video *VideoConstraints
	Audio *AudioConstraints
}

// Devices is the capture backend.
type Devices interface {
	Enumerate(ctx context.Context) ([]DeviceInfo, error)
	GetUserMedia(ctx context.Context, c Constraints) (*Stream, error)
}
