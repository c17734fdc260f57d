package chat

import (
	"context"

	"github.com/nikelwish/p2p-service/internal/media"
)

func (m *Manager) mediaState() MediaChanged {
	st := MediaChanged{Level: m.level, Facing: media.FacingUser}
	if m.opts.Acquirer != nil {
		st.Facing = m.opts.Acquirer.Facing()
	}
	if m.local != nil {
		st.Audio = m.local.HasAudio() && m.local.Enabled(media.KindAudio)
		st.Video = m.local.HasVideo() && m.local.Enabled(media.KindVideo)
	}
	return st
}

func (m *Manager) toggle(op string, kind media.Kind) (bool, error) {
	var enabled bool
	err := m.loop.call(func() error {
		if m.local == nil || len(m.local.TracksOf(kind)) == 0 {
			return NewError(op, ErrNoLocalMedia)
		}
		enabled = !m.local.Enabled(kind)
		m.local.SetEnabled(kind, enabled)
		m.emit(m.mediaState())
		return nil
	})
	return enabled, err
}

// ToggleAudio mutes or unmutes the microphone and reports the new state.
func (m *Manager) ToggleAudio() (bool, error) {
	return m.toggle("toggle audio", media.KindAudio)
}

// ToggleVideo turns the camera off or on and reports the new state.
func (m *Manager) ToggleVideo() (bool, error) {
	return m.toggle("toggle video", media.KindVideo)
}

// SwitchCamera flips between the front and back camera and swaps the new
// track into an active call.
func (m *Manager) SwitchCamera(ctx context.Context) error {
	var local *media.Stream
	err := m.loop.call(func() error {
		if !m.started {
			return ErrNotStarted
		}
		if m.local == nil || m.opts.Acquirer == nil {
			return NewError("switch camera", ErrNoLocalMedia)
		}
		local = m.local
		return nil
	})
	if err != nil {
		return err
	}

	track, switchErr := m.opts.Acquirer.SwitchFacing(ctx, local)
	return m.loop.call(func() error {
		defer m.emit(m.mediaState())
		if switchErr != nil {
			m.notice(LevelError, "could not switch camera: %v", switchErr)
			return NewError("switch camera", switchErr)
		}
		if track == nil || m.call == nil || m.call.state != callActive {
			return nil
		}
		if err := m.call.mc.ReplaceVideoTrack(track); err != nil {
			return NewPeerError("switch camera", m.call.peer, err)
		}
		return nil
	})
}
