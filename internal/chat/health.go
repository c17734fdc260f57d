package chat

import (
	"errors"

	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/metrics"
	"github.com/nikelwish/p2p-service/internal/transport"
)

// startHealth schedules the playback and negotiation watchdogs.
func (m *Manager) startHealth() {
	guard := func(fn func()) func() {
		return func() {
			if !m.closed {
				fn()
			}
		}
	}
	stopPlayback := m.loop.every(m.opts.PlaybackInterval, guard(m.checkPlayback))
	stopNegotiation := m.loop.every(m.opts.NegotiationInterval, guard(m.checkNegotiation))
	m.stopHealth = func() {
		stopPlayback()
		stopNegotiation()
	}
}

// checkPlayback resumes any sink that holds a stream but stalled.
func (m *Manager) checkPlayback() {
	for _, sink := range []media.Player{m.opts.LocalSink, m.opts.RemoteSink} {
		if sink.Stream() == nil || sink.Playing() {
			continue
		}
		if err := sink.Play(); err != nil {
			m.log.Debug("Playback resume failed", "error", err)
			continue
		}
		m.opts.Metrics.Recovery(metrics.RecoveryPlay)
	}
}

// checkNegotiation unmutes stalled remote tracks and repairs a dropped media
// path: ICE restart first, a fresh call when restart is not possible.
func (m *Manager) checkNegotiation() {
	c := m.call
	if c == nil || c.state == callRinging {
		return
	}

	if c.remote != nil {
		for _, t := range c.remote.Tracks() {
			if !t.Muted() {
				continue
			}
			if r, ok := t.(media.Resumer); ok {
				_ = r.Resume()
			}
			t.SetEnabled(true)
			m.opts.Metrics.Recovery(metrics.RecoveryUnmute)
		}
	}

	st := c.mc.State()
	if !st.Broken() {
		return
	}
	m.log.Warn("Media path broken", "peer", c.peer, "ice", st.ICE, "connection", st.Connection)
	m.notice(LevelWarn, "connection to %s lost, reconnecting", m.displayName(c.peer))

	err := c.mc.RestartICE()
	if err == nil {
		m.opts.Metrics.Recovery(metrics.RecoveryRestart)
		return
	}
	if !errors.Is(err, transport.ErrRestartUnsupported) {
		m.log.Warn("ICE restart failed", "peer", c.peer, "error", err)
	}

	peer := c.peer
	if s := m.registry.Current(); s.Active() {
		peer = s.Peer
	}
	m.endCall(c, "reconnecting", true)

	gen := m.gen
	m.loop.after(m.opts.RedialDelay, func() {
		if gen != m.gen || m.closed || m.call != nil {
			return
		}
		if err := m.dial(peer, true); err != nil {
			m.notice(LevelError, "could not reconnect to %s: %v", m.displayName(peer), err)
			return
		}
		m.opts.Metrics.Recovery(metrics.RecoveryRedial)
	})
}
