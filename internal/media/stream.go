// Package media models local and remote media streams and how the local one
// is acquired from capture devices.
package media

import (
	"sync"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is a single audio or video track. Disabling a track keeps it in the
// stream but stops it from carrying data.
type Track interface {
	ID() string
	Kind() Kind
	Enabled() bool
	SetEnabled(enabled bool)
	// Muted reports that no media is arriving on a remote track.
	Muted() bool
	Stop()
}

// Stream is a set of tracks shared by reference. The local stream is the same
// object everywhere it is used, so enabling, disabling or replacing a track
// is seen by every call that carries it.
type Stream struct {
	id string

	mu     sync.RWMutex
	tracks []Track
}

func NewStream(tracks ...Track) *Stream {
	return &Stream{id: uuid.NewString(), tracks: tracks}
}

// EmptyStream contributes no tracks but still lets a call be placed or
// answered in receive-only mode.
func EmptyStream() *Stream {
	return NewStream()
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Tracks() []Track {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) TracksOf(kind Kind) []Track {
	var out []Track
	for _, t := range s.Tracks() {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

func (s *Stream) HasVideo() bool { return len(s.TracksOf(KindVideo)) > 0 }
func (s *Stream) HasAudio() bool { return len(s.TracksOf(KindAudio)) > 0 }
func (s *Stream) Empty() bool    { return len(s.Tracks()) == 0 }

func (s *Stream) AddTrack(t Track) {
	s.mu.Lock()
	s.tracks = append(s.tracks, t)
	s.mu.Unlock()
}

// ReplaceTracks swaps every track of kind for the given ones and returns the
// tracks that were removed. Removed tracks are not stopped.
func (s *Stream) ReplaceTracks(kind Kind, tracks []Track) []Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept, removed []Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	s.tracks = append(kept, tracks...)
	return removed
}

// SetEnabled toggles every track of kind and reports whether any was found.
func (s *Stream) SetEnabled(kind Kind, enabled bool) bool {
	tracks := s.TracksOf(kind)
	for _, t := range tracks {
		t.SetEnabled(enabled)
	}
	return len(tracks) > 0
}

// Enabled reports whether any track of kind is enabled.
func (s *Stream) Enabled(kind Kind) bool {
	for _, t := range s.TracksOf(kind) {
		if t.Enabled() {
			return true
		}
	}
	return false
}

func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
