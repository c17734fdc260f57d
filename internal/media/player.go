package media

import "sync"

// Player is a playback sink for one stream.
type Player interface {
	Attach(s *Stream)
	Detach()
	Stream() *Stream
	Playing() bool
	Play() error
}

// Resumer is implemented by tracks that can be told to resume delivery.
type Resumer interface {
	Resume() error
}

// Sink is a headless Player. It counts as playing while at least one attached
// track is enabled and not muted.
type Sink struct {
	mu     sync.Mutex
	stream *Stream
}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Attach(stream *Stream) {
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
}

func (s *Sink) Detach() {
	s.mu.Lock()
	s.stream = nil
	s.mu.Unlock()
}

func (s *Sink) Stream() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *Sink) Playing() bool {
	stream := s.Stream()
	if stream == nil {
		return false
	}
	for _, t := range stream.Tracks() {
		if t.Enabled() && !t.Muted() {
			return true
		}
	}
	return stream.Empty()
}

// Play asks every track that supports it to resume.
func (s *Sink) Play() error {
	stream := s.Stream()
	if stream == nil {
		return nil
	}
	var firstErr error
	for _, t := range stream.Tracks() {
		if r, ok := t.(Resumer); ok {
			if err := r.Resume(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
