package webrtc

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nikelwish/p2p-service/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// link is the negotiation state of one peer connection: its id on the
// rendezvous server, and the candidates that arrived before the remote
// description did.
type link struct {
	id       string
	peer     string
	kind     string
	pc       *pion.PeerConnection
	provider *Provider
	log      *slog.Logger

	mu        sync.Mutex
	remoteSet bool
	queued    []pion.ICECandidateInit
	closed    bool
}

func newLink(p *Provider, id, peer, kind string, pc *pion.PeerConnection) *link {
	l := &link{
		id:       id,
		peer:     peer,
		kind:     kind,
		pc:       pc,
		provider: p,
		log:      p.log.With("conn", id, "peer", peer, "kind", kind),
	}
	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := l.send(signaling.MessageTypeCandidate, &signaling.Payload{Candidate: toSignalCandidate(c.ToJSON())}); err != nil {
			l.log.Debug("Dropping local candidate", "error", err)
		}
	})
	return l
}

func (l *link) send(typ string, payload *signaling.Payload) error {
	if payload == nil {
		payload = &signaling.Payload{}
	}
	payload.ConnectionID = l.id
	payload.Kind = l.kind
	return l.provider.sig.Send(&signaling.Message{Type: typ, Dst: l.peer, Payload: payload})
}

func (l *link) offer(restart bool, payload *signaling.Payload) error {
	desc, err := createOffer(l.pc, restart)
	if err != nil {
		return err
	}
	payload.SDP = &signaling.SDP{Type: desc.Type.String(), SDP: desc.SDP}
	payload.Restart = restart
	return l.send(signaling.MessageTypeOffer, payload)
}

func (l *link) answer(metadata json.RawMessage) error {
	desc, err := createAnswer(l.pc)
	if err != nil {
		return err
	}
	return l.send(signaling.MessageTypeAnswer, &signaling.Payload{SDP: &signaling.SDP{Type: desc.Type.String(), SDP: desc.SDP}, Metadata: metadata})
}

func (l *link) setRemote(typ pion.SDPType, sdp *signaling.SDP) error {
	if sdp == nil {
		return NewConnError("set remote description", l.id, ErrUnexpectedSignal)
	}
	if err := l.pc.SetRemoteDescription(pion.SessionDescription{Type: typ, SDP: sdp.SDP}); err != nil {
		return NewConnError("set remote description", l.id, err)
	}

	l.mu.Lock()
	l.remoteSet = true
	queued := l.queued
	l.queued = nil
	l.mu.Unlock()

	for _, c := range queued {
		if err := l.pc.AddICECandidate(c); err != nil {
			l.log.Debug("Queued candidate rejected", "error", err)
		}
	}
	return nil
}

func (l *link) addCandidate(c *signaling.Candidate) {
	if c == nil {
		return
	}
	init := fromSignalCandidate(c)

	l.mu.Lock()
	if !l.remoteSet {
		l.queued = append(l.queued, init)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	if err := l.pc.AddICECandidate(init); err != nil {
		l.log.Debug("Candidate rejected", "error", err)
	}
}

// shutdown closes the peer connection once, telling the remote when notify
// is set, and reports whether this call did it.
func (l *link) shutdown(notify bool) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.closed = true
	l.mu.Unlock()

	if notify {
		if err := l.send(signaling.MessageTypeLeave, nil); err != nil {
			l.log.Debug("Leave not delivered", "error", err)
		}
	}
	l.provider.forget(l.id)
	if err := l.pc.Close(); err != nil {
		l.log.Debug("Peer connection close", "error", err)
	}
	return true
}

func (l *link) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
