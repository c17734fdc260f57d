package webrtc

import (
	"log/slog"
	"time"

	"github.com/nikelwish/p2p-service/internal/config"
	"github.com/nikelwish/p2p-service/internal/signaling"
	"github.com/nikelwish/p2p-service/internal/utils"
	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"
)

// ICE timeouts are longer than pion's defaults so a short relay hiccup shows
// up as "disconnected" to the health monitor before it becomes "failed".
const (
	iceDisconnectedTimeout = 8 * time.Second
	iceFailedTimeout       = 30 * time.Second
	iceKeepalive           = 2 * time.Second
)

// Factory builds peer connections sharing one media engine and ICE setup.
type Factory struct {
	cfg *config.Config
	api *pion.API
	log *slog.Logger
}

func NewFactory(cfg *config.Config, log *slog.Logger) (*Factory, error) {
	if log == nil {
		log = slog.Default()
	}

	mediaEngine := &pion.MediaEngine{}
	if err := registerCodecs(mediaEngine); err != nil {
		return nil, NewError("register codecs", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, NewError("register interceptors", err)
	}

	se := pion.SettingEngine{}
	se.SetICETimeouts(iceDisconnectedTimeout, iceFailedTimeout, iceKeepalive)

	api := pion.NewAPI(
		pion.WithMediaEngine(mediaEngine),
		pion.WithInterceptorRegistry(interceptorRegistry),
		pion.WithSettingEngine(se),
	)
	return &Factory{cfg: cfg, api: api, log: log}, nil
}

// Configuration is the ICE setup every connection uses.
func (f *Factory) Configuration() pion.Configuration {
	return iceConfiguration(f.cfg, utils.ShouldForceRelay())
}

func iceConfiguration(cfg *config.Config, relayHint bool) pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || relayHint) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

func (f *Factory) NewPeerConnection() (*pion.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.Configuration())
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

func createOffer(pc *pion.PeerConnection, restart bool) (*pion.SessionDescription, error) {
	var opts *pion.OfferOptions
	if restart {
		opts = &pion.OfferOptions{ICERestart: true}
	}
	offer, err := pc.CreateOffer(opts)
	if err != nil {
		return nil, NewError("create offer", err)
	}
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, NewError("set local description", err)
	}
	return pc.LocalDescription(), nil
}

func createAnswer(pc *pion.PeerConnection) (*pion.SessionDescription, error) {
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, NewError("create answer", err)
	}
	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, NewError("set local description", err)
	}
	return pc.LocalDescription(), nil
}

func toSignalCandidate(c pion.ICECandidateInit) *signaling.Candidate {
	return &signaling.Candidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromSignalCandidate(c *signaling.Candidate) pion.ICECandidateInit {
	return pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
