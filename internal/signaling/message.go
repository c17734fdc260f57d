package signaling

import "encoding/json"

// Message is one frame exchanged with a PeerJS server. Offers, answers and
// candidates are relayed from Src to Dst untouched.
type Message struct {
	Type    string   `json:"type"`
	Src     string   `json:"src,omitempty"`
	Dst     string   `json:"dst,omitempty"`
	Payload *Payload `json:"payload,omitempty"`
}

// Message type constants.
const (
	MessageTypeOffer     = "OFFER"
	MessageTypeAnswer    = "ANSWER"
	MessageTypeCandidate = "CANDIDATE"
	MessageTypeLeave     = "LEAVE"
	MessageTypeHeartbeat = "HEARTBEAT"

	MessageTypeOpen       = "OPEN"
	MessageTypeIDTaken    = "ID-TAKEN"
	MessageTypeInvalidKey = "INVALID-KEY"
	MessageTypeExpire     = "EXPIRE"
	MessageTypeError      = "ERROR"
)

// Connection kinds carried in an offer.
const (
	KindData  = "data"
	KindMedia = "media"
)

// Payload describes one peer connection's negotiation step. Server errors
// only fill Msg.
type Payload struct {
	ConnectionID string          `json:"connectionId,omitempty"`
	Kind         string          `json:"type,omitempty"`
	SDP          *SDP            `json:"sdp,omitempty"`
	Candidate    *Candidate      `json:"candidate,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Label        string          `json:"label,omitempty"`
	Reliable     bool            `json:"reliable,omitempty"`
	Restart      bool            `json:"restart,omitempty"`
	Msg          string          `json:"msg,omitempty"`
}

// SDP is a session description as PeerJS clients exchange it.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate mirrors an ICE candidate init.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}
