package chat

import (
	"time"

	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/session"
)

// Event is something the rendering layer should reflect.
type Event interface {
	event()
}

// Notifier receives events on the manager's goroutine, in order. It must not
// block or call back into the manager synchronously.
type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type NoticeLevel string

const (
	LevelInfo  NoticeLevel = "info"
	LevelWarn  NoticeLevel = "warn"
	LevelError NoticeLevel = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Ready is emitted once the local id is registered, again after it changes.
type Ready struct {
	ID string
}

type PresenceChanged struct {
	From, To presence.Status
}

// AwaitingResponse is shown while an outbound request waits for the peer.
type AwaitingResponse struct {
	Peer string
}

type SessionOpened struct {
	Peer      string
	Direction session.Direction
	RoomID    string
}

type SessionClosed struct {
	Peer   string
	Reason string
}

// RequestReceived asks the user to accept or reject Peer.
type RequestReceived struct {
	Peer string
	At   time.Time
}

// RequestExpired retracts a RequestReceived that timed out or was withdrawn.
type RequestExpired struct {
	Peer   string
	Reason string
}

type CallDialing struct {
	Peer      string
	Reconnect bool
}

// CallRinging asks the user to answer or decline.
type CallRinging struct {
	Peer      string
	HasVideo  bool
	HasAudio  bool
	Reconnect bool
}

// Ringtone turns the ringing cue on or off.
type Ringtone struct {
	On bool
}

// StreamAttached means remote media is playing. AudioOnly is set when the
// stream has no video track or the peer declared none.
type StreamAttached struct {
	Peer      string
	AudioOnly bool
	Stream    *media.Stream
}

type CallEnded struct {
	Peer     string
	Reason   string
	Duration time.Duration
}

// File is a received or sent inline file.
type File struct {
	Name     string
	MimeType string
	Size     int64
	Kind     protocol.FileKind
	Data     []byte
}

// Message is one transcript entry.
type Message struct {
	From     string
	To       string
	Outgoing bool
	Text     string
	Link     bool
	File     *File
	RoomID   string
	At       time.Time
}

type InvitationReceived struct {
	RoomID string
	HostID string
	From   string
	Text   string
}

// RoomChanged describes the room this peer is in; an empty RoomID means none.
type RoomChanged struct {
	RoomID       string
	HostID       string
	Host         bool
	Participants []string
}

type RoomJoinRejected struct {
	Peer   string
	RoomID string
	Text   string
}

// ContactSuggested offers to save a peer after a session with them ends.
type ContactSuggested struct {
	Peer string
}

type MediaChanged struct {
	Level  media.Level
	Audio  bool
	Video  bool
	Facing media.Facing
}

func (Notice) event()             {}
func (Ready) event()              {}
func (PresenceChanged) event()    {}
func (AwaitingResponse) event()   {}
func (SessionOpened) event()      {}
func (SessionClosed) event()      {}
func (RequestReceived) event()    {}
func (RequestExpired) event()     {}
func (CallDialing) event()        {}
func (CallRinging) event()        {}
func (Ringtone) event()           {}
func (StreamAttached) event()     {}
func (CallEnded) event()          {}
func (Message) event()            {}
func (InvitationReceived) event() {}
func (RoomChanged) event()        {}
func (RoomJoinRejected) event()   {}
func (ContactSuggested) event()   {}
func (MediaChanged) event()       {}
