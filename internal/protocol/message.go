// Package protocol defines what travels over a session's data channel: system
// control messages, inline files and plain chat text.
package protocol

import (
	"regexp"
	"strings"
)

const (
	TypeSystem = "system"
	TypeFile   = "file"
)

// MaxFileSize caps an inline file transfer.
const MaxFileSize = 15 * 1024 * 1024

type Action string

const (
	ActionConnectionRequest Action = "connection_request"
	ActionAccepted          Action = "accepted"
	ActionRejected          Action = "rejected"
	ActionBusy              Action = "busy"
	ActionDisconnected      Action = "disconnected"
	ActionRoomInvitation    Action = "room_invitation"
	ActionRoomJoin          Action = "room_join"
	ActionRoomJoinRejected  Action = "room_join_rejected"
)

// Known reports whether a is part of the vocabulary this client speaks.
func (a Action) Known() bool {
	switch a {
	case ActionConnectionRequest, ActionAccepted, ActionRejected, ActionBusy,
		ActionDisconnected, ActionRoomInvitation, ActionRoomJoin, ActionRoomJoinRejected:
		return true
	}
	return false
}

// Message is one of SystemMessage, FileMessage or ChatMessage.
type Message interface {
	isMessage()
}

type SystemMessage struct {
	Type     string `msgpack:"type"`
	Action   Action `msgpack:"action"`
	Message  string `msgpack:"message,omitempty"`
	RoomID   string `msgpack:"roomId,omitempty"`
	HostID   string `msgpack:"hostId,omitempty"`
	UserID   string `msgpack:"userId,omitempty"`
	Username string `msgpack:"username,omitempty"`
}

type FileMessage struct {
	Type     string `msgpack:"type"`
	Name     string `msgpack:"name"`
	Size     int64  `msgpack:"size"`
	MimeType string `msgpack:"mimeType"`
	Data     []byte `msgpack:"data"`
}

// ChatMessage is plain text; on the wire it is a bare string.
type ChatMessage struct {
	Text string
}

func (SystemMessage) isMessage() {}
func (FileMessage) isMessage()   {}
func (ChatMessage) isMessage()   {}

func System(action Action, text string) SystemMessage {
	return SystemMessage{Type: TypeSystem, Action: action, Message: text}
}

func RoomInvitation(roomID, hostID, text string) SystemMessage {
	return SystemMessage{Type: TypeSystem, Action: ActionRoomInvitation, RoomID: roomID, HostID: hostID, Message: text}
}

func RoomJoin(roomID, userID, username string) SystemMessage {
	return SystemMessage{Type: TypeSystem, Action: ActionRoomJoin, RoomID: roomID, UserID: userID, Username: username}
}

func File(name, mimeType string, data []byte) FileMessage {
	return FileMessage{Type: TypeFile, Name: name, Size: int64(len(data)), MimeType: mimeType, Data: data}
}

// FileKind groups MIME types the way the transcript previews them.
type FileKind string

const (
	KindImage FileKind = "image"
	KindVideo FileKind = "video"
	KindFile  FileKind = "file"
)

func (f FileMessage) Kind() FileKind {
	switch {
	case strings.HasPrefix(f.MimeType, "image/"):
		return KindImage
	case strings.HasPrefix(f.MimeType, "video/"):
		return KindVideo
	}
	return KindFile
}

var linkPattern = regexp.MustCompile(`(?i)^https?://`)

// IsLink reports whether chat text is rendered as a hyperlink.
func IsLink(text string) bool {
	return linkPattern.MatchString(text)
}
