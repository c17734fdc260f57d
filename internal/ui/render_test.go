package ui

import (
	"testing"
	"time"

	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func names(peer string) string {
	if peer == "bob" {
		return "Bob"
	}
	return peer
}

func TestRenderMessages(t *testing.T) {
	at := time.Date(2026, 1, 2, 9, 30, 0, 0, time.Local)

	line := RenderEvent(chat.Message{From: "bob", Text: "hi", At: at}, names)
	assert.Contains(t, line, "09:30")
	assert.Contains(t, line, "Bob")
	assert.Contains(t, line, "hi")

	line = RenderEvent(chat.Message{From: "alice", Outgoing: true, Text: "https://example.com", Link: true, At: at}, names)
	assert.Contains(t, line, "you")
	assert.Contains(t, line, "https://example.com")

	line = RenderEvent(chat.Message{From: "bob", At: at, File: &chat.File{
		Name: "cat.png", Size: 2048, Kind: protocol.KindImage,
	}}, names)
	assert.Contains(t, line, IconImage)
	assert.Contains(t, line, "cat.png")
	assert.Contains(t, line, "2.00 KB")
}

func TestRenderPrompts(t *testing.T) {
	assert.Contains(t, RenderEvent(chat.RequestReceived{Peer: "bob"}, names), "/accept bob")
	assert.Contains(t, RenderEvent(chat.CallRinging{Peer: "bob", HasAudio: true}, names), "audio call from Bob")
	assert.Contains(t, RenderEvent(chat.CallRinging{Peer: "bob", HasVideo: true}, names), "video call")
	assert.Contains(t, RenderEvent(chat.InvitationReceived{RoomID: "r1", From: "bob"}, names), "/join r1")
	assert.Contains(t, RenderEvent(chat.ContactSuggested{Peer: "carol"}, names), "/add carol")
}

func TestRenderCallLifecycle(t *testing.T) {
	assert.Contains(t, RenderEvent(chat.CallDialing{Peer: "bob", Reconnect: true}, names), "Reconnecting")
	assert.Contains(t, RenderEvent(chat.StreamAttached{Peer: "bob", AudioOnly: true}, names), "audio call with Bob")

	line := RenderEvent(chat.CallEnded{Peer: "bob", Reason: "hung up", Duration: 75 * time.Second}, names)
	assert.Contains(t, line, "1:15")
	assert.Contains(t, line, "hung up")
}

func TestRenderRoomAndNotices(t *testing.T) {
	line := RenderEvent(chat.RoomChanged{RoomID: "abc", Participants: []string{"alice", "bob"}}, names)
	assert.Contains(t, line, "abc")
	assert.Contains(t, line, "alice, Bob")
	assert.Contains(t, RenderEvent(chat.RoomChanged{}, names), "Not in a room")

	assert.Contains(t, RenderEvent(chat.Notice{Level: chat.LevelError, Text: "boom"}, names), "boom")
	assert.Contains(t, RenderEvent(chat.Notice{Level: chat.LevelWarn, Text: "careful"}, names), IconWarning)
}

func TestRenderSilentEvents(t *testing.T) {
	assert.Empty(t, RenderEvent(chat.Ringtone{On: true}, names))
	assert.Contains(t, RenderEvent(chat.SessionOpened{Peer: "carol"}, nil), "carol")
}
