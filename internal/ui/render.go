package ui

import (
	"fmt"
	"strings"

	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/utils"
)

// NameFunc resolves a peer id to what the transcript shows for it.
type NameFunc func(peer string) string

// RenderEvent formats e as transcript text. Events with nothing to show,
// like the ringtone cue, render as "".
func RenderEvent(e chat.Event, name NameFunc) string {
	if name == nil {
		name = func(peer string) string { return peer }
	}

	switch ev := e.(type) {
	case chat.Notice:
		return renderNotice(ev)
	case chat.Ready:
		return fmt.Sprintf("%s Registered as %s", IconSuccess, BoldStyle.Render(ev.ID))
	case chat.PresenceChanged:
		return MutedStyle.Render(fmt.Sprintf("%s Presence %s → %s", IconPresence, ev.From, ev.To))
	case chat.AwaitingResponse:
		return fmt.Sprintf("%s Waiting for %s to respond...", IconWaiting, name(ev.Peer))
	case chat.SessionOpened:
		if ev.RoomID != "" {
			return SuccessStyle.Render(fmt.Sprintf("%s Joined room %s hosted by %s", IconRoom, ev.RoomID, name(ev.Peer)))
		}
		return SuccessStyle.Render(fmt.Sprintf("%s Connected to %s", IconConnect, name(ev.Peer)))
	case chat.SessionClosed:
		return WarningStyle.Render(fmt.Sprintf("%s Session with %s ended: %s", IconConnect, name(ev.Peer), ev.Reason))
	case chat.RequestReceived:
		return PromptBoxStyle.Render(fmt.Sprintf("%s %s wants to chat. /accept %s or /reject %s",
			IconPeer, name(ev.Peer), ev.Peer, ev.Peer))
	case chat.RequestExpired:
		return MutedStyle.Render(fmt.Sprintf("Request from %s withdrawn: %s", name(ev.Peer), ev.Reason))
	case chat.CallDialing:
		if ev.Reconnect {
			return fmt.Sprintf("%s Reconnecting call with %s...", IconCall, name(ev.Peer))
		}
		return fmt.Sprintf("%s Calling %s...", IconCall, name(ev.Peer))
	case chat.CallRinging:
		kind := "video"
		if !ev.HasVideo {
			kind = "audio"
		}
		return PromptBoxStyle.Render(fmt.Sprintf("%s Incoming %s call from %s. /answer or /decline",
			IconRinging, kind, name(ev.Peer)))
	case chat.StreamAttached:
		if ev.AudioOnly {
			return SuccessStyle.Render(fmt.Sprintf("%s In an audio call with %s", IconMic, name(ev.Peer)))
		}
		return SuccessStyle.Render(fmt.Sprintf("%s In a video call with %s", IconCamera, name(ev.Peer)))
	case chat.CallEnded:
		text := fmt.Sprintf("%s Call with %s ended", IconHangup, name(ev.Peer))
		if ev.Duration > 0 {
			text += " after " + utils.FormatDuration(ev.Duration)
		}
		if ev.Reason != "" {
			text += ": " + ev.Reason
		}
		return WarningStyle.Render(text)
	case chat.Message:
		return renderMessage(ev, name)
	case chat.InvitationReceived:
		text := fmt.Sprintf("%s %s invited you to room %s. /join %s or /refuse %s",
			IconRoom, name(ev.From), ev.RoomID, ev.RoomID, ev.RoomID)
		if ev.Text != "" {
			text += "\n" + ev.Text
		}
		return PromptBoxStyle.Render(text)
	case chat.RoomChanged:
		if ev.RoomID == "" {
			return MutedStyle.Render(IconRoom + " Not in a room")
		}
		names := make([]string, 0, len(ev.Participants))
		for _, p := range ev.Participants {
			names = append(names, name(p))
		}
		return fmt.Sprintf("%s Room %s: %s", IconRoom, BoldStyle.Render(ev.RoomID), strings.Join(names, ", "))
	case chat.RoomJoinRejected:
		return WarningStyle.Render(fmt.Sprintf("%s %s declined room %s", IconRoom, name(ev.Peer), ev.RoomID))
	case chat.ContactSuggested:
		return MutedStyle.Render(fmt.Sprintf("%s Save %s? /add %s <name>", IconContact, ev.Peer, ev.Peer))
	case chat.MediaChanged:
		return MutedStyle.Render(fmt.Sprintf("%s %s  %s %s  %s %s", IconCamera, ev.Level,
			IconMic, onOff(ev.Audio), IconCamera, onOff(ev.Video)))
	}
	return ""
}

func renderNotice(n chat.Notice) string {
	switch n.Level {
	case chat.LevelError:
		return ErrorStyle.Render(IconError + " " + n.Text)
	case chat.LevelWarn:
		return WarningStyle.Render(IconWarning + " " + n.Text)
	}
	return IconInfo + " " + n.Text
}

func renderMessage(msg chat.Message, name NameFunc) string {
	stamp := TimeStyle.Render(msg.At.Local().Format("15:04"))
	who := PeerStyle.Render(name(msg.From))
	if msg.Outgoing {
		who = SelfStyle.Render("you")
	}

	var body string
	switch {
	case msg.File != nil:
		body = fmt.Sprintf("%s %s (%s)", fileIcon(msg.File.Kind), msg.File.Name, utils.FormatSize(msg.File.Size))
	case msg.Link:
		body = LinkStyle.Render(msg.Text)
	default:
		body = msg.Text
	}
	return fmt.Sprintf("%s %s: %s", stamp, who, body)
}

func fileIcon(kind protocol.FileKind) string {
	switch kind {
	case protocol.KindImage:
		return IconImage
	case protocol.KindVideo:
		return IconVideo
	}
	return IconFile
}
