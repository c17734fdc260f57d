package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/contacts"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	// busy makes Connect and StartCall refuse unless replace is set.
	busy bool
}

func (f *fakeBackend) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ID() string { return "alice" }

func (f *fakeBackend) Connect(peer string, replace bool) error {
	f.record("connect %s %t", peer, replace)
	if f.busy && !replace {
		return chat.NewPeerError("connect", peer, chat.ErrSessionActive)
	}
	return nil
}

func (f *fakeBackend) Disconnect() error { f.record("disconnect"); return nil }
func (f *fakeBackend) Accept(peer string) error {
	f.record("accept %s", peer)
	return nil
}
func (f *fakeBackend) AcceptAndAdd(peer, name string) error {
	f.record("accept+add %s %s", peer, name)
	return nil
}
func (f *fakeBackend) Reject(peer string) error { f.record("reject %s", peer); return nil }

func (f *fakeBackend) StartCall(peer string, replace bool) error {
	f.record("call %s %t", peer, replace)
	if f.busy && !replace {
		return chat.NewError("start call", chat.ErrCallActive)
	}
	return nil
}

func (f *fakeBackend) Answer() error  { f.record("answer"); return nil }
func (f *fakeBackend) Decline() error { f.record("decline"); return nil }
func (f *fakeBackend) Hangup() error  { f.record("hangup"); return nil }

func (f *fakeBackend) ToggleAudio() (bool, error) { f.record("mute"); return false, nil }
func (f *fakeBackend) ToggleVideo() (bool, error) { f.record("video"); return true, nil }
func (f *fakeBackend) SwitchCamera(context.Context) error {
	f.record("flip")
	return nil
}

func (f *fakeBackend) SendText(text string) error {
	f.record("say %s", text)
	return nil
}

func (f *fakeBackend) SendFile(path string) error {
	f.record("file %s", path)
	return nil
}

func (f *fakeBackend) CreateRoom() (string, error) { f.record("room"); return "r1", nil }
func (f *fakeBackend) Invite(peers []string) error {
	f.record("invite %s", strings.Join(peers, ","))
	return nil
}
func (f *fakeBackend) AcceptInvitation(roomID string) error {
	f.record("join %s", roomID)
	return nil
}
func (f *fakeBackend) DeclineInvitation(roomID string) error {
	f.record("refuse %s", roomID)
	return nil
}
func (f *fakeBackend) LeaveRoom() error { f.record("leave"); return nil }

func (f *fakeBackend) SetPresence(status presence.Status) error {
	f.record("presence %s", status)
	return nil
}

func (f *fakeBackend) ChangeIdentity(_ context.Context, id string) error {
	f.record("id %s", id)
	return nil
}

func (f *fakeBackend) AddContact(peer, name string) (contacts.Contact, error) {
	f.record("add %s %s", peer, name)
	return contacts.Contact{PeerID: peer, DisplayName: name}, nil
}

func (f *fakeBackend) Snapshot() chat.Snapshot {
	return chat.Snapshot{ID: "alice", Presence: presence.Available}
}

type fakeBook map[string]contacts.Contact

func (b fakeBook) Get(peer string) (contacts.Contact, bool) {
	c, ok := b[peer]
	return c, ok
}

func (b fakeBook) List() []contacts.Contact {
	var out []contacts.Contact
	for _, c := range b {
		out = append(out, c)
	}
	return out
}

func newTestConsole(t *testing.T) (*Console, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	c := NewConsole(ConsoleOptions{
		Backend:     backend,
		Contacts:    fakeBook{"bob": {PeerID: "bob", DisplayName: "Bob"}},
		DownloadDir: t.TempDir(),
	})
	c.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	return c, backend
}

// submit types line, presses enter and feeds the command result back.
func submit(c *Console, line string) {
	c.input.SetValue(line)
	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		c.Update(cmd())
	}
}

func lastLine(c *Console) string {
	lines := c.Transcript()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func TestConsoleSendsText(t *testing.T) {
	c, backend := newTestConsole(t)
	submit(c, "hello there")
	assert.Equal(t, []string{"say hello there"}, backend.Calls())
	assert.Empty(t, c.input.Value())
}

func TestConsoleDispatchesCommands(t *testing.T) {
	c, backend := newTestConsole(t)
	for _, line := range []string{
		"/disconnect", "/add carol Carol C", "/answer", "/decline", "/hangup",
		"/mute", "/video", "/flip", "/file /tmp/a b.txt", "/room", "/invite bob carol",
		"/leave", "/away", "/back", "/id newname",
	} {
		submit(c, line)
	}
	assert.Equal(t, []string{
		"disconnect", "add carol Carol C", "answer", "decline", "hangup",
		"mute", "video", "flip", "file /tmp/a b.txt", "room", "invite bob,carol",
		"leave", "presence away", "presence available", "id newname",
	}, backend.Calls())
}

func TestConsoleAcceptsNewestRequest(t *testing.T) {
	c, backend := newTestConsole(t)
	c.Update(EventMsg{Event: chat.RequestReceived{Peer: "carol"}})
	c.Update(EventMsg{Event: chat.RequestReceived{Peer: "dave"}})
	c.Update(EventMsg{Event: chat.RequestExpired{Peer: "dave", Reason: "timed out"}})

	submit(c, "/accept")
	submit(c, "/accept erin Erin")
	assert.Equal(t, []string{"accept carol", "accept+add erin Erin"}, backend.Calls())
}

func TestConsoleJoinsNewestInvitation(t *testing.T) {
	c, backend := newTestConsole(t)
	c.Update(EventMsg{Event: chat.InvitationReceived{RoomID: "r1", HostID: "bob", From: "bob"}})
	submit(c, "/join")
	c.Update(EventMsg{Event: chat.InvitationReceived{RoomID: "r2", HostID: "bob", From: "bob"}})
	submit(c, "/refuse")
	assert.Equal(t, []string{"join r1", "refuse r2"}, backend.Calls())
}

func TestConsoleConfirmsReplacement(t *testing.T) {
	c, backend := newTestConsole(t)
	backend.busy = true

	submit(c, "/connect carol")
	require.NotNil(t, c.confirm)
	assert.Contains(t, lastLine(c), "(y/n)")

	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	require.NotNil(t, cmd)
	c.Update(cmd())
	assert.Nil(t, c.confirm)
	assert.Equal(t, []string{"connect carol false", "connect carol true"}, backend.Calls())

	submit(c, "/call")
	require.NotNil(t, c.confirm)
	_, cmd = c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	assert.Nil(t, cmd)
	assert.Contains(t, lastLine(c), "Kept the current conversation")
	assert.Equal(t, "call  false", backend.Calls()[2])
	assert.Len(t, backend.Calls(), 3)
}

func TestConsoleReportsParseErrors(t *testing.T) {
	c, backend := newTestConsole(t)
	submit(c, "/teleport")
	assert.Contains(t, lastLine(c), "unknown command")
	submit(c, "   ")
	assert.Empty(t, backend.Calls())
}

func TestConsoleTracksState(t *testing.T) {
	c, _ := newTestConsole(t)
	c.Update(EventMsg{Event: chat.Ready{ID: "alice"}})
	c.Update(EventMsg{Event: chat.SessionOpened{Peer: "bob"}})
	c.Update(EventMsg{Event: chat.CallRinging{Peer: "bob", HasAudio: true}})
	c.Update(EventMsg{Event: chat.Ringtone{On: true}})

	header := c.header()
	assert.Contains(t, header, "alice")
	assert.Contains(t, header, "Bob")
	assert.Contains(t, header, IconRinging)

	c.Update(EventMsg{Event: chat.CallEnded{Peer: "bob", Reason: "declined"}})
	c.Update(EventMsg{Event: chat.Ringtone{On: false}})
	c.Update(EventMsg{Event: chat.SessionClosed{Peer: "bob", Reason: "peer disconnected"}})
	assert.NotContains(t, c.header(), "Bob")
	assert.Contains(t, lastLine(c), "peer disconnected")
}

func TestConsoleLocalViews(t *testing.T) {
	c, backend := newTestConsole(t)
	c.Update(EventMsg{Event: chat.Ready{ID: "alice"}})

	submit(c, "/id")
	assert.Contains(t, lastLine(c), "alice")
	submit(c, "/contacts")
	assert.Contains(t, lastLine(c), "Bob")
	submit(c, "/help")
	assert.Contains(t, lastLine(c), "/connect <id>")
	submit(c, "/status")
	assert.Contains(t, lastLine(c), "Status")
	assert.Empty(t, backend.Calls())
}

func TestConsoleSavesIncomingFiles(t *testing.T) {
	c, _ := newTestConsole(t)
	msg := chat.Message{From: "bob", File: &chat.File{
		Name: "note.txt", MimeType: "text/plain", Size: 5, Kind: protocol.KindFile, Data: []byte("hello"),
	}}

	result := c.saveFile(msg)().(resultMsg)
	require.NoError(t, result.err)

	data, err := os.ReadFile(filepath.Join(c.downloadDir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestConsoleQuit(t *testing.T) {
	c, _ := newTestConsole(t)
	c.input.SetValue("/quit")
	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, c.View())
	assert.Error(t, c.ctx.Err())
}
