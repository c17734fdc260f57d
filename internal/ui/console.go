package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/contacts"
	"github.com/nikelwish/p2p-service/internal/files"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/protocol"
)

// Backend is the part of the chat manager the console drives. Every method
// may block, so the console only calls them from commands.
type Backend interface {
	ID() string
	Connect(peer string, replace bool) error
	Disconnect() error
	Accept(peer string) error
	AcceptAndAdd(peer, name string) error
	Reject(peer string) error
	StartCall(peer string, replace bool) error
	Answer() error
	Decline() error
	Hangup() error
	ToggleAudio() (bool, error)
	ToggleVideo() (bool, error)
	SwitchCamera(ctx context.Context) error
	SendText(text string) error
	SendFile(path string) error
	CreateRoom() (string, error)
	Invite(peers []string) error
	AcceptInvitation(roomID string) error
	DeclineInvitation(roomID string) error
	LeaveRoom() error
	SetPresence(status presence.Status) error
	ChangeIdentity(ctx context.Context, id string) error
	AddContact(peer, name string) (contacts.Contact, error)
	Snapshot() chat.Snapshot
}

// ContactList is the read side of the address book.
type ContactList interface {
	Get(peer string) (contacts.Contact, bool)
	List() []contacts.Contact
}

type ConsoleOptions struct {
	Backend     Backend
	Contacts    ContactList
	DownloadDir string
	Logger      *slog.Logger
	// Now is overridable for tests.
	Now func() time.Time
}

// resultMsg is the outcome of a backend command.
type resultMsg struct {
	text string
	err  error
}

// confirmMsg asks before replacing the current session or call.
type confirmMsg struct {
	prompt string
	run    func() tea.Cmd
}

// Console is the interactive chat screen: a transcript viewport above a
// single input line.
type Console struct {
	backend     Backend
	book        ContactList
	downloadDir string
	log         *slog.Logger
	now         func() time.Time
	ctx         context.Context
	cancel      context.CancelFunc

	input    textinput.Model
	view     viewport.Model
	lines    []string
	width    int
	ready    bool
	quitting bool

	id       string
	presence presence.Status
	session  string
	call     string
	ringing  bool
	room     string

	// pending and invitations are newest last; bare /accept and /join
	// act on the newest.
	pending     []string
	invitations []string
	confirm     *confirmMsg
}

func NewConsole(opts ConsoleOptions) *Console {
	ti := textinput.New()
	ti.Placeholder = "Type a message or /help"
	ti.Prompt = "› "
	ti.CharLimit = 4096
	ti.Focus()

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Console{
		backend:     opts.Backend,
		book:        opts.Contacts,
		downloadDir: opts.DownloadDir,
		log:         log.With("component", "console"),
		now:         now,
		ctx:         ctx,
		cancel:      cancel,
		input:       ti,
		view:        viewport.New(80, 20),
		presence:    presence.Available,
	}
}

func (c *Console) Init() tea.Cmd {
	return textinput.Blink
}

func (c *Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.view.Width = msg.Width
		c.view.Height = max(msg.Height-4, 1)
		c.input.Width = max(msg.Width-4, 10)
		c.ready = true
		c.refresh()

	case tea.KeyMsg:
		if cmd, handled := c.handleKey(msg); handled {
			return c, cmd
		}

	case EventMsg:
		cmds = append(cmds, c.handleEvent(msg.Event))

	case resultMsg:
		switch {
		case msg.err != nil:
			c.appendLine(ErrorStyle.Render(IconError + " " + msg.err.Error()))
		case msg.text != "":
			c.appendLine(msg.text)
		}

	case confirmMsg:
		c.confirm = &msg
		c.appendLine(PromptBoxStyle.Render(msg.prompt + " (y/n)"))
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	cmds = append(cmds, cmd)
	c.view, cmd = c.view.Update(msg)
	cmds = append(cmds, cmd)
	return c, tea.Batch(cmds...)
}

func (c *Console) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return c.quit(), true
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		c.view, cmd = c.view.Update(msg)
		return cmd, true
	}

	if c.confirm != nil {
		pending := c.confirm
		c.confirm = nil
		if strings.EqualFold(msg.String(), "y") {
			return pending.run(), true
		}
		c.appendLine(MutedStyle.Render("Kept the current conversation."))
		return nil, true
	}

	if msg.Type != tea.KeyEnter {
		return nil, false
	}

	line := c.input.Value()
	c.input.Reset()
	cmd, err := ParseCommand(line)
	if errors.Is(err, ErrEmptyInput) {
		return nil, true
	}
	if err != nil {
		c.appendLine(ErrorStyle.Render(IconError + " " + err.Error()))
		return nil, true
	}
	return c.dispatch(cmd), true
}

func (c *Console) dispatch(cmd Command) tea.Cmd {
	b := c.backend
	switch cmd.Name {
	case CmdSay:
		return run(func() (string, error) { return "", b.SendText(cmd.Text) })

	case "connect":
		peer := cmd.Arg(0)
		return replaceable(fmt.Sprintf("End the current conversation and connect to %s?", peer),
			func(replace bool) error { return b.Connect(peer, replace) })

	case "disconnect":
		return run(func() (string, error) { return "", b.Disconnect() })

	case "accept":
		peer := c.pick(cmd.Arg(0), c.pending)
		if name := cmd.Rest(1); name != "" {
			return run(func() (string, error) { return "", b.AcceptAndAdd(peer, name) })
		}
		return run(func() (string, error) { return "", b.Accept(peer) })

	case "reject":
		peer := c.pick(cmd.Arg(0), c.pending)
		return run(func() (string, error) {
			return MutedStyle.Render("Rejected " + peer), b.Reject(peer)
		})

	case "add":
		peer, name := cmd.Arg(0), cmd.Rest(1)
		return run(func() (string, error) {
			contact, err := b.AddContact(peer, name)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s Saved %s as %s", IconContact, contact.PeerID, contact.Name()), nil
		})

	case "call":
		peer := cmd.Arg(0)
		return replaceable("End the current call or session and start a new call?",
			func(replace bool) error { return b.StartCall(peer, replace) })

	case "answer":
		return run(func() (string, error) { return "", b.Answer() })
	case "decline":
		return run(func() (string, error) { return "", b.Decline() })
	case "hangup":
		return run(func() (string, error) { return "", b.Hangup() })

	case "mute":
		return run(func() (string, error) {
			on, err := b.ToggleAudio()
			return fmt.Sprintf("%s Microphone %s", IconMic, onOff(on)), err
		})
	case "video":
		return run(func() (string, error) {
			on, err := b.ToggleVideo()
			return fmt.Sprintf("%s Camera %s", IconCamera, onOff(on)), err
		})
	case "flip":
		ctx := c.ctx
		return run(func() (string, error) { return "", b.SwitchCamera(ctx) })

	case "file":
		path := cmd.Text
		return run(func() (string, error) { return "", b.SendFile(path) })

	case "room":
		return run(func() (string, error) {
			id, err := b.CreateRoom()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s Hosting room %s. /invite <id> to add peers", IconRoom, BoldStyle.Render(id)), nil
		})
	case "invite":
		peers := cmd.Args
		return run(func() (string, error) {
			return fmt.Sprintf("%s Invited %s", IconRoom, strings.Join(peers, ", ")), b.Invite(peers)
		})
	case "join":
		room := c.pick(cmd.Arg(0), c.invitations)
		return run(func() (string, error) { return "", b.AcceptInvitation(room) })
	case "refuse":
		room := c.pick(cmd.Arg(0), c.invitations)
		return run(func() (string, error) { return "", b.DeclineInvitation(room) })
	case "leave":
		return run(func() (string, error) { return "", b.LeaveRoom() })

	case "status":
		now := c.now()
		return run(func() (string, error) { return StatusView(b.Snapshot(), now), nil })
	case "away":
		return run(func() (string, error) { return "", b.SetPresence(presence.Away) })
	case "back":
		return run(func() (string, error) { return "", b.SetPresence(presence.Available) })

	case "id":
		if cmd.Arg(0) == "" {
			c.appendLine(IdentityView(c.id))
			return nil
		}
		ctx, id := c.ctx, cmd.Arg(0)
		return run(func() (string, error) { return "", b.ChangeIdentity(ctx, id) })

	case "contacts":
		c.appendLine(ContactsView(c.book.List()))
		return nil
	case "help":
		c.appendLine(HelpView())
		return nil
	case "quit":
		return c.quit()
	}
	return nil
}

func (c *Console) quit() tea.Cmd {
	c.quitting = true
	c.cancel()
	return tea.Quit
}

// pick returns explicit, or the newest entry of recent.
func (c *Console) pick(explicit string, recent []string) string {
	if explicit != "" || len(recent) == 0 {
		return explicit
	}
	return recent[len(recent)-1]
}

func run(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		text, err := fn()
		if err != nil {
			text = ""
		}
		return resultMsg{text: text, err: err}
	}
}

// replaceable tries fn without replacing and turns a refusal because of an
// active session or call into a confirmation prompt.
func replaceable(prompt string, fn func(replace bool) error) tea.Cmd {
	return func() tea.Msg {
		err := fn(false)
		if errors.Is(err, chat.ErrSessionActive) || errors.Is(err, chat.ErrCallActive) {
			return confirmMsg{prompt: prompt, run: func() tea.Cmd {
				return run(func() (string, error) { return "", fn(true) })
			}}
		}
		return resultMsg{err: err}
	}
}

func (c *Console) handleEvent(e chat.Event) tea.Cmd {
	var cmd tea.Cmd

	switch ev := e.(type) {
	case chat.Ready:
		c.id = ev.ID
	case chat.PresenceChanged:
		c.presence = ev.To
	case chat.SessionOpened:
		c.session = ev.Peer
		c.pending = without(c.pending, ev.Peer)
	case chat.SessionClosed:
		if c.session == ev.Peer {
			c.session = ""
		}
	case chat.RequestReceived:
		c.pending = append(without(c.pending, ev.Peer), ev.Peer)
	case chat.RequestExpired:
		c.pending = without(c.pending, ev.Peer)
	case chat.CallDialing:
		c.call = "calling " + c.name(ev.Peer)
	case chat.CallRinging:
		c.call = "ringing " + c.name(ev.Peer)
	case chat.StreamAttached:
		c.call = "in call with " + c.name(ev.Peer)
	case chat.CallEnded:
		c.call = ""
	case chat.Ringtone:
		c.ringing = ev.On
	case chat.InvitationReceived:
		c.invitations = append(without(c.invitations, ev.RoomID), ev.RoomID)
	case chat.RoomChanged:
		c.room = ev.RoomID
		c.invitations = without(c.invitations, ev.RoomID)
	case chat.RoomJoinRejected:
		c.invitations = without(c.invitations, ev.RoomID)
	case chat.Message:
		if !ev.Outgoing && ev.File != nil {
			cmd = c.saveFile(ev)
		}
	}

	if line := RenderEvent(e, c.name); line != "" {
		c.appendLine(line)
	}
	return cmd
}

func (c *Console) saveFile(msg chat.Message) tea.Cmd {
	dir := c.downloadDir
	f := msg.File
	return func() tea.Msg {
		path, err := files.Save(dir, protocol.FileMessage{
			Type:     protocol.TypeFile,
			Name:     f.Name,
			Size:     f.Size,
			MimeType: f.MimeType,
			Data:     f.Data,
		})
		if err != nil {
			c.log.Error("Failed to save received file", "name", f.Name, "error", err)
			return resultMsg{err: fmt.Errorf("save %s: %w", f.Name, err)}
		}
		return resultMsg{text: MutedStyle.Render(fmt.Sprintf("%s Saved to %s", IconFile, path))}
	}
}

func (c *Console) name(peer string) string {
	if c.book != nil {
		if contact, ok := c.book.Get(peer); ok {
			return contact.Name()
		}
	}
	return peer
}

func (c *Console) appendLine(line string) {
	c.lines = append(c.lines, line)
	c.refresh()
}

func (c *Console) refresh() {
	content := strings.Join(c.lines, "\n")
	if c.width > 0 {
		content = lipgloss.NewStyle().Width(c.width).Render(content)
	}
	c.view.SetContent(content)
	c.view.GotoBottom()
}

func (c *Console) header() string {
	parts := []string{"p2pchat"}
	if c.id != "" {
		parts = append(parts, c.id)
	}
	parts = append(parts, string(c.presence))
	if c.session != "" {
		parts = append(parts, IconConnect+" "+c.name(c.session))
	}
	if c.room != "" {
		parts = append(parts, IconRoom+" "+c.room)
	}
	if c.call != "" {
		icon := IconCall
		if c.ringing {
			icon = IconRinging
		}
		parts = append(parts, icon+" "+c.call)
	}
	return HeaderStyle.Render(strings.Join(parts, " · "))
}

func (c *Console) View() string {
	if c.quitting {
		return ""
	}
	if !c.ready {
		return "Starting..."
	}

	footer := "PgUp/PgDn scroll · /help · Ctrl+C quit"
	if c.confirm != nil {
		footer = "y to confirm, any other key to cancel"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		c.header(),
		c.view.View(),
		c.input.View(),
		FooterStyle.Render(footer),
	)
}

// Transcript returns the rendered lines, oldest first.
func (c *Console) Transcript() []string {
	return append([]string(nil), c.lines...)
}

func without(list []string, v string) []string {
	out := list[:0:0]
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}
