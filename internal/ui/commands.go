package ui

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyInput      = errors.New("nothing to send")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// CmdSay is the implicit command for a line that does not start with "/".
const CmdSay = "say"

// Command is one parsed input line. Text is everything after the command
// name, untouched, for commands whose argument may contain spaces.
type Command struct {
	Name string
	Args []string
	Text string
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Rest joins the arguments from i on.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

type commandSpec struct {
	name    string
	usage   string
	help    string
	minArgs int
}

var commandSpecs = []commandSpec{
	{name: "connect", usage: "/connect <id>", help: "ask a peer for a chat session", minArgs: 1},
	{name: "disconnect", usage: "/disconnect", help: "end the current session"},
	{name: "accept", usage: "/accept [id] [name]", help: "accept a request, saving the peer when a name is given"},
	{name: "reject", usage: "/reject [id]", help: "reject a request"},
	{name: "add", usage: "/add <id> [name]", help: "save a contact", minArgs: 1},
	{name: "call", usage: "/call [id]", help: "start a call, with the session peer by default"},
	{name: "answer", usage: "/answer", help: "answer the ringing call"},
	{name: "decline", usage: "/decline", help: "decline the ringing call"},
	{name: "hangup", usage: "/hangup", help: "end the call and keep chatting"},
	{name: "mute", usage: "/mute", help: "toggle the microphone"},
	{name: "video", usage: "/video", help: "toggle the camera"},
	{name: "flip", usage: "/flip", help: "switch between front and back camera"},
	{name: "file", usage: "/file <path>", help: "send a file up to 15 MB", minArgs: 1},
	{name: "room", usage: "/room", help: "host a room"},
	{name: "invite", usage: "/invite <id>...", help: "invite peers to the room you host", minArgs: 1},
	{name: "join", usage: "/join [room]", help: "accept a room invitation"},
	{name: "refuse", usage: "/refuse [room]", help: "decline a room invitation"},
	{name: "leave", usage: "/leave", help: "leave or close the room"},
	{name: "status", usage: "/status", help: "show session, call and room state"},
	{name: "away", usage: "/away", help: "set presence to away"},
	{name: "back", usage: "/back", help: "set presence to available"},
	{name: "id", usage: "/id [new-id]", help: "show or change your peer ID"},
	{name: "contacts", usage: "/contacts", help: "list saved contacts"},
	{name: "help", usage: "/help", help: "show this list"},
	{name: "quit", usage: "/quit", help: "leave p2pchat"},
}

var commandIndex = func() map[string]commandSpec {
	idx := make(map[string]commandSpec, len(commandSpecs))
	for _, spec := range commandSpecs {
		idx[spec.name] = spec
	}
	return idx
}()

// ParseCommand turns an input line into a Command. "//text" sends "/text"
// as chat.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Command{}, ErrEmptyInput
	}
	if strings.HasPrefix(trimmed, "//") {
		return Command{Name: CmdSay, Text: trimmed[1:]}, nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Name: CmdSay, Text: trimmed}, nil
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	name = strings.ToLower(name)
	spec, ok := commandIndex[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}

	rest = strings.TrimSpace(rest)
	cmd := Command{Name: name, Args: strings.Fields(rest), Text: rest}
	if len(cmd.Args) < spec.minArgs {
		return Command{}, fmt.Errorf("%w: usage %s", ErrMissingArgument, spec.usage)
	}
	return cmd, nil
}

// HelpView lists every command.
func HelpView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Commands"))
	b.WriteString("\n")
	for _, spec := range commandSpecs {
		fmt.Fprintf(&b, "  %-22s %s\n", spec.usage, MutedStyle.Render(spec.help))
	}
	b.WriteString(MutedStyle.Render("  Anything else is sent as a chat message. Start with // to send a leading slash."))
	return b.String()
}
