package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/contacts"
	"github.com/nikelwish/p2p-service/internal/utils"
)

// ContactsView renders the saved contacts using lipgloss/table.
func ContactsView(list []contacts.Contact) string {
	if len(list) == 0 {
		return MutedStyle.Render("No contacts yet. Use /add <id> [name] to save one.")
	}

	rows := make([][]string, 0, len(list))
	for i, c := range list {
		lastSeen := "never"
		if !c.LastSeenAt.IsZero() {
			lastSeen = c.LastSeenAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			utils.TruncateString(c.Name(), 30),
			utils.TruncateString(c.PeerID, 40),
			lastSeen,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Name", "Peer ID", "Last Seen").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// StatusView renders a snapshot of the manager as a go-pretty table.
func StatusView(snap chat.Snapshot, now time.Time) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.SetTitle("Status")
	t.AppendHeader(prettytable.Row{"Item", "Value"})

	t.AppendRow(prettytable.Row{"Peer ID", orNone(snap.ID)})
	t.AppendRow(prettytable.Row{"Presence", snap.Presence})

	media := string(snap.Media.Level)
	if snap.Media.Level != "" {
		media = fmt.Sprintf("%s (mic %s, camera %s, %s)", snap.Media.Level,
			onOff(snap.Media.Audio), onOff(snap.Media.Video), snap.Media.Facing)
	}
	t.AppendRow(prettytable.Row{"Media", orNone(media)})

	session := ""
	if s := snap.Session; s != nil {
		state := string(s.State)
		if !s.Accepted {
			state = "awaiting response"
		}
		session = fmt.Sprintf("%s (%s, %s, %s)", s.Peer, s.Direction, state,
			utils.FormatDuration(now.Sub(s.Since)))
	}
	t.AppendRow(prettytable.Row{"Session", orNone(session)})

	call := ""
	if c := snap.Call; c != nil {
		kind := "video"
		if c.AudioOnly {
			kind = "audio"
		}
		call = fmt.Sprintf("%s (%s %s, %s)", c.Peer, c.State, kind, c.Direction)
		if !c.Since.IsZero() {
			call += " " + utils.FormatDuration(now.Sub(c.Since))
		}
	}
	t.AppendRow(prettytable.Row{"Call", orNone(call)})

	room := ""
	if r := snap.Room; r.RoomID != "" {
		role := "member of " + r.HostID
		if r.Host {
			role = "host"
		}
		room = fmt.Sprintf("%s (%s)", r.RoomID, role)
		if len(r.Participants) > 0 {
			room += ": " + strings.Join(r.Participants, ", ")
		}
	}
	t.AppendRow(prettytable.Row{"Room", orNone(room)})

	if len(snap.Pending) > 0 {
		t.AppendSeparator()
		for _, p := range snap.Pending {
			t.AppendRow(prettytable.Row{"Request", fmt.Sprintf("%s (%s ago)", p.Peer,
				utils.FormatDuration(now.Sub(p.ReceivedAt)))})
		}
	}
	if len(snap.Invitations) > 0 {
		t.AppendSeparator()
		for _, inv := range snap.Invitations {
			t.AppendRow(prettytable.Row{"Invitation", fmt.Sprintf("%s from %s", inv.RoomID, inv.From)})
		}
	}

	return t.Render()
}

// IdentityView boxes the local id so it can be read out to a peer.
func IdentityView(id string) string {
	content := fmt.Sprintf("%s Your peer ID\n\n%s", IconPeer, BoldStyle.Foreground(Primary).Render(id))
	return IdentityBoxStyle.Render(content)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
