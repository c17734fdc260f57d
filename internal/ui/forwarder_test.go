package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarderKeepsOrder(t *testing.T) {
	f := NewForwarder()
	f.Notify(chat.Ready{ID: "alice"})
	f.Notify(chat.AwaitingResponse{Peer: "bob"})

	got := make(chan tea.Msg, 10)
	done := make(chan struct{})
	go func() {
		f.Run(func(msg tea.Msg) { got <- msg })
		close(done)
	}()

	f.Notify(chat.SessionOpened{Peer: "bob"})

	var events []chat.Event
	for range 3 {
		select {
		case msg := <-got:
			events = append(events, msg.(EventMsg).Event)
		case <-time.After(time.Second):
			t.Fatal("event was not forwarded")
		}
	}
	assert.Equal(t, []chat.Event{
		chat.Ready{ID: "alice"},
		chat.AwaitingResponse{Peer: "bob"},
		chat.SessionOpened{Peer: "bob"},
	}, events)

	f.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestForwarderNotifyNeverBlocks(t *testing.T) {
	f := NewForwarder()
	for i := range 10000 {
		f.Notify(chat.Notice{Text: string(rune('a' + i%26))})
	}
	f.Stop()
	f.Notify(chat.Notice{Text: "after stop"})

	ran := make(chan struct{})
	go func() {
		f.Run(func(tea.Msg) { t.Error("nothing should be delivered after Stop") })
		close(ran)
	}()
	select {
	case <-ran:
	case <-time.After(time.Second):
		require.Fail(t, "Run blocked on a stopped forwarder")
	}
}
