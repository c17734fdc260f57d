package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner animates a status line on a terminal while a blocking step runs,
// before the interactive console takes over the screen.
type Spinner struct {
	out      io.Writer
	frames   []string
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	message  string
}

func newSpinner(message string, kind spinner.Spinner) *Spinner {
	return &Spinner{
		out:      os.Stderr,
		frames:   kind.Frames,
		interval: kind.FPS,
		done:     make(chan struct{}),
		message:  message,
	}
}

// NewConnectionSpinner is used while talking to the rendezvous server.
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Globe)
}

func (s *Spinner) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.out, "\r%s %s", SpinnerStyle.Render(s.frames[i%len(s.frames)]), s.message)

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		fmt.Fprint(s.out, "\r\033[K")
	})
}

func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render(IconError), message)
}
