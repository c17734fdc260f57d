package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/media"
	"github.com/nikelwish/p2p-service/internal/ui"
	"github.com/nikelwish/p2p-service/internal/webrtc"
)

var _ ui.Backend = (*chat.Manager)(nil)

func runChat(ctx context.Context) error {
	rt, err := OpenRuntime(flags, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	newProvider, err := rt.ProviderFactory()
	if err != nil {
		return err
	}
	rt.ServeMetrics()

	cfg, log := rt.Config, rt.Logger
	forwarder := ui.NewForwarder()
	defer forwarder.Stop()

	manager, err := chat.New(chat.Options{
		Identity:            rt.Identity,
		Contacts:            rt.Contacts,
		Presence:            rt.Presence,
		NewProvider:         newProvider,
		Acquirer:            media.NewAcquirer(webrtc.NewDevices(log), log),
		Notifier:            forwarder,
		Metrics:             rt.Metrics,
		Logger:              log,
		PendingTTL:          cfg.PendingTTL,
		BusyGrace:           cfg.BusyGrace,
		PlaybackInterval:    cfg.PlaybackInterval,
		NegotiationInterval: cfg.NegotiationInterval,
		RedialDelay:         cfg.RedialDelay,
		RestorePresence:     cfg.RestorePresence,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	sp := ui.NewConnectionSpinner(fmt.Sprintf("Connecting to %s...", cfg.Domain))
	sp.Start()
	if err := manager.Start(ctx); err != nil {
		sp.Error("Could not register with the server")
		return err
	}
	sp.Success(fmt.Sprintf("Registered as %s", manager.ID()))

	console := ui.NewConsole(ui.ConsoleOptions{
		Backend:     manager,
		Contacts:    rt.Contacts,
		DownloadDir: cfg.DownloadDir,
		Logger:      log,
	})
	program := tea.NewProgram(console, tea.WithAltScreen(), tea.WithContext(ctx))
	go forwarder.Run(program.Send)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return chat.NewError("run console", err)
	}
	return nil
}
