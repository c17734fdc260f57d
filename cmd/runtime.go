package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nikelwish/p2p-service/internal/chat"
	"github.com/nikelwish/p2p-service/internal/config"
	"github.com/nikelwish/p2p-service/internal/contacts"
	"github.com/nikelwish/p2p-service/internal/identity"
	"github.com/nikelwish/p2p-service/internal/logging"
	"github.com/nikelwish/p2p-service/internal/metrics"
	"github.com/nikelwish/p2p-service/internal/presence"
	"github.com/nikelwish/p2p-service/internal/signaling"
	"github.com/nikelwish/p2p-service/internal/storage"
	"github.com/nikelwish/p2p-service/internal/transport"
	"github.com/nikelwish/p2p-service/internal/webrtc"
)

const logFileName = "p2pchat.log"

// Runtime holds the local state every subcommand works against.
type Runtime struct {
	Config   *config.Config
	Store    *storage.DB
	Identity *identity.Store
	Contacts *contacts.Book
	Presence *presence.Tracker
	Metrics  *metrics.Collector
	Logger   *slog.Logger

	logFile    *os.File
	metricsSrv *http.Server
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, chat.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// OpenRuntime loads config and opens the local database. With logToFile the
// default logger is redirected into the data dir, since the interactive
// console owns the terminal.
func OpenRuntime(opts config.Options, logToFile bool) (*Runtime, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: slog.Default()}
	if logToFile {
		if err := rt.redirectLog(); err != nil {
			return nil, err
		}
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		rt.Close()
		return nil, chat.NewError("open store", err)
	}
	rt.Store = db

	book, err := contacts.Load(db)
	if err != nil {
		rt.Close()
		return nil, chat.NewError("load contacts", err)
	}

	rt.Identity = identity.NewStore(db)
	rt.Contacts = book
	rt.Presence = presence.NewTracker(db, rt.Logger)
	rt.Metrics = metrics.NewCollector()
	return rt, nil
}

func (rt *Runtime) redirectLog() error {
	if err := os.MkdirAll(rt.Config.DataDir, 0o755); err != nil {
		return chat.NewError("create data dir", err)
	}
	f, err := os.OpenFile(filepath.Join(rt.Config.DataDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return chat.NewError("open log", err)
	}
	rt.logFile = f
	rt.Logger = logging.New(f, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(rt.Logger)
	return nil
}

// ProviderFactory gives the chat manager a fresh provider per identity. The
// PeerJS socket is dialled when the provider registers its id.
func (rt *Runtime) ProviderFactory() (chat.ProviderFactory, error) {
	log := rt.Logger.With("component", "webrtc")
	factory, err := webrtc.NewFactory(rt.Config, log)
	if err != nil {
		return nil, chat.NewError("set up webrtc", err)
	}

	url, key := rt.Config.WebSocketURL, rt.Config.Key
	return func(context.Context) (transport.Provider, error) {
		sig := signaling.NewHandler(url, key, rt.Logger.With("component", "signaling"))
		return webrtc.NewProvider(sig, factory, log), nil
	}, nil
}

// ServeMetrics exposes the collector when a metrics address is configured.
func (rt *Runtime) ServeMetrics() {
	addr := rt.Config.MetricsAddr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.Metrics.Handler())
	rt.metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		rt.Logger.Info("Serving metrics", "addr", addr)
		if err := rt.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error("Metrics server stopped", "error", err)
		}
	}()
}

func (rt *Runtime) Close() {
	if rt.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = rt.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			rt.Logger.Warn("Failed to close store", "error", err)
		}
	}
	if rt.logFile != nil {
		rt.logFile.Close()
	}
}
