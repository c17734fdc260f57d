package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Default configuration values (production). The rendezvous defaults point
// at the public PeerJS cloud.
const (
	DefaultDomain   = "0.peerjs.com"
	DefaultKey      = "peerjs"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultSTUNAlt  = "stun:global.stun.twilio.com:3478"
	DefaultTURN     = "" // Optional, empty by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""

	DefaultPendingTTL          = 60 * time.Second
	DefaultBusyGrace           = 500 * time.Millisecond
	DefaultPlaybackInterval    = 5 * time.Second
	DefaultNegotiationInterval = 10 * time.Second
	DefaultRedialDelay         = 2 * time.Second

	appDir = "p2pchat"
)

// Config holds application configuration
type Config struct {
	// Domain is the rendezvous server domain
	Domain string

	// WebSocketURL is constructed from domain unless set explicitly
	WebSocketURL string

	// Key is the PeerJS server API key
	Key string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool

	// DataDir holds the sqlite store; DownloadDir receives files
	DataDir     string
	DownloadDir string

	PendingTTL          time.Duration
	BusyGrace           time.Duration
	PlaybackInterval    time.Duration
	NegotiationInterval time.Duration
	RedialDelay         time.Duration
	RestorePresence     bool

	// MetricsAddr serves /metrics when set
	MetricsAddr string
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigFile   string
	Domain       string
	WebSocketURL string
	Key          string
	STUNServer   string
	TURNServer   string
	TURNUser     string
	TURNPass     string
	ForceRelay   bool
	DataDir      string
	DownloadDir  string
	PendingTTL   time.Duration
	MetricsAddr  string
}

// fileConfig is the YAML layout of --config.
type fileConfig struct {
	Domain       string   `yaml:"domain"`
	WebSocketURL string   `yaml:"websocket_url"`
	Key          string   `yaml:"key"`
	STUNServers  []string `yaml:"stun_servers"`
	TURN         struct {
		Server   string `yaml:"server"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"turn"`
	ForceRelay  *bool  `yaml:"force_relay"`
	DataDir     string `yaml:"data_dir"`
	DownloadDir string `yaml:"download_dir"`
	Timers      struct {
		PendingTTL          *time.Duration `yaml:"pending_ttl"`
		BusyGrace           *time.Duration `yaml:"busy_grace"`
		PlaybackInterval    *time.Duration `yaml:"playback_interval"`
		NegotiationInterval *time.Duration `yaml:"negotiation_interval"`
		RedialDelay         *time.Duration `yaml:"redial_delay"`
	} `yaml:"timers"`
	RestorePresence *bool  `yaml:"restore_presence"`
	MetricsAddr     string `yaml:"metrics_addr"`
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. YAML config file
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg, err := defaults()
	if err != nil {
		return nil, err
	}

	path := first(opts.ConfigFile, os.Getenv("P2PCHAT_CONFIG"))
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyFlags(opts)

	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = fmt.Sprintf("wss://%s/peerjs", cfg.Domain)
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = filepath.Join(cfg.DataDir, "downloads")
	}
	return cfg, nil
}

func defaults() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return &Config{
		Domain:              DefaultDomain,
		Key:                 DefaultKey,
		STUNServers:         []string{DefaultSTUN, DefaultSTUNAlt},
		TURNServer:          DefaultTURN,
		TURNUser:            DefaultTURNUser,
		TURNPass:            DefaultTURNPass,
		DataDir:             filepath.Join(base, appDir),
		PendingTTL:          DefaultPendingTTL,
		BusyGrace:           DefaultBusyGrace,
		PlaybackInterval:    DefaultPlaybackInterval,
		NegotiationInterval: DefaultNegotiationInterval,
		RedialDelay:         DefaultRedialDelay,
		RestorePresence:     true,
	}, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.Domain = first(fc.Domain, c.Domain)
	c.WebSocketURL = first(fc.WebSocketURL, c.WebSocketURL)
	c.Key = first(fc.Key, c.Key)
	if len(fc.STUNServers) > 0 {
		c.STUNServers = fc.STUNServers
	}
	c.TURNServer = first(fc.TURN.Server, c.TURNServer)
	c.TURNUser = first(fc.TURN.Username, c.TURNUser)
	c.TURNPass = first(fc.TURN.Password, c.TURNPass)
	if fc.ForceRelay != nil {
		c.ForceRelay = *fc.ForceRelay
	}
	c.DataDir = first(fc.DataDir, c.DataDir)
	c.DownloadDir = first(fc.DownloadDir, c.DownloadDir)
	setDuration(&c.PendingTTL, fc.Timers.PendingTTL)
	setDuration(&c.BusyGrace, fc.Timers.BusyGrace)
	setDuration(&c.PlaybackInterval, fc.Timers.PlaybackInterval)
	setDuration(&c.NegotiationInterval, fc.Timers.NegotiationInterval)
	setDuration(&c.RedialDelay, fc.Timers.RedialDelay)
	if fc.RestorePresence != nil {
		c.RestorePresence = *fc.RestorePresence
	}
	c.MetricsAddr = first(fc.MetricsAddr, c.MetricsAddr)
	return nil
}

func (c *Config) applyEnv() error {
	c.Domain = first(os.Getenv("P2PCHAT_DOMAIN"), os.Getenv("DOMAIN"), c.Domain)
	c.WebSocketURL = first(os.Getenv("P2PCHAT_WS_URL"), c.WebSocketURL)
	c.Key = first(os.Getenv("P2PCHAT_KEY"), c.Key)
	if stun := os.Getenv("STUN_SERVER"); stun != "" {
		c.STUNServers = splitList(stun)
	}
	c.TURNServer = first(os.Getenv("TURN_SERVER"), c.TURNServer)
	c.TURNUser = first(os.Getenv("TURN_USERNAME"), c.TURNUser)
	c.TURNPass = first(os.Getenv("TURN_PASSWORD"), c.TURNPass)
	c.DataDir = first(os.Getenv("P2PCHAT_DATA_DIR"), c.DataDir)
	c.DownloadDir = first(os.Getenv("P2PCHAT_DOWNLOAD_DIR"), c.DownloadDir)
	c.MetricsAddr = first(os.Getenv("P2PCHAT_METRICS_ADDR"), c.MetricsAddr)

	if v := os.Getenv("P2PCHAT_FORCE_RELAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("P2PCHAT_FORCE_RELAY: %w", err)
		}
		c.ForceRelay = b
	}
	if v := os.Getenv("P2PCHAT_RESTORE_PRESENCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("P2PCHAT_RESTORE_PRESENCE: %w", err)
		}
		c.RestorePresence = b
	}
	if v := os.Getenv("P2PCHAT_PENDING_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("P2PCHAT_PENDING_TTL: %w", err)
		}
		c.PendingTTL = d
	}
	return nil
}

func (c *Config) applyFlags(opts Options) {
	c.Domain = first(opts.Domain, c.Domain)
	c.WebSocketURL = first(opts.WebSocketURL, c.WebSocketURL)
	c.Key = first(opts.Key, c.Key)
	if opts.STUNServer != "" {
		c.STUNServers = splitList(opts.STUNServer)
	}
	c.TURNServer = first(opts.TURNServer, c.TURNServer)
	c.TURNUser = first(opts.TURNUser, c.TURNUser)
	c.TURNPass = first(opts.TURNPass, c.TURNPass)
	if opts.ForceRelay {
		c.ForceRelay = true
	}
	c.DataDir = first(opts.DataDir, c.DataDir)
	c.DownloadDir = first(opts.DownloadDir, c.DownloadDir)
	if opts.PendingTTL != 0 {
		c.PendingTTL = opts.PendingTTL
	}
	c.MetricsAddr = first(opts.MetricsAddr, c.MetricsAddr)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
