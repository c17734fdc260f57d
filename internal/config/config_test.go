package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"P2PCHAT_CONFIG", "P2PCHAT_DOMAIN", "DOMAIN", "P2PCHAT_WS_URL", "STUN_SERVER",
		"TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD", "P2PCHAT_DATA_DIR",
		"P2PCHAT_DOWNLOAD_DIR", "P2PCHAT_METRICS_ADDR", "P2PCHAT_FORCE_RELAY",
		"P2PCHAT_RESTORE_PRESENCE", "P2PCHAT_PENDING_TTL", "P2PCHAT_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(Options{DataDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "wss://0.peerjs.com/peerjs", cfg.WebSocketURL)
	assert.Equal(t, DefaultKey, cfg.Key)
	assert.Equal(t, []string{DefaultSTUN, DefaultSTUNAlt}, cfg.GetSTUNServers())
	assert.Nil(t, cfg.GetTURNServers())
	assert.Equal(t, DefaultPendingTTL, cfg.PendingTTL)
	assert.Equal(t, filepath.Join(cfg.DataDir, "downloads"), cfg.DownloadDir)
	assert.True(t, cfg.RestorePresence)
}

func TestPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "p2pchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
domain: file.example
key: filekey
stun_servers: ["stun:file.example:3478"]
turn:
  server: turn.file.example
  username: fileuser
timers:
  pending_ttl: 2m
  redial_delay: 5s
restore_presence: false
metrics_addr: ":9000"
`), 0o644))

	t.Setenv("P2PCHAT_DOMAIN", "env.example")
	t.Setenv("TURN_USERNAME", "envuser")

	cfg, err := Load(Options{ConfigFile: path, TURNUser: "flaguser", Key: "flagkey", DataDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "env.example", cfg.Domain)
	assert.Equal(t, "wss://env.example/peerjs", cfg.WebSocketURL)
	assert.Equal(t, "flagkey", cfg.Key)
	assert.Equal(t, []string{"stun:file.example:3478"}, cfg.STUNServers)
	assert.Equal(t, "flaguser", cfg.TURNUser)
	assert.Equal(t, 2*time.Minute, cfg.PendingTTL)
	assert.Equal(t, 5*time.Second, cfg.RedialDelay)
	assert.Equal(t, DefaultBusyGrace, cfg.BusyGrace)
	assert.False(t, cfg.RestorePresence)
	assert.Equal(t, ":9000", cfg.MetricsAddr)
	assert.Equal(t, []string{
		"turn:turn.file.example:3478?transport=udp",
		"turn:turn.file.example:3478?transport=tcp",
		"turns:turn.file.example:5349?transport=tcp",
	}, cfg.GetTURNServers())
}

func TestUnknownFileKeyRejected(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domian: typo.example\n"), 0o644))

	_, err := Load(Options{ConfigFile: path})
	assert.Error(t, err)
}

func TestEnvParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("STUN_SERVER", "stun:a:1, stun:b:2")
	t.Setenv("P2PCHAT_PENDING_TTL", "0s")
	t.Setenv("P2PCHAT_FORCE_RELAY", "true")

	cfg, err := Load(Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, []string{"stun:a:1", "stun:b:2"}, cfg.STUNServers)
	assert.Zero(t, cfg.PendingTTL)
	assert.True(t, cfg.ForceRelay)

	t.Setenv("P2PCHAT_FORCE_RELAY", "maybe")
	_, err = Load(Options{})
	assert.Error(t, err)
}
