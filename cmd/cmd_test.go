package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nikelwish/p2p-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	t.Cleanup(func() { flags = config.Options{} })
	return rootCmd.Execute()
}

func TestContactsCommands(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, execute(t, "contacts", "add", "bob42", "Bob", "Smith", "--data-dir", dir))
	require.NoError(t, execute(t, "contacts", "rename", "bob42", "Bobby", "--data-dir", dir))

	rt, err := OpenRuntime(config.Options{DataDir: dir}, false)
	require.NoError(t, err)
	c, ok := rt.Contacts.Get("bob42")
	rt.Close()
	require.True(t, ok)
	assert.Equal(t, "Bobby", c.Name())

	require.NoError(t, execute(t, "contacts", "remove", "bob42", "--data-dir", dir))
	rt, err = OpenRuntime(config.Options{DataDir: dir}, false)
	require.NoError(t, err)
	defer rt.Close()
	assert.Empty(t, rt.Contacts.List())
}

func TestIDCommands(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, execute(t, "id", "set", "desk-01", "--data-dir", dir))
	rt, err := OpenRuntime(config.Options{DataDir: dir}, false)
	require.NoError(t, err)
	id, err := rt.Identity.Load()
	rt.Close()
	require.NoError(t, err)
	assert.Equal(t, "desk-01", id)

	assert.Error(t, execute(t, "id", "set", "not valid!", "--data-dir", dir))

	require.NoError(t, execute(t, "id", "reset", "--data-dir", dir))
	rt, err = OpenRuntime(config.Options{DataDir: dir}, false)
	require.NoError(t, err)
	defer rt.Close()
	id, err = rt.Identity.Load()
	require.NoError(t, err)
	assert.NotEqual(t, "desk-01", id)
}

func TestRuntimeLogsToDataDir(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	rt, err := OpenRuntime(config.Options{DataDir: dir}, true)
	require.NoError(t, err)
	rt.Logger.Error("hello from test")
	rt.Close()

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}
