package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSized(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestLoadAtLimit(t *testing.T) {
	att, err := Load(writeSized(t, "clip.mp4", protocol.MaxFileSize))
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", att.Name)
	assert.Equal(t, "video/mp4", att.MimeType)
	assert.Len(t, att.Data, protocol.MaxFileSize)
}

func TestLoadOverLimit(t *testing.T) {
	_, err := Load(writeSized(t, "big.bin", protocol.MaxFileSize+1))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestLoadMissingAndDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestDetectMimeFallback(t *testing.T) {
	assert.Equal(t, "application/octet-stream", DetectMime("blob.weirdext"))
}

func TestSaveDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	msg := protocol.File("../../note.txt", "text/plain", []byte("hi"))

	first, err := Save(dir, msg)
	require.NoError(t, err)
	second, err := Save(dir, msg)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "note.txt"), first)
	assert.Equal(t, filepath.Join(dir, "note (1).txt"), second)
	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}
