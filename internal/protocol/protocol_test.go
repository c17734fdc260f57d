package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestChatTextIsByteIdentical(t *testing.T) {
	texts := []string{"hello", "", "привет 👋", "https://example.com/a?b=c"}
	for _, text := range texts {
		data, err := Encode(ChatMessage{Text: text})
		require.NoError(t, err)

		msg, err := Decode(data)
		require.NoError(t, err)
		chat, ok := msg.(ChatMessage)
		require.True(t, ok)
		assert.Equal(t, []byte(text), []byte(chat.Text))
	}
}

func TestFilePreservesLengthAndMime(t *testing.T) {
	payload := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 1000)
	data, err := Encode(File("photo.png", "image/png", payload))
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	file, ok := msg.(FileMessage)
	require.True(t, ok)
	assert.Equal(t, "photo.png", file.Name)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, int64(len(payload)), file.Size)
	assert.Len(t, file.Data, len(payload))
	assert.Equal(t, KindImage, file.Kind())
}

func TestFileSizeBoundary(t *testing.T) {
	_, err := Encode(File("max.bin", "application/octet-stream", make([]byte, MaxFileSize)))
	assert.NoError(t, err)

	_, err = Encode(File("over.bin", "application/octet-stream", make([]byte, MaxFileSize+1)))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestSystemMessageFields(t *testing.T) {
	data, err := Encode(RoomInvitation("room-1", "host-1", "join us"))
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	sys, ok := msg.(SystemMessage)
	require.True(t, ok)
	assert.Equal(t, TypeSystem, sys.Type)
	assert.Equal(t, ActionRoomInvitation, sys.Action)
	assert.Equal(t, "room-1", sys.RoomID)
	assert.Equal(t, "host-1", sys.HostID)
	assert.Equal(t, "join us", sys.Message)
}

func TestUnknownActionDecodes(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{"type": "system", "action": "teleport"})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	sys := msg.(SystemMessage)
	assert.False(t, sys.Action.Known())
}

func TestUnknownTypeAndGarbage(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{"type": "hologram"})
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrUnknownMessage)

	data, err = msgpack.Marshal(42)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte{0xc1})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIsLink(t *testing.T) {
	assert.True(t, IsLink("http://a.b"))
	assert.True(t, IsLink("HTTPS://example.com"))
	assert.False(t, IsLink("see https://example.com"))
	assert.False(t, IsLink("ftp://example.com"))
}

func TestFileKind(t *testing.T) {
	assert.Equal(t, KindVideo, FileMessage{MimeType: "video/mp4"}.Kind())
	assert.Equal(t, KindFile, FileMessage{MimeType: "application/pdf"}.Kind())
	assert.Equal(t, KindFile, FileMessage{}.Kind())
}
