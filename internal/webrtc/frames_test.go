package webrtc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrames(t *testing.T) {
	frames := splitFrames([]byte("abcdefg"), 3)
	require.Len(t, frames, 3)
	assert.Equal(t, []byte{frameMore, 'a', 'b', 'c'}, frames[0])
	assert.Equal(t, []byte{frameMore, 'd', 'e', 'f'}, frames[1])
	assert.Equal(t, []byte{frameLast, 'g'}, frames[2])

	frames = splitFrames(nil, 3)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{frameLast}, frames[0])

	frames = splitFrames([]byte("abcdef"), 3)
	require.Len(t, frames, 2)
	assert.Equal(t, frameLast, frames[1][0])
}

func TestAssemblerJoinsFrames(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	a := newAssembler(len(data))

	frames := splitFrames(data, 512)
	for i, frame := range frames {
		payload, ok, err := a.push(frame)
		require.NoError(t, err)
		if i < len(frames)-1 {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.Equal(t, data, payload)
	}

	payload, ok, err := a.push(splitFrames([]byte("next"), 512)[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("next"), payload)
}

func TestAssemblerEmptyPayload(t *testing.T) {
	a := newAssembler(16)
	payload, ok, err := a.push([]byte{frameLast})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, payload)
	assert.Empty(t, payload)
}

func TestAssemblerDropsOversizedPayload(t *testing.T) {
	a := newAssembler(8)
	frames := splitFrames(bytes.Repeat([]byte("x"), 20), 4)

	var err error
	for _, frame := range frames {
		_, ok, pushErr := a.push(frame)
		assert.False(t, ok)
		if pushErr != nil {
			err = pushErr
		}
	}
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	payload, ok, err := a.push([]byte{frameLast, 'o', 'k'})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("ok"), payload)
}

func TestAssemblerRejectsBadFrames(t *testing.T) {
	a := newAssembler(8)
	_, _, err := a.push(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
	_, _, err = a.push([]byte{7, 'x'})
	assert.ErrorIs(t, err, ErrUnknownFrame)
}
