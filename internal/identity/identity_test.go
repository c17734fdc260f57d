package identity

import (
	"strings"
	"testing"

	"github.com/nikelwish/p2p-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGeneratesAndPersists(t *testing.T) {
	kv := storage.NewMemory()
	s := NewStore(kv)

	id, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, id, GeneratedIDLength)
	assert.NoError(t, Validate(id))

	again, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, id, again, "id is stable across loads")

	stored, ok, err := kv.Get(storage.KeyPeerID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, stored)
}

func TestLoadReplacesCorruptValue(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(storage.KeyPeerID, "not valid!"))

	id, err := NewStore(kv).Load()
	require.NoError(t, err)
	assert.NotEqual(t, "not valid!", id)
}

func TestRegenerate(t *testing.T) {
	s := NewStore(storage.NewMemory())
	first, err := s.Load()
	require.NoError(t, err)

	second, err := s.Regenerate()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

func TestValidate(t *testing.T) {
	valid := []string{"alice", "bob-2", "room_42", "a b", strings.Repeat("x", MaxIDLength)}
	for _, id := range valid {
		assert.NoError(t, Validate(id), id)
	}

	invalid := []string{"", "-lead", "trail-", "two--dash", "bad!", strings.Repeat("x", MaxIDLength+1)}
	for _, id := range invalid {
		assert.ErrorIs(t, Validate(id), ErrInvalidID, id)
	}
}

func TestSetRejectsInvalid(t *testing.T) {
	s := NewStore(storage.NewMemory())
	assert.ErrorIs(t, s.Set("nope!"), ErrInvalidID)
	require.NoError(t, s.Set("custom-id"))

	id, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "custom-id", id)
}
