package contacts

import (
	"testing"
	"time"

	"github.com/nikelwish/p2p-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookPersistsAcrossLoads(t *testing.T) {
	kv := storage.NewMemory()
	b, err := Load(kv)
	require.NoError(t, err)

	_, err = b.Add("peer-b", "Bob")
	require.NoError(t, err)
	_, err = b.Add("peer-a", "Alice")
	require.NoError(t, err)

	reloaded, err := Load(kv)
	require.NoError(t, err)
	list := reloaded.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Alice", list[0].DisplayName)
	assert.Equal(t, "Bob", list[1].DisplayName)
	assert.True(t, reloaded.IsContact("peer-a"))
	assert.False(t, reloaded.IsContact("stranger"))
}

func TestAddKeepsNameWhenEmpty(t *testing.T) {
	b, err := Load(storage.NewMemory())
	require.NoError(t, err)

	_, err = b.Add("p1", "Carol")
	require.NoError(t, err)
	c, err := b.Add("p1", "")
	require.NoError(t, err)
	assert.Equal(t, "Carol", c.DisplayName)

	_, err = b.Add("", "x")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestRenameAndRemove(t *testing.T) {
	b, err := Load(storage.NewMemory())
	require.NoError(t, err)
	_, err = b.Add("p1", "Dave")
	require.NoError(t, err)

	require.NoError(t, b.Rename("p1", "David"))
	c, ok := b.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "David", c.Name())

	require.NoError(t, b.Remove("p1"))
	assert.False(t, b.IsContact("p1"))
	assert.ErrorIs(t, b.Remove("p1"), ErrNotFound)
	assert.ErrorIs(t, b.Rename("p1", "x"), ErrNotFound)
}

func TestTouch(t *testing.T) {
	b, err := Load(storage.NewMemory())
	require.NoError(t, err)
	_, err = b.Add("p1", "")
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.Touch("p1", at))
	require.NoError(t, b.Touch("unknown", at))

	c, _ := b.Get("p1")
	assert.True(t, c.LastSeenAt.Equal(at))
	assert.Equal(t, "p1", c.Name())
}
