package presence

import (
	"testing"

	"github.com/nikelwish/p2p-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct{ from, to Status }

func newRecordingTracker(t *testing.T) (*Tracker, *[]transition, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	tr := NewTracker(kv, nil)
	var seen []transition
	tr.OnChange(func(from, to Status) { seen = append(seen, transition{from, to}) })
	return tr, &seen, kv
}

func TestSetStatusTogglesAway(t *testing.T) {
	tr, seen, kv := newRecordingTracker(t)

	require.NoError(t, tr.SetStatus(Away))
	assert.Equal(t, Away, tr.Status())
	require.NoError(t, tr.SetStatus(Available))
	assert.Equal(t, Available, tr.Status())

	assert.Equal(t, []transition{{Available, Away}, {Away, Available}}, *seen)

	v, _, _ := kv.Get(storage.KeyPresence)
	assert.Equal(t, "available", v)
}

func TestSetStatusRejectedWhileBusy(t *testing.T) {
	tr, _, _ := newRecordingTracker(t)
	tr.MarkBusy()

	assert.ErrorIs(t, tr.SetStatus(Away), ErrBusy)
	assert.ErrorIs(t, tr.SetStatus(Available), ErrBusy)
	assert.Equal(t, Busy, tr.Status())
}

func TestSetStatusRejectsBusyAndUnknown(t *testing.T) {
	tr, _, _ := newRecordingTracker(t)
	assert.ErrorIs(t, tr.SetStatus(Busy), ErrInvalidStatus)
	assert.ErrorIs(t, tr.SetStatus("offline"), ErrInvalidStatus)
}

func TestMarkBusyFromAwayPassesThroughAvailable(t *testing.T) {
	tr, seen, _ := newRecordingTracker(t)
	require.NoError(t, tr.SetStatus(Away))
	*seen = nil

	tr.MarkBusy()
	tr.MarkBusy()
	assert.Equal(t, []transition{{Away, Available}, {Available, Busy}}, *seen)

	tr.Release()
	tr.Release()
	assert.Equal(t, Available, tr.Status())
	assert.Len(t, *seen, 3)
}

func TestRestoreOnlyAway(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(storage.KeyPresence, "busy"))
	assert.Equal(t, Available, NewTracker(kv, nil).Restore())

	require.NoError(t, kv.Set(storage.KeyPresence, "away"))
	assert.Equal(t, Away, NewTracker(kv, nil).Restore())
}
