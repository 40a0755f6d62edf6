package coordination

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := NewStore(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestCoordinationRaiseHandIdempotent(t *testing.T) {
	store := newTestStore(t)

	store.RaiseHand("room", "alice", "Alice")
	store.RaiseHand("room", "alice", "Alice")

	hands := store.RaisedHands("room")
	require.Len(t, hands, 1)
	assert.Equal(t, "alice", hands[0].UserID)
}

func TestCoordinationFIFOAndAcknowledge(t *testing.T) {
	store := newTestStore(t)

	store.RaiseHand("room", "alice", "Alice")
	store.RaiseHand("room", "bob", "Bob")
	store.AcknowledgeHand("room", "alice", "mod1")

	hands := store.RaisedHands("room")
	require.Len(t, hands, 2)
	assert.Equal(t, "alice", hands[0].UserID)
	assert.Equal(t, "bob", hands[1].UserID)

	require.NotNil(t, hands[0].AcknowledgedBy)
	assert.Equal(t, "mod1", *hands[0].AcknowledgedBy)
	assert.Nil(t, hands[1].AcknowledgedBy)
}

func TestCoordinationLowerAndClear(t *testing.T) {
	store := newTestStore(t)

	store.RaiseHand("room-a", "alice", "Alice")
	store.RaiseHand("room-a", "bob", "Bob")
	store.RaiseHand("room-b", "carol", "Carol")

	store.LowerHand("room-a", "alice")
	require.Len(t, store.RaisedHands("room-a"), 1)

	store.LowerHand("room-a", "nobody")
	require.Len(t, store.RaisedHands("room-a"), 1)

	store.ClearRaisedHands("room-a")
	assert.Empty(t, store.RaisedHands("room-a"))
	assert.Len(t, store.RaisedHands("room-b"), 1)
}

func TestCoordinationLockToggle(t *testing.T) {
	store := newTestStore(t)

	assert.False(t, store.IsRoomLocked("room"))

	store.LockRoom("room")
	assert.True(t, store.IsRoomLocked("room"))

	store.UnlockRoom("room")
	assert.False(t, store.IsRoomLocked("room"))

	store.UnlockRoom("room")
	assert.False(t, store.IsRoomLocked("room"))
}

func TestCoordinationConcurrentRaise(t *testing.T) {
	store := newTestStore(t)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			store.RaiseHand("room", fmt.Sprintf("user-%d", i), "")
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.RaisedHands("room"), n)
}
