package callfeatures

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterhive/call-features/internal/roomstate"
	"github.com/chatterhive/call-features/pkg/wsutils"
)

func newRunningNotifier(t *testing.T) *Notifier {
	t.Helper()

	notifier := NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go notifier.OnNotify(ctx)
	return notifier
}

func dialNotifier(t *testing.T, notifier *Notifier, roomName string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		notifier.Listen(roomName, "listener-1", wsutils.NewThreadSafeWriter(conn))
		close(registered)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
	})

	select {
	case <-registered:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never registered")
	}
	return conn
}

func TestNotifierDispatchHands(t *testing.T) {
	notifier := newRunningNotifier(t)
	conn := dialNotifier(t, notifier, "room")

	notifier.DispatchHands("room", []roomstate.RaisedHand{
		{UserID: "alice", UserName: "Alice"},
	})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	message := new(websocketMessage)
	require.NoError(t, conn.ReadJSON(message))
	assert.Equal(t, "hands-update", message.Event)

	var hands []roomstate.RaisedHand
	require.NoError(t, json.Unmarshal([]byte(message.Data), &hands))
	require.Len(t, hands, 1)
	assert.Equal(t, "alice", hands[0].UserID)
}

func TestNotifierDispatchLock(t *testing.T) {
	notifier := newRunningNotifier(t)
	conn := dialNotifier(t, notifier, "room")

	notifier.DispatchLock("room", true)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	message := new(websocketMessage)
	require.NoError(t, conn.ReadJSON(message))
	assert.Equal(t, "lock-update", message.Event)
	assert.Equal(t, "true", message.Data)
}

func TestNotifierScopedToRoom(t *testing.T) {
	notifier := newRunningNotifier(t)
	conn := dialNotifier(t, notifier, "room-a")

	notifier.DispatchHands("room-b", []roomstate.RaisedHand{{UserID: "bob"}})
	notifier.DispatchLock("room-a", false)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	message := new(websocketMessage)
	require.NoError(t, conn.ReadJSON(message))
	assert.Equal(t, "lock-update", message.Event)
}

func TestNotifierStopRemovesListener(t *testing.T) {
	notifier := newRunningNotifier(t)
	dialNotifier(t, notifier, "room")

	notifier.Stop("room", "listener-1")
	assert.Empty(t, notifier.getListeners("room"))
}

// Dispatch must only enqueue: with nothing draining the queue, a burst far
// past the buffer size still returns immediately instead of stalling the
// hand operation that triggered it.
func TestNotifierDispatchNeverBlocks(t *testing.T) {
	notifier := NewNotifier()
	dialNotifier(t, notifier, "room")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < notifyBuffer*4; i++ {
			notifier.DispatchLock("room", true)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch blocked on a full notification queue")
	}
}

func TestNotifierDropsListenerOnWriteFailure(t *testing.T) {
	notifier := newRunningNotifier(t)
	conn := dialNotifier(t, notifier, "room")
	conn.Close()

	require.Eventually(t, func() bool {
		notifier.DispatchLock("room", true)
		return len(notifier.getListeners("room")) == 0
	}, 5*time.Second, 50*time.Millisecond)
}
