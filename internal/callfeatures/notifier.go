package callfeatures

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/chatterhive/call-features/internal/roomstate"
	"github.com/chatterhive/call-features/pkg/executils"
	"github.com/chatterhive/call-features/pkg/wsutils"
)

type websocketMessage struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

type notification struct {
	roomName string
	message  *websocketMessage
}

type roomListener struct {
	id string
	w  *wsutils.ThreadSafeWriter
}

const (
	notifyBuffer        = 256
	listenerWriteWindow = 5 * time.Second
)

// Notifier carries hand-queue and lock updates to websocket listeners
// subscribed per room. Dispatch only enqueues: the socket writes happen in
// the OnNotify loop, never in the goroutine that mutated room state, so a
// subscriber with a full send buffer cannot stall a hand operation. Writes
// carry a deadline and a listener failing its write is dropped.
type Notifier struct {
	mu        sync.Mutex
	listeners map[string]map[string]*wsutils.ThreadSafeWriter
	notifyCh  chan notification
}

func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[string]map[string]*wsutils.ThreadSafeWriter),
		notifyCh:  make(chan notification, notifyBuffer),
	}
}

func (n *Notifier) Listen(roomName, id string, w *wsutils.ThreadSafeWriter) {
	n.mu.Lock()
	defer n.mu.Unlock()

	room, exist := n.listeners[roomName]
	if !exist {
		room = make(map[string]*wsutils.ThreadSafeWriter)
		n.listeners[roomName] = room
	}
	room[id] = w
}

func (n *Notifier) Stop(roomName, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	room, exist := n.listeners[roomName]
	if !exist {
		return
	}
	delete(room, id)
	if len(room) == 0 {
		delete(n.listeners, roomName)
	}
}

func (n *Notifier) getListeners(roomName string) (result []roomListener) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, listener := range n.listeners[roomName] {
		result = append(result, roomListener{id: id, w: listener})
	}
	return
}

// dispatch never blocks. A full queue means the broadcast loop is already
// far behind; the queued snapshots supersede the dropped one anyway.
func (n *Notifier) dispatch(roomName string, message *websocketMessage) {
	select {
	case n.notifyCh <- notification{roomName: roomName, message: message}:
	default:
	}
}

// OnNotify drains the queue and fans every notification out to the room's
// listeners until ctx is done.
func (n *Notifier) OnNotify(ctx context.Context) {
	var threshold uint64 = 1000000
	var step uint64 = 2
	for {
		select {
		case <-ctx.Done():
			return
		case note := <-n.notifyCh:
			listeners := n.getListeners(note.roomName)
			if len(listeners) == 0 {
				continue
			}

			executils.ParallelExec(listeners, threshold, step, func(listener roomListener) {
				listener.w.SetWriteDeadline(time.Now().Add(listenerWriteWindow))
				if err := listener.w.WriteJSON(note.message); err != nil {
					n.Stop(note.roomName, listener.id)
					listener.w.Close()
				}
			})
		}
	}
}

func (n *Notifier) DispatchHands(roomName string, hands []roomstate.RaisedHand) {
	data, err := json.Marshal(hands)
	if err != nil {
		return
	}
	n.dispatch(roomName, &websocketMessage{
		Event: "hands-update",
		Data:  string(data),
	})
}

func (n *Notifier) DispatchLock(roomName string, locked bool) {
	n.dispatch(roomName, &websocketMessage{
		Event: "lock-update",
		Data:  strconv.FormatBool(locked),
	})
}
