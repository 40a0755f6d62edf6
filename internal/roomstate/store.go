package roomstate

import (
	"sync"
	"time"
)

// RaisedHand is one participant's pending request to speak.
type RaisedHand struct {
	UserID         string     `json:"userId"`
	UserName       string     `json:"userName"`
	RaisedAt       time.Time  `json:"raisedAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy *string    `json:"acknowledgedBy,omitempty"`
}

// Store holds per-room raised-hand queues and lock flags. Operations are
// total over the room-name domain: rooms come into existence on first write
// and reads of unknown rooms observe empty state. Raising an already raised
// hand, lowering an absent one or unlocking an unlocked room are silent
// no-ops. All implementations are safe for concurrent use.
type Store interface {
	RaiseHand(roomName, userID, userName string)
	LowerHand(roomName, userID string)
	AcknowledgeHand(roomName, userID, moderatorID string)
	RaisedHands(roomName string) []RaisedHand
	ClearRaisedHands(roomName string)
	LockRoom(roomName string)
	UnlockRoom(roomName string)
	IsRoomLocked(roomName string) bool
}

type roomEntry struct {
	mu     sync.Mutex
	hands  []RaisedHand
	locked bool

	// set under both the map lock and mu when the entry is pruned;
	// writers holding a stale pointer must retry the lookup
	dead bool
}

// MemoryStore keeps room state in process memory with one mutex per room,
// so a busy queue in one room never contends with operations on another.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*roomEntry),
	}
}

var _ Store = (*MemoryStore)(nil)

// entry returns the room's entry with its mutex held, creating it if needed.
// The caller must unlock entry.mu when done.
func (s *MemoryStore) entry(roomName string) *roomEntry {
	for {
		s.mu.RLock()
		entry, exist := s.rooms[roomName]
		s.mu.RUnlock()

		if !exist {
			s.mu.Lock()
			entry, exist = s.rooms[roomName]
			if !exist {
				entry = &roomEntry{}
				s.rooms[roomName] = entry
			}
			s.mu.Unlock()
		}

		entry.mu.Lock()
		if !entry.dead {
			return entry
		}
		entry.mu.Unlock()
	}
}

// peek returns the room's entry with its mutex held, or nil when the room
// has no state. The caller must unlock entry.mu when it got one.
func (s *MemoryStore) peek(roomName string) *roomEntry {
	s.mu.RLock()
	entry, exist := s.rooms[roomName]
	s.mu.RUnlock()

	if !exist {
		return nil
	}

	entry.mu.Lock()
	if entry.dead {
		entry.mu.Unlock()
		return nil
	}
	return entry
}

// prune drops the room's entry once it carries no state, so queues of
// long-gone rooms do not accumulate in the map.
func (s *MemoryStore) prune(roomName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exist := s.rooms[roomName]
	if !exist {
		return
	}

	entry.mu.Lock()
	if len(entry.hands) == 0 && !entry.locked {
		entry.dead = true
		delete(s.rooms, roomName)
	}
	entry.mu.Unlock()
}

func (s *MemoryStore) RaiseHand(roomName, userID, userName string) {
	entry := s.entry(roomName)
	defer entry.mu.Unlock()

	for _, hand := range entry.hands {
		if hand.UserID == userID {
			return
		}
	}

	entry.hands = append(entry.hands, RaisedHand{
		UserID:   userID,
		UserName: userName,
		RaisedAt: time.Now(),
	})
}

func (s *MemoryStore) LowerHand(roomName, userID string) {
	entry := s.peek(roomName)
	if entry == nil {
		return
	}

	empty := false
	for i, hand := range entry.hands {
		if hand.UserID == userID {
			entry.hands = append(entry.hands[:i], entry.hands[i+1:]...)
			empty = len(entry.hands) == 0 && !entry.locked
			break
		}
	}
	entry.mu.Unlock()

	if empty {
		s.prune(roomName)
	}
}

func (s *MemoryStore) AcknowledgeHand(roomName, userID, moderatorID string) {
	entry := s.peek(roomName)
	if entry == nil {
		return
	}
	defer entry.mu.Unlock()

	for i := range entry.hands {
		if entry.hands[i].UserID == userID {
			now := time.Now()
			entry.hands[i].AcknowledgedAt = &now
			entry.hands[i].AcknowledgedBy = &moderatorID
			return
		}
	}
}

func (s *MemoryStore) RaisedHands(roomName string) []RaisedHand {
	entry := s.peek(roomName)
	if entry == nil {
		return []RaisedHand{}
	}
	defer entry.mu.Unlock()

	hands := make([]RaisedHand, len(entry.hands))
	copy(hands, entry.hands)
	return hands
}

func (s *MemoryStore) ClearRaisedHands(roomName string) {
	entry := s.peek(roomName)
	if entry == nil {
		return
	}

	entry.hands = nil
	empty := !entry.locked
	entry.mu.Unlock()

	if empty {
		s.prune(roomName)
	}
}

func (s *MemoryStore) LockRoom(roomName string) {
	entry := s.entry(roomName)
	defer entry.mu.Unlock()

	entry.locked = true
}

func (s *MemoryStore) UnlockRoom(roomName string) {
	entry := s.peek(roomName)
	if entry == nil {
		return
	}

	entry.locked = false
	empty := len(entry.hands) == 0
	entry.mu.Unlock()

	if empty {
		s.prune(roomName)
	}
}

func (s *MemoryStore) IsRoomLocked(roomName string) bool {
	entry := s.peek(roomName)
	if entry == nil {
		return false
	}
	defer entry.mu.Unlock()

	return entry.locked
}
