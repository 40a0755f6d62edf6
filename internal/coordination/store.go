package coordination

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/chatterhive/call-features/internal/roomstate"
)

const (
	handsKeyPrefix = "hands:"
	lockKeyPrefix  = "lock:"
)

// Store implements roomstate.Store on top of a shared transactional
// key-value database, so several stateless service instances pointed at the
// same file agree on room state. Each operation runs as one serializable
// transaction; room state is linearizable the same way the in-memory store's
// per-room mutex makes it.
//
// The roomstate contract is errorless, so database failures (which for an
// embedded store mean a closed or corrupted handle) are logged rather than
// surfaced.
type Store struct {
	db     *buntdb.DB
	logger *slog.Logger
}

// NewStore opens the shared database at path. The special path ":memory:"
// keeps the database in process memory, which the tests use.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

var _ roomstate.Store = (*Store)(nil)

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) fail(op, roomName string, err error) {
	s.logger.Error("coordination store operation failed",
		slog.String("op", op),
		slog.String("room", roomName),
		slog.String("err", err.Error()))
}

func decodeHands(raw string) ([]roomstate.RaisedHand, error) {
	var hands []roomstate.RaisedHand
	if err := json.Unmarshal([]byte(raw), &hands); err != nil {
		return nil, err
	}
	return hands, nil
}

// updateHands rewrites the room's queue inside one transaction. fn returns
// the new queue and whether anything changed.
func (s *Store) updateHands(op, roomName string, fn func(hands []roomstate.RaisedHand) ([]roomstate.RaisedHand, bool)) {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var hands []roomstate.RaisedHand

		raw, err := tx.Get(handsKeyPrefix + roomName)
		switch {
		case err == nil:
			if hands, err = decodeHands(raw); err != nil {
				return err
			}
		case errors.Is(err, buntdb.ErrNotFound):
		default:
			return err
		}

		next, changed := fn(hands)
		if !changed {
			return nil
		}

		if len(next) == 0 {
			_, err := tx.Delete(handsKeyPrefix + roomName)
			if errors.Is(err, buntdb.ErrNotFound) {
				return nil
			}
			return err
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(handsKeyPrefix+roomName, string(encoded), nil)
		return err
	})
	if err != nil {
		s.fail(op, roomName, err)
	}
}

func (s *Store) RaiseHand(roomName, userID, userName string) {
	s.updateHands("raise-hand", roomName, func(hands []roomstate.RaisedHand) ([]roomstate.RaisedHand, bool) {
		for _, hand := range hands {
			if hand.UserID == userID {
				return hands, false
			}
		}
		return append(hands, roomstate.RaisedHand{
			UserID:   userID,
			UserName: userName,
			RaisedAt: time.Now(),
		}), true
	})
}

func (s *Store) LowerHand(roomName, userID string) {
	s.updateHands("lower-hand", roomName, func(hands []roomstate.RaisedHand) ([]roomstate.RaisedHand, bool) {
		for i, hand := range hands {
			if hand.UserID == userID {
				return append(hands[:i], hands[i+1:]...), true
			}
		}
		return hands, false
	})
}

func (s *Store) AcknowledgeHand(roomName, userID, moderatorID string) {
	s.updateHands("acknowledge-hand", roomName, func(hands []roomstate.RaisedHand) ([]roomstate.RaisedHand, bool) {
		for i := range hands {
			if hands[i].UserID == userID {
				now := time.Now()
				hands[i].AcknowledgedAt = &now
				hands[i].AcknowledgedBy = &moderatorID
				return hands, true
			}
		}
		return hands, false
	})
}

func (s *Store) RaisedHands(roomName string) []roomstate.RaisedHand {
	hands := []roomstate.RaisedHand{}
	err := s.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(handsKeyPrefix + roomName)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		hands, err = decodeHands(raw)
		return err
	})
	if err != nil {
		s.fail("raised-hands", roomName, err)
		return []roomstate.RaisedHand{}
	}
	return hands
}

func (s *Store) ClearRaisedHands(roomName string) {
	s.updateHands("clear-raised-hands", roomName, func(hands []roomstate.RaisedHand) ([]roomstate.RaisedHand, bool) {
		return nil, len(hands) > 0
	})
}

func (s *Store) LockRoom(roomName string) {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(lockKeyPrefix+roomName, "true", nil)
		return err
	})
	if err != nil {
		s.fail("lock-room", roomName, err)
	}
}

func (s *Store) UnlockRoom(roomName string) {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(lockKeyPrefix + roomName)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		s.fail("unlock-room", roomName, err)
	}
}

func (s *Store) IsRoomLocked(roomName string) bool {
	locked := false
	err := s.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(lockKeyPrefix + roomName)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		locked = raw == "true"
		return nil
	})
	if err != nil {
		s.fail("is-room-locked", roomName, err)
		return false
	}
	return locked
}
