package media

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrRoomAlreadyExists  = errors.New("room already exists")
	ErrRoomNotExist       = errors.New("room not exist")
	ErrServiceUnavailable = errors.New("media service unavailable")
)

// Participant is the media layer's view of one connected peer.
type Participant struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Muted    bool   `json:"muted,omitempty"`
}

// RoomClient is the control surface of the media-routing engine. The
// call-features core talks to the engine only through this interface, which
// keeps a fake implementation one struct away in tests.
type RoomClient interface {
	CreateRoom(ctx context.Context, roomName string) error
	DeleteRoom(ctx context.Context, roomName string) error
	ListParticipants(ctx context.Context, roomName string) ([]Participant, error)
	MuteParticipant(ctx context.Context, roomName, identity string, muted bool) error
	KickParticipant(ctx context.Context, roomName, identity string) error
}

// Error wraps a failure reaching or executing against the media engine with
// the operation and room it happened on.
type Error struct {
	Op   string
	Room string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("media: %s room %q: %v", e.Op, e.Room, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, roomName string, err error) *Error {
	return &Error{Op: op, Room: roomName, Err: err}
}
