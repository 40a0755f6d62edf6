package callfeatures

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyRoomName     = fmt.Errorf("%w: empty room name", ErrInvalidInput)
	ErrEmptyUserIdentity = fmt.Errorf("%w: empty user identity", ErrInvalidInput)
)
