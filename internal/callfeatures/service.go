package callfeatures

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/chatterhive/call-features/internal/media"
	"github.com/chatterhive/call-features/internal/metrics"
	"github.com/chatterhive/call-features/internal/roomstate"
)

// muteAllParallelism bounds the mute fan-out so a big room does not open
// hundreds of connections against the media engine at once.
const muteAllParallelism = 8

// CallFeaturesService coordinates raise-hand queueing, moderator actions
// and room lock state. Hand and lock state live in the injected
// roomstate.Store and stay authoritative there no matter what the media
// engine does; media calls always happen outside the store's locks.
//
// Moderator identifiers are accepted on every moderator action but not
// permission-checked here. Authorization belongs to the middleware in front
// of this service.
type CallFeaturesService struct {
	store    roomstate.Store
	media    media.RoomClient
	notifier *Notifier
	logger   *slog.Logger
}

type NewCallFeaturesService_Params struct {
	fx.In

	Store    roomstate.Store
	Media    media.RoomClient
	Notifier *Notifier
	Logger   *slog.Logger
}

func NewCallFeaturesService(params NewCallFeaturesService_Params) *CallFeaturesService {
	return &CallFeaturesService{
		store:    params.Store,
		media:    params.Media,
		notifier: params.Notifier,
		logger:   params.Logger,
	}
}

func requireIdents(idents ...string) error {
	for i, ident := range idents {
		if ident != "" {
			continue
		}
		if i == 0 {
			return ErrEmptyRoomName
		}
		return ErrEmptyUserIdentity
	}
	return nil
}

func (s *CallFeaturesService) publishHands(roomName string) {
	hands := s.store.RaisedHands(roomName)
	metrics.RaisedHands.WithLabelValues(roomName).Set(float64(len(hands)))
	s.notifier.DispatchHands(roomName, hands)
}

// StartCall creates the room at the media layer.
func (s *CallFeaturesService) StartCall(ctx context.Context, roomName string) error {
	if err := requireIdents(roomName); err != nil {
		return err
	}
	return s.media.CreateRoom(ctx, roomName)
}

// EndCall deletes the room at the media layer, then drops the raised-hand
// queue and the lock flag. Local cleanup runs even when the media delete
// fails, so a torn-down room never leaves a stale lock behind.
func (s *CallFeaturesService) EndCall(ctx context.Context, roomName string) error {
	if err := requireIdents(roomName); err != nil {
		return err
	}

	err := s.media.DeleteRoom(ctx, roomName)

	s.store.ClearRaisedHands(roomName)
	s.store.UnlockRoom(roomName)
	metrics.RaisedHands.DeleteLabelValues(roomName)
	s.notifier.DispatchHands(roomName, s.store.RaisedHands(roomName))

	return err
}

func (s *CallFeaturesService) RaiseHand(roomName, userID, userName string) error {
	if err := requireIdents(roomName, userID); err != nil {
		return err
	}
	s.store.RaiseHand(roomName, userID, userName)
	s.publishHands(roomName)
	return nil
}

func (s *CallFeaturesService) LowerHand(roomName, userID string) error {
	if err := requireIdents(roomName, userID); err != nil {
		return err
	}
	s.store.LowerHand(roomName, userID)
	s.publishHands(roomName)
	return nil
}

func (s *CallFeaturesService) AcknowledgeHand(roomName, userID, moderatorID string) error {
	if err := requireIdents(roomName, userID); err != nil {
		return err
	}
	s.store.AcknowledgeHand(roomName, userID, moderatorID)
	s.publishHands(roomName)
	return nil
}

func (s *CallFeaturesService) RaisedHands(roomName string) ([]roomstate.RaisedHand, error) {
	if err := requireIdents(roomName); err != nil {
		return nil, err
	}
	return s.store.RaisedHands(roomName), nil
}

func (s *CallFeaturesService) ClearRaisedHands(roomName string) error {
	if err := requireIdents(roomName); err != nil {
		return err
	}
	s.store.ClearRaisedHands(roomName)
	s.publishHands(roomName)
	return nil
}

func (s *CallFeaturesService) MuteParticipant(ctx context.Context, roomName, userID, moderatorID string) error {
	if err := requireIdents(roomName, userID); err != nil {
		return err
	}
	return s.media.MuteParticipant(ctx, roomName, userID, true)
}

func (s *CallFeaturesService) UnmuteParticipant(ctx context.Context, roomName, userID, moderatorID string) error {
	if err := requireIdents(roomName, userID); err != nil {
		return err
	}
	return s.media.MuteParticipant(ctx, roomName, userID, false)
}

// MuteAll mutes every participant except the acting moderator. The fan-out
// is best-effort: one participant failing to mute must not stop the rest,
// so per-participant failures are logged and counted while the call itself
// succeeds. Only a failure to list the participants fails the call.
func (s *CallFeaturesService) MuteAll(ctx context.Context, roomName, moderatorID string) error {
	if err := requireIdents(roomName); err != nil {
		return err
	}

	participants, err := s.media.ListParticipants(ctx, roomName)
	if err != nil {
		return err
	}

	group := new(errgroup.Group)
	group.SetLimit(muteAllParallelism)
	for _, participant := range participants {
		if participant.Identity == moderatorID {
			continue
		}

		participant := participant
		group.Go(func() error {
			if err := s.media.MuteParticipant(ctx, roomName, participant.Identity, true); err != nil {
				metrics.MuteFanoutFailures.Inc()
				s.logger.Warn("mute-all: unable to mute participant",
					slog.String("room", roomName),
					slog.String("identity", participant.Identity),
					slog.String("err", err.Error()))
			}
			return nil
		})
	}
	group.Wait()

	return nil
}

// KickParticipant lowers the user's hand first, unconditionally, then asks
// the media engine to remove them. A kicked user must not linger in the
// queue even when the media call fails; the media error still reaches the
// caller.
func (s *CallFeaturesService) KickParticipant(ctx context.Context, roomName, userID, adminID string) error {
	if err := requireIdents(roomName, userID); err != nil {
		return err
	}

	s.store.LowerHand(roomName, userID)
	s.publishHands(roomName)

	return s.media.KickParticipant(ctx, roomName, userID)
}

func (s *CallFeaturesService) LockRoom(roomName, adminID string) error {
	if err := requireIdents(roomName); err != nil {
		return err
	}
	s.store.LockRoom(roomName)
	s.notifier.DispatchLock(roomName, true)
	return nil
}

func (s *CallFeaturesService) UnlockRoom(roomName, adminID string) error {
	if err := requireIdents(roomName); err != nil {
		return err
	}
	s.store.UnlockRoom(roomName)
	s.notifier.DispatchLock(roomName, false)
	return nil
}

func (s *CallFeaturesService) IsRoomLocked(roomName string) (bool, error) {
	if err := requireIdents(roomName); err != nil {
		return false, err
	}
	return s.store.IsRoomLocked(roomName), nil
}
