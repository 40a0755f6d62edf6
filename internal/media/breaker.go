package media

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/chatterhive/call-features/internal/metrics"
)

// BreakerConfig tunes when the media client stops hammering a dead engine.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "media-control",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerClient wraps a RoomClient with a circuit breaker so that a dead or
// slow media engine fails fast as ErrServiceUnavailable instead of stacking
// up request timeouts.
type BreakerClient struct {
	client RoomClient
	cb     *gobreaker.CircuitBreaker[[]Participant]
	logger *slog.Logger
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

func NewBreakerClient(client RoomClient, config BreakerConfig, logger *slog.Logger) *BreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(config.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]Participant](gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("media circuit breaker state change",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		logger: logger,
	}
}

var _ RoomClient = (*BreakerClient)(nil)

func (c *BreakerClient) run(op, roomName string, fn func() ([]Participant, error)) ([]Participant, error) {
	result, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, newError(op, roomName, ErrServiceUnavailable)
	}
	return result, err
}

func (c *BreakerClient) CreateRoom(ctx context.Context, roomName string) error {
	_, err := c.run("create-room", roomName, func() ([]Participant, error) {
		return nil, c.client.CreateRoom(ctx, roomName)
	})
	return err
}

func (c *BreakerClient) DeleteRoom(ctx context.Context, roomName string) error {
	_, err := c.run("delete-room", roomName, func() ([]Participant, error) {
		return nil, c.client.DeleteRoom(ctx, roomName)
	})
	return err
}

func (c *BreakerClient) ListParticipants(ctx context.Context, roomName string) ([]Participant, error) {
	return c.run("list-participants", roomName, func() ([]Participant, error) {
		return c.client.ListParticipants(ctx, roomName)
	})
}

func (c *BreakerClient) MuteParticipant(ctx context.Context, roomName, identity string, muted bool) error {
	_, err := c.run("mute-participant", roomName, func() ([]Participant, error) {
		return nil, c.client.MuteParticipant(ctx, roomName, identity, muted)
	})
	return err
}

func (c *BreakerClient) KickParticipant(ctx context.Context, roomName, identity string) error {
	_, err := c.run("kick-participant", roomName, func() ([]Participant, error) {
		return nil, c.client.KickParticipant(ctx, roomName, identity)
	})
	return err
}
