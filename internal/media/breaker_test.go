package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyClient struct {
	err   error
	calls int
}

func (f *flakyClient) CreateRoom(context.Context, string) error { return f.err }
func (f *flakyClient) DeleteRoom(context.Context, string) error { return f.err }

func (f *flakyClient) ListParticipants(context.Context, string) ([]Participant, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []Participant{{Identity: "alice"}}, nil
}

func (f *flakyClient) MuteParticipant(context.Context, string, string, bool) error {
	f.calls++
	return f.err
}

func (f *flakyClient) KickParticipant(context.Context, string, string) error { return f.err }

func newTestBreaker(client RoomClient) *BreakerClient {
	config := BreakerConfig{
		Name:         "test-breaker",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	}
	return NewBreakerClient(client, config, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBreakerPassesThrough(t *testing.T) {
	breaker := newTestBreaker(&flakyClient{})

	participants, err := breaker.ListParticipants(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, participants, 1)

	require.NoError(t, breaker.MuteParticipant(context.Background(), "r1", "alice", true))
}

func TestBreakerPropagatesUnderlyingError(t *testing.T) {
	wantErr := errors.New("boom")
	breaker := newTestBreaker(&flakyClient{err: wantErr})

	err := breaker.MuteParticipant(context.Background(), "r1", "alice", true)
	assert.ErrorIs(t, err, wantErr)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := &flakyClient{err: errors.New("boom")}
	breaker := newTestBreaker(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := breaker.ListParticipants(ctx, "r1")
		require.Error(t, err)
	}

	callsBefore := client.calls
	_, err := breaker.ListParticipants(ctx, "r1")
	require.ErrorIs(t, err, ErrServiceUnavailable)

	var mediaErr *Error
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, "list-participants", mediaErr.Op)
	assert.Equal(t, "r1", mediaErr.Room)

	// the rejected call never reached the wrapped client
	assert.Equal(t, callsBefore, client.calls)
}
