package media

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHttpClient(t *testing.T, handler http.HandlerFunc) *httpClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewHttpClient(NewHttpClientParams{
		BaseURL: server.URL,
		Token:   "secret",
		Timeout: 5 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestHttpClientListParticipants(t *testing.T) {
	client := newTestHttpClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rooms/r1/participants", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(participantListResponse{
			Participants: []Participant{{Identity: "alice"}, {Identity: "bob"}},
		})
	})

	participants, err := client.ListParticipants(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "alice", participants[0].Identity)
}

func TestHttpClientMuteParticipant(t *testing.T) {
	var got participantMuteRequest
	client := newTestHttpClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rooms/r1/participants/alice/mute", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.MuteParticipant(context.Background(), "r1", "alice", true))
	assert.True(t, got.Muted)
}

func TestHttpClientRoomNotExist(t *testing.T) {
	client := newTestHttpClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.KickParticipant(context.Background(), "r1", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoomNotExist)

	var mediaErr *Error
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, "kick-participant", mediaErr.Op)
	assert.Equal(t, "r1", mediaErr.Room)
}

func TestHttpClientCreateRoomConflict(t *testing.T) {
	client := newTestHttpClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
	})

	err := client.CreateRoom(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrRoomAlreadyExists)
}

func TestHttpClientTransportFailure(t *testing.T) {
	client := NewHttpClient(NewHttpClientParams{
		BaseURL: "http://127.0.0.1:1",
		Timeout: time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := client.ListParticipants(context.Background(), "r1")
	var mediaErr *Error
	assert.ErrorAs(t, err, &mediaErr)
}
