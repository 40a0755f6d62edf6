package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatterhive/call-features/internal/metrics"
)

type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

type NewHttpClientParams struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewHttpClient(params NewHttpClientParams) *httpClient {
	return &httpClient{
		baseURL: strings.TrimSuffix(params.BaseURL, "/"),
		token:   params.Token,
		client: &http.Client{
			Timeout: params.Timeout,
		},
		logger: params.Logger,
	}
}

var _ RoomClient = (*httpClient)(nil)

type roomCreateRequest struct {
	RoomID string `json:"roomId"`
}

type participantListResponse struct {
	Participants []Participant `json:"participants"`
}

type participantMuteRequest struct {
	Muted bool `json:"muted"`
}

func (c *httpClient) do(ctx context.Context, op, roomName, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return newError(op, roomName, err)
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return newError(op, roomName, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.client.Do(request)
	if err != nil {
		metrics.MediaRequests.WithLabelValues(op, "error").Inc()
		c.logger.Error("media control request failed",
			slog.String("op", op),
			slog.String("room", roomName),
			slog.String("err", err.Error()))
		return newError(op, roomName, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusConflict:
		metrics.MediaRequests.WithLabelValues(op, "conflict").Inc()
		return newError(op, roomName, ErrRoomAlreadyExists)
	case response.StatusCode == http.StatusNotFound:
		metrics.MediaRequests.WithLabelValues(op, "not_found").Inc()
		return newError(op, roomName, ErrRoomNotExist)
	case response.StatusCode < 200 || response.StatusCode >= 300:
		metrics.MediaRequests.WithLabelValues(op, "error").Inc()
		return newError(op, roomName, fmt.Errorf("unexpected status %s", response.Status))
	}

	metrics.MediaRequests.WithLabelValues(op, "ok").Inc()
	if out != nil {
		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return newError(op, roomName, err)
		}
	}
	return nil
}

func (c *httpClient) CreateRoom(ctx context.Context, roomName string) error {
	return c.do(ctx, "create-room", roomName, http.MethodPost, "/rooms", &roomCreateRequest{RoomID: roomName}, nil)
}

func (c *httpClient) DeleteRoom(ctx context.Context, roomName string) error {
	return c.do(ctx, "delete-room", roomName, http.MethodDelete, "/rooms/"+url.PathEscape(roomName), nil, nil)
}

func (c *httpClient) ListParticipants(ctx context.Context, roomName string) ([]Participant, error) {
	response := new(participantListResponse)
	path := "/rooms/" + url.PathEscape(roomName) + "/participants"
	if err := c.do(ctx, "list-participants", roomName, http.MethodGet, path, nil, response); err != nil {
		return nil, err
	}
	return response.Participants, nil
}

func (c *httpClient) MuteParticipant(ctx context.Context, roomName, identity string, muted bool) error {
	path := "/rooms/" + url.PathEscape(roomName) + "/participants/" + url.PathEscape(identity) + "/mute"
	return c.do(ctx, "mute-participant", roomName, http.MethodPost, path, &participantMuteRequest{Muted: muted}, nil)
}

func (c *httpClient) KickParticipant(ctx context.Context, roomName, identity string) error {
	path := "/rooms/" + url.PathEscape(roomName) + "/participants/" + url.PathEscape(identity)
	return c.do(ctx, "kick-participant", roomName, http.MethodDelete, path, nil, nil)
}
