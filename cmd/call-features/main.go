package main

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/chatterhive/call-features/internal/callfeatures"
	"github.com/chatterhive/call-features/internal/coordination"
	"github.com/chatterhive/call-features/internal/media"
	"github.com/chatterhive/call-features/internal/roomstate"
	globalprotocol "github.com/chatterhive/call-features/pkg/protocol"
	"github.com/chatterhive/call-features/pkg/service"
	"github.com/chatterhive/call-features/pkg/variables"
)

type newRoomStateStore_Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *slog.Logger
}

// NewRoomStateStore picks the room-state backend: the shared coordination
// database when COORDINATION_DB points at one, the per-instance in-memory
// store otherwise.
func NewRoomStateStore(params newRoomStateStore_Params) (roomstate.Store, error) {
	path := variables.Env(variables.COORDINATION_DB_NAME, variables.COORDINATION_DB_DEFAULT)
	if path == "" {
		return roomstate.NewMemoryStore(), nil
	}

	store, err := coordination.NewStore(path, params.Logger)
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

type newMediaRoomClient_Params struct {
	fx.In

	Logger *slog.Logger
}

func NewMediaRoomClient(params newMediaRoomClient_Params) (media.RoomClient, error) {
	timeoutSeconds, err := variables.ParseInt(variables.Env(
		variables.MEDIA_REQUEST_TIMEOUT_SECONDS_NAME,
		variables.MEDIA_REQUEST_TIMEOUT_SECONDS_DEFAULT,
	))
	if err != nil {
		return nil, err
	}

	client := media.NewHttpClient(media.NewHttpClientParams{
		BaseURL: variables.Env(variables.MEDIA_CONTROL_URL_NAME, variables.MEDIA_CONTROL_URL_DEFAULT),
		Token:   variables.Env(variables.MEDIA_API_TOKEN_NAME, variables.MEDIA_API_TOKEN_DEFAULT),
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Logger:  params.Logger,
	})

	return media.NewBreakerClient(client, media.DefaultBreakerConfig(), params.Logger), nil
}

func main() {
	fx.New(
		fx.Provide(
			NewRoomStateStore,
			NewMediaRoomClient,
			callfeatures.NewNotifier,
			callfeatures.NewCallFeaturesService,

			globalprotocol.AsHttpController(callfeatures.NewCallFeaturesController),
			globalprotocol.AsHttpController(service.NewMetricsController),
		),

		service.LoggerModule,
		service.HttpModule,
	).Run()
}
