package callfeatures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/chatterhive/call-features/internal/media"
	globalprotocol "github.com/chatterhive/call-features/pkg/protocol"
	"github.com/chatterhive/call-features/pkg/wsutils"
)

type errResponse struct {
	Message string `json:"message"`
}

type callFeaturesController struct {
	callFeatures *CallFeaturesService
	notifier     *Notifier
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// httpError maps the service error taxonomy onto response classes: invalid
// input is the caller's fault, a rejected breaker means the media engine is
// down, any other media failure is a bad gateway.
func httpError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, errResponse{Message: err.Error()})
	case errors.Is(err, media.ErrServiceUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, errResponse{Message: err.Error()})
	}

	var mediaErr *media.Error
	if errors.As(err, &mediaErr) {
		return echo.NewHTTPError(http.StatusBadGateway, errResponse{Message: err.Error()})
	}
	return err
}

func (ctrl *callFeaturesController) CallStart(c echo.Context) error {
	if err := ctrl.callFeatures.StartCall(c.Request().Context(), c.Param("room")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (ctrl *callFeaturesController) CallEnd(c echo.Context) error {
	if err := ctrl.callFeatures.EndCall(c.Request().Context(), c.Param("room")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type raiseHandRequest struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func (ctrl *callFeaturesController) HandRaise(c echo.Context) error {
	req := new(raiseHandRequest)
	if err := c.Bind(req); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	if err := ctrl.callFeatures.RaiseHand(c.Param("room"), req.UserID, req.UserName); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (ctrl *callFeaturesController) HandLower(c echo.Context) error {
	if err := ctrl.callFeatures.LowerHand(c.Param("room"), c.Param("user")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type moderatorRequest struct {
	ModeratorID string `json:"moderatorId"`
}

func (ctrl *callFeaturesController) HandAcknowledge(c echo.Context) error {
	req := new(moderatorRequest)
	if err := c.Bind(req); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	if err := ctrl.callFeatures.AcknowledgeHand(c.Param("room"), c.Param("user"), req.ModeratorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type raisedHandsResponse struct {
	Hands any `json:"hands"`
}

func (ctrl *callFeaturesController) HandList(c echo.Context) error {
	hands, err := ctrl.callFeatures.RaisedHands(c.Param("room"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, raisedHandsResponse{Hands: hands})
}

func (ctrl *callFeaturesController) HandClear(c echo.Context) error {
	req := new(moderatorRequest)
	if err := c.Bind(req); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	roomName := c.Param("room")
	if err := ctrl.callFeatures.ClearRaisedHands(roomName); err != nil {
		return httpError(err)
	}

	ctrl.logger.Debug("raised hands cleared",
		slog.String("room", roomName),
		slog.String("moderator", req.ModeratorID))
	return c.NoContent(http.StatusOK)
}

type muteRequest struct {
	Muted       bool   `json:"muted"`
	ModeratorID string `json:"moderatorId"`
}

func (ctrl *callFeaturesController) ParticipantMute(c echo.Context) error {
	req := &muteRequest{Muted: true}
	if err := c.Bind(req); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	ctx := c.Request().Context()
	roomName, userID := c.Param("room"), c.Param("user")

	var err error
	if req.Muted {
		err = ctrl.callFeatures.MuteParticipant(ctx, roomName, userID, req.ModeratorID)
	} else {
		err = ctrl.callFeatures.UnmuteParticipant(ctx, roomName, userID, req.ModeratorID)
	}
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (ctrl *callFeaturesController) MuteAll(c echo.Context) error {
	req := new(moderatorRequest)
	if err := c.Bind(req); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	if err := ctrl.callFeatures.MuteAll(c.Request().Context(), c.Param("room"), req.ModeratorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (ctrl *callFeaturesController) ParticipantKick(c echo.Context) error {
	req := new(moderatorRequest)
	if err := c.Bind(req); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	if err := ctrl.callFeatures.KickParticipant(c.Request().Context(), c.Param("room"), c.Param("user"), req.ModeratorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (ctrl *callFeaturesController) RoomLock(c echo.Context) error {
	req := new(moderatorRequest)
	if err := c.Bind(req); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	if err := ctrl.callFeatures.LockRoom(c.Param("room"), req.ModeratorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (ctrl *callFeaturesController) RoomUnlock(c echo.Context) error {
	req := new(moderatorRequest)
	if err := c.Bind(req); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	if err := ctrl.callFeatures.UnlockRoom(c.Param("room"), req.ModeratorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type roomLockResponse struct {
	Locked bool `json:"locked"`
}

func (ctrl *callFeaturesController) RoomLockState(c echo.Context) error {
	locked, err := ctrl.callFeatures.IsRoomLocked(c.Param("room"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, roomLockResponse{Locked: locked})
}

func (ctrl *callFeaturesController) RoomEvents(c echo.Context) error {
	roomName := c.Param("room")
	if roomName == "" {
		return httpError(ErrEmptyRoomName)
	}

	conn, err := ctrl.upgrader.Upgrade(c.Response().Writer, c.Request(), nil)
	if err != nil {
		ctrl.logger.Error(fmt.Sprintf("Unable upgrade request %+v", c.Request()))
		return err
	}

	w := wsutils.NewThreadSafeWriter(conn)
	defer w.Close()

	id := uuid.NewString()
	ctrl.notifier.Listen(roomName, id, w)
	defer ctrl.notifier.Stop(roomName, id)

	// subscribers never send anything meaningful; the read loop exists to
	// notice the peer going away, which the hijacked request context does
	// not report
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (ctrl *callFeaturesController) Resolve(router *echo.Echo) error {
	go ctrl.notifier.OnNotify(context.Background())

	baseURL := "/rooms/:room"

	router.POST(baseURL+"/call", ctrl.CallStart)
	router.DELETE(baseURL+"/call", ctrl.CallEnd)

	router.POST(baseURL+"/hands", ctrl.HandRaise)
	router.GET(baseURL+"/hands", ctrl.HandList)
	router.DELETE(baseURL+"/hands", ctrl.HandClear)
	router.DELETE(baseURL+"/hands/:user", ctrl.HandLower)
	router.POST(baseURL+"/hands/:user/ack", ctrl.HandAcknowledge)

	router.POST(baseURL+"/participants/:user/mute", ctrl.ParticipantMute)
	router.DELETE(baseURL+"/participants/:user", ctrl.ParticipantKick)
	router.POST(baseURL+"/mute-all", ctrl.MuteAll)

	router.PUT(baseURL+"/lock", ctrl.RoomLock)
	router.DELETE(baseURL+"/lock", ctrl.RoomUnlock)
	router.GET(baseURL+"/lock", ctrl.RoomLockState)

	router.GET(baseURL+"/events", ctrl.RoomEvents)

	return nil
}

var _ globalprotocol.HttpResolvable = (*callFeaturesController)(nil)

type newCallFeaturesController_Params struct {
	fx.In

	CallFeatures *CallFeaturesService
	Notifier     *Notifier
	Logger       *slog.Logger
}

func NewCallFeaturesController(params newCallFeaturesController_Params) *callFeaturesController {
	return &callFeaturesController{
		callFeatures: params.CallFeatures,
		notifier:     params.Notifier,
		logger:       params.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}
