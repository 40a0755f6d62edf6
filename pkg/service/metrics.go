package service

import (
	echo "github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	globalprotocol "github.com/chatterhive/call-features/pkg/protocol"
)

type metricsController struct{}

func (*metricsController) Resolve(router *echo.Echo) error {
	router.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return nil
}

var _ globalprotocol.HttpResolvable = (*metricsController)(nil)

func NewMetricsController() *metricsController {
	return &metricsController{}
}
