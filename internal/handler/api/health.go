package api

import (
	xhttp "FeedRelay/pkg/http"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness and whether the feed is connected.
type HealthHandler struct {
	connected func() bool
}

func NewHealthHandler(connected func() bool) *HealthHandler {
	return &HealthHandler{connected: connected}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	up := h.connected()
	status := map[string]interface{}{"feed_connected": up}
	if !up {
		return xhttp.ServiceUnavailableResponse(c, status)
	}
	return xhttp.SuccessResponse(c, status)
}
