package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AgentStats returns endpoint counts per installed agent.
// GET /v1/stats/agents
func (h *Handler) AgentStats(c echo.Context) error {
	stats, err := h.svc.AgentStats(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// EndpointStats returns message counts per endpoint.
// GET /v1/stats/endpoints
func (h *Handler) EndpointStats(c echo.Context) error {
	stats, err := h.svc.EndpointCommunicationStats(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// MessageStats returns hourly message counts for the last 24 hours, most
// recent hour first.
// GET /v1/stats/messages
func (h *Handler) MessageStats(c echo.Context) error {
	bins, err := h.svc.RecentMessageStats(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hourly": bins})
}

// TaskStats returns task status counts.
// GET /v1/stats/tasks
func (h *Handler) TaskStats(c echo.Context) error {
	stats, err := h.svc.TaskStats(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
