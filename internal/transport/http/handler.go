// Package http provides the REST glue over the control server core.
//
// Handlers convert requests into service calls and results into responses;
// no orchestration logic lives here. Authentication is expected to be
// terminated in front of this server.
package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unr-deaddrop/server/internal/core/contract"
	"github.com/unr-deaddrop/server/internal/core/install"
	"github.com/unr-deaddrop/server/internal/core/staging"
	"github.com/unr-deaddrop/server/internal/policy"
	"github.com/unr-deaddrop/server/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Packages
	e.POST("/v1/agents/install", h.InstallAgent)
	e.GET("/v1/agents", h.ListAgents)
	e.GET("/v1/agents/:agent_id", h.GetAgent)
	e.DELETE("/v1/agents/:agent_id", h.DeleteAgent)
	e.GET("/v1/agents/:agent_id/metadata", h.AgentMetadata)
	e.GET("/v1/agents/:agent_id/commands", h.AgentCommands)
	e.GET("/v1/agents/:agent_id/protocols", h.AgentProtocols)
	e.POST("/v1/protocols/install", h.InstallProtocol)
	e.GET("/v1/protocols", h.ListProtocols)

	// Payloads and endpoints
	e.POST("/v1/payloads", h.BuildPayload)
	e.POST("/v1/endpoints", h.CreateVirtualEndpoint)
	e.GET("/v1/endpoints", h.ListEndpoints)
	e.GET("/v1/endpoints/:endpoint_id", h.GetEndpoint)
	e.DELETE("/v1/endpoints/:endpoint_id", h.DeleteEndpoint)

	// Messaging
	e.POST("/v1/endpoints/:endpoint_id/send", h.SendMessage)
	e.POST("/v1/endpoints/:endpoint_id/receive", h.ReceiveMessages)
	e.GET("/v1/messages", h.ListMessages)

	// Observability
	e.GET("/v1/logs", h.ListLogs)
	e.GET("/v1/tasks", h.ListTasks)
	e.GET("/v1/tasks/:task_id", h.GetTask)
	e.GET("/v1/stats/agents", h.AgentStats)
	e.GET("/v1/stats/endpoints", h.EndpointStats)
	e.GET("/v1/stats/messages", h.MessageStats)
	e.GET("/v1/stats/tasks", h.TaskStats)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorResponse maps core errors onto HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, policy.ErrBlocked):
		status = http.StatusForbidden
	case errors.Is(err, install.ErrPackageInUse), errors.Is(err, install.ErrTargetExists):
		status = http.StatusConflict
	case errors.Is(err, install.ErrBundleMissing), errors.Is(err, staging.ErrSourceMissing):
		status = http.StatusBadRequest
	case errors.Is(err, contract.ErrMissingLog), errors.Is(err, contract.ErrMissingMessages),
		errors.Is(err, contract.ErrMissingAgentConfig), errors.Is(err, contract.ErrMissingPayload):
		status = http.StatusBadGateway
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

// userFrom reads the caller identity the fronting proxy injected, if any.
func userFrom(c echo.Context) string {
	return c.Request().Header.Get("X-User")
}
