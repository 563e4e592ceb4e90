package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/unr-deaddrop/server/internal/core/payload"
)

// BuildPayloadRequest is the request to build a payload from an installed
// agent. Payload and connection fields are build-owned and not accepted.
type BuildPayloadRequest struct {
	AgentID   int64           `json:"agent_id"`
	BuildArgs json.RawMessage `json:"build_args,omitempty"`
	Name      string          `json:"name,omitempty"`
	Hostname  string          `json:"hostname,omitempty"`
	Address   string          `json:"address,omitempty"`
}

// BuildPayload queues a payload build.
// POST /v1/payloads
func (h *Handler) BuildPayload(c echo.Context) error {
	ctx := c.Request().Context()

	var req BuildPayloadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.AgentID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent_id is required"})
	}

	fields := payload.Fields{Name: req.Name, Hostname: req.Hostname, Address: req.Address}
	taskID, err := h.svc.BuildPayload(ctx, req.AgentID, req.BuildArgs, fields, userFrom(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": taskID})
}

// VirtualEndpointRequest creates an endpoint without a payload build.
type VirtualEndpointRequest struct {
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
}

// CreateVirtualEndpoint registers a virtual endpoint.
// POST /v1/endpoints
func (h *Handler) CreateVirtualEndpoint(c echo.Context) error {
	var req VirtualEndpointRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	endpoint, err := h.svc.CreateVirtualEndpoint(c.Request().Context(),
		payload.Fields{Name: req.Name, Hostname: req.Hostname, Address: req.Address})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, endpoint)
}

// ListEndpoints lists all endpoints.
// GET /v1/endpoints
func (h *Handler) ListEndpoints(c echo.Context) error {
	endpoints, err := h.svc.ListEndpoints(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"endpoints": endpoints})
}

// GetEndpoint gets an endpoint by ID.
// GET /v1/endpoints/:endpoint_id
func (h *Handler) GetEndpoint(c echo.Context) error {
	id, err := endpointID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid endpoint_id"})
	}
	endpoint, err := h.svc.GetEndpoint(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	if endpoint == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "endpoint not found"})
	}
	return c.JSON(http.StatusOK, endpoint)
}

// DeleteEndpoint deletes an endpoint.
// DELETE /v1/endpoints/:endpoint_id
func (h *Handler) DeleteEndpoint(c echo.Context) error {
	id, err := endpointID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid endpoint_id"})
	}
	if err := h.svc.DeleteEndpoint(c.Request().Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func endpointID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("endpoint_id"))
}
