package http

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/unr-deaddrop/server/internal/domain"
)

// SendMessage queues a message send to an endpoint.
// POST /v1/endpoints/:endpoint_id/send
func (h *Handler) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := endpointID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid endpoint_id"})
	}

	var msg domain.Message
	if err := c.Bind(&msg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid message body"})
	}
	if msg.MessageID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message_id is required"})
	}

	taskID, err := h.svc.SendMessage(ctx, id, &msg, userFrom(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": taskID})
}

// ReceiveRequest optionally narrows the returned messages to command
// responses for one request.
type ReceiveRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

// ReceiveMessages queues a message receive from an endpoint.
// POST /v1/endpoints/:endpoint_id/receive
func (h *Handler) ReceiveMessages(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := endpointID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid endpoint_id"})
	}

	var req ReceiveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	taskID, err := h.svc.ReceiveMessages(ctx, id, req.RequestID, userFrom(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": taskID})
}

// ListMessages lists recorded messages.
// GET /v1/messages
func (h *Handler) ListMessages(c echo.Context) error {
	messages, err := h.svc.ListMessages(c.Request().Context(), limitParam(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": messages})
}

// ListLogs lists execution logs, optionally filtered by task.
// GET /v1/logs?task_id=...
func (h *Handler) ListLogs(c echo.Context) error {
	logs, err := h.svc.ListLogs(c.Request().Context(), c.QueryParam("task_id"), limitParam(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"logs": logs})
}

// ListTasks lists background tasks.
// GET /v1/tasks
func (h *Handler) ListTasks(c echo.Context) error {
	tasks, err := h.svc.ListTasks(c.Request().Context(), limitParam(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// GetTask gets a background task by ID.
// GET /v1/tasks/:task_id
func (h *Handler) GetTask(c echo.Context) error {
	task, err := h.svc.GetTask(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if task == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}
	return c.JSON(http.StatusOK, task)
}

func limitParam(c echo.Context) int {
	if val := c.QueryParam("limit"); val != "" {
		if limit, err := strconv.Atoi(val); err == nil {
			return limit
		}
	}
	return 100
}
