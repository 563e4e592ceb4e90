package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
)

// InstallRequest installs a package from a bundle already on the server's
// filesystem. Uploading a bundle instead uses a multipart form with a
// "bundle" file part.
type InstallRequest struct {
	BundlePath string `json:"bundle_path"`
}

// InstallAgent installs an agent package.
// POST /v1/agents/install
func (h *Handler) InstallAgent(c echo.Context) error {
	return h.installPackage(c, h.svc.InstallAgent)
}

// InstallProtocol installs a protocol package.
// POST /v1/protocols/install
func (h *Handler) InstallProtocol(c echo.Context) error {
	return h.installPackage(c, h.svc.InstallProtocol)
}

func (h *Handler) installPackage(c echo.Context, installFn func(ctx context.Context, bundlePath, user string) (string, error)) error {
	ctx := c.Request().Context()

	bundlePath, err := h.bundleFromRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if bundlePath == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bundle_path or a bundle upload is required"})
	}

	taskID, err := installFn(ctx, bundlePath, userFrom(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": taskID})
}

// bundleFromRequest resolves the bundle to install: either an uploaded file
// (spooled into the upload area) or a server-local path.
func (h *Handler) bundleFromRequest(c echo.Context) (string, error) {
	if file, err := c.FormFile("bundle"); err == nil {
		src, err := file.Open()
		if err != nil {
			return "", err
		}
		defer src.Close()

		dir := filepath.Join(os.TempDir(), "deaddrop-uploads")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		dst, err := os.Create(filepath.Join(dir, filepath.Base(file.Filename)))
		if err != nil {
			return "", err
		}
		defer dst.Close()
		if _, err := io.Copy(dst, src); err != nil {
			return "", err
		}
		return dst.Name(), nil
	}

	var req InstallRequest
	if err := c.Bind(&req); err != nil {
		return "", err
	}
	return req.BundlePath, nil
}

// ListAgents lists installed agents.
// GET /v1/agents
func (h *Handler) ListAgents(c echo.Context) error {
	agents, err := h.svc.ListAgents(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"agents": agents})
}

// GetAgent gets an installed agent by ID.
// GET /v1/agents/:agent_id
func (h *Handler) GetAgent(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid agent_id"})
	}
	agent, err := h.svc.GetAgent(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}
	return c.JSON(http.StatusOK, agent)
}

// DeleteAgent deletes an agent with no endpoints.
// DELETE /v1/agents/:agent_id
func (h *Handler) DeleteAgent(c echo.Context) error {
	id, err := agentID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid agent_id"})
	}
	if err := h.svc.DeleteAgent(c.Request().Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AgentMetadata returns the agent descriptor.
// GET /v1/agents/:agent_id/metadata
func (h *Handler) AgentMetadata(c echo.Context) error {
	return h.agentPackageJSON(c, h.svc.AgentMetadata)
}

// AgentCommands returns the agent's command catalog.
// GET /v1/agents/:agent_id/commands
func (h *Handler) AgentCommands(c echo.Context) error {
	return h.agentPackageJSON(c, h.svc.AgentCommands)
}

// AgentProtocols returns the agent's protocol catalog.
// GET /v1/agents/:agent_id/protocols
func (h *Handler) AgentProtocols(c echo.Context) error {
	return h.agentPackageJSON(c, h.svc.AgentProtocols)
}

func (h *Handler) agentPackageJSON(c echo.Context, read func(ctx context.Context, id int64) (json.RawMessage, error)) error {
	id, err := agentID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid agent_id"})
	}
	data, err := read(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	if data == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}
	return c.JSONBlob(http.StatusOK, data)
}

// ListProtocols lists installed protocols.
// GET /v1/protocols
func (h *Handler) ListProtocols(c echo.Context) error {
	protocols, err := h.svc.ListProtocols(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"protocols": protocols})
}

func agentID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("agent_id"), 10, 64)
}
