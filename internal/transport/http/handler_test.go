package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/unr-deaddrop/server/internal/config"
	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/internal/policy"
	"github.com/unr-deaddrop/server/internal/service"
	"github.com/unr-deaddrop/server/internal/store"
	"github.com/unr-deaddrop/server/internal/tasks"
	handler "github.com/unr-deaddrop/server/internal/transport/http"
	"github.com/unr-deaddrop/server/tests/helpers"
)

func newTestHandler(t *testing.T) (*handler.Handler, *store.SQLiteStore, *echo.Echo) {
	t.Helper()
	ctx := context.Background()

	root := t.TempDir()
	cfg := &config.Config{
		AgentPackageDir:    filepath.Join(root, "packages", "agents"),
		ProtocolPackageDir: filepath.Join(root, "packages", "protocols"),
		MediaRoot:          filepath.Join(root, "media"),
		BuildTimeout:       30 * time.Second,
		Workers:            1,
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	db := helpers.NewTestSQLiteStore(t)
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	assert.NoError(t, err)

	taskRunner := tasks.NewRunner(db, 1)
	t.Cleanup(taskRunner.Shutdown)

	svc := service.New(db, cfg, policyEngine, taskRunner)
	return handler.NewHandler(svc), db, echo.New()
}

func TestVirtualEndpointLifecycle(t *testing.T) {
	h, _, e := newTestHandler(t)

	reqBody, _ := json.Marshal(handler.VirtualEndpointRequest{
		Name: "manual-box", Hostname: "manual.local", Address: "10.0.0.9",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/endpoints", bytes.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateVirtualEndpoint(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var endpoint domain.Endpoint
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &endpoint))
	assert.True(t, endpoint.IsVirtual)
	assert.NotEqual(t, uuid.Nil, endpoint.ID)

	t.Run("Get", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/endpoints/:endpoint_id")
		c.SetParamNames("endpoint_id")
		c.SetParamValues(endpoint.ID.String())

		assert.NoError(t, h.GetEndpoint(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Get Unknown", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/endpoints/:endpoint_id")
		c.SetParamNames("endpoint_id")
		c.SetParamValues(uuid.New().String())

		assert.NoError(t, h.GetEndpoint(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("List", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/endpoints", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		assert.NoError(t, h.ListEndpoints(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Endpoints []domain.Endpoint `json:"endpoints"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Endpoints, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/endpoints/:endpoint_id")
		c.SetParamNames("endpoint_id")
		c.SetParamValues(endpoint.ID.String())

		assert.NoError(t, h.DeleteEndpoint(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestSendMessageValidation(t *testing.T) {
	h, _, e := newTestHandler(t)
	endpointID := uuid.New()

	t.Run("Missing Message ID", func(t *testing.T) {
		reqBody, _ := json.Marshal(domain.Message{})
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/endpoints/:endpoint_id/send")
		c.SetParamNames("endpoint_id")
		c.SetParamValues(endpointID.String())

		assert.NoError(t, h.SendMessage(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unknown Endpoint", func(t *testing.T) {
		reqBody, _ := json.Marshal(domain.Message{
			MessageID:     uuid.New(),
			SourceID:      uuid.New(),
			DestinationID: endpointID,
			Timestamp:     time.Now(),
			PayloadType:   domain.PayloadTypeCommandRequest,
		})
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/endpoints/:endpoint_id/send")
		c.SetParamNames("endpoint_id")
		c.SetParamValues(endpointID.String())

		assert.NoError(t, h.SendMessage(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Invalid Endpoint ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{}")))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/endpoints/:endpoint_id/send")
		c.SetParamNames("endpoint_id")
		c.SetParamValues("not-a-uuid")

		assert.NoError(t, h.SendMessage(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestInstallAgentRequiresBundle(t *testing.T) {
	h, _, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/agents/install", bytes.NewReader([]byte("{}")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.NoError(t, h.InstallAgent(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstallAgentQueuesTask(t *testing.T) {
	h, db, e := newTestHandler(t)

	// The bundle check happens inside the task; the API accepts immediately.
	reqBody, _ := json.Marshal(handler.InstallRequest{BundlePath: filepath.Join(t.TempDir(), "nope.zip")})
	req := httptest.NewRequest(http.MethodPost, "/v1/agents/install", bytes.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User", "operator")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.NoError(t, h.InstallAgent(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	taskID := resp["task_id"]
	assert.NotEmpty(t, taskID)

	deadline := time.Now().Add(5 * time.Second)
	for {
		task, err := db.GetTask(context.Background(), taskID)
		assert.NoError(t, err)
		if task != nil && task.Status != domain.TaskStatusPending {
			assert.Equal(t, domain.TaskStatusFailure, task.Status)
			assert.Contains(t, task.Result, "bundle does not exist")
			assert.Equal(t, "operator", task.Creator)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("install task never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealth(t *testing.T) {
	h, _, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
