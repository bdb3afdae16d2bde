package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hookplane/hookplane/pkg/activation"
	"github.com/hookplane/hookplane/pkg/bridge"
	"github.com/hookplane/hookplane/pkg/dispatch"
	"github.com/hookplane/hookplane/pkg/engine"
	"github.com/hookplane/hookplane/pkg/mocks"
	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence/file"
	"github.com/hookplane/hookplane/pkg/router"
	"github.com/hookplane/hookplane/pkg/subscription"
	"github.com/hookplane/hookplane/pkg/testutil"
)

type webHarness struct {
	app         *fiber.App
	manager     *activation.Manager
	persistence *file.Persistence
	engine      *mocks.MockEngine
}

func newWebHarness(t *testing.T) *webHarness {
	t.Helper()

	logger := slog.Default()
	p := file.NewPersistence(t.TempDir())
	rt := router.NewRouter(p.WebhookRepository(), logger)
	active := subscription.NewActiveWorkflows(logger)
	eng := &mocks.MockEngine{}
	eng.On("BuildContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.ExecutionContext{ID: "exec-test"}, nil).Maybe()

	br := bridge.NewBridge(eng, p.WorkflowRepository(), logger)
	manager := activation.NewManager(p, rt, active, br, eng, nil, logger)
	dispatcher := dispatch.NewDispatcher(rt, p.WorkflowRepository(), eng, manager, nil, nil, logger)
	handlers := NewHandlers(dispatcher, manager, logger)

	app := fiber.New()
	app.All("/webhook/*", handlers.HandleWebhook)
	app.Get("/webhooks/methods", handlers.GetWebhookMethods)

	w := app.Group("/workflows")
	w.Get("/active", handlers.GetActiveWorkflows)
	w.Post("/deactivate-all", handlers.DeactivateAll)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)
	w.Get("/:id/activation-error", handlers.GetActivationError)

	return &webHarness{
		app:         app,
		manager:     manager,
		persistence: p,
		engine:      eng,
	}
}

func (h *webHarness) saveAndInit(t *testing.T, workflows ...*models.Workflow) {
	t.Helper()

	for _, workflow := range workflows {
		require.NoError(t, h.persistence.WorkflowRepository().Save(t.Context(), workflow))
	}

	require.NoError(t, h.manager.InitWebhooks(t.Context()))
}

func decodeBody(t *testing.T, body io.Reader) map[string]any {
	t.Helper()

	data, err := io.ReadAll(body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	return decoded
}

func TestHandleWebhook_EndToEnd(t *testing.T) {
	h := newWebHarness(t)

	h.saveAndInit(t, testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithWebhookNode("POST", "orders"), testutil.WithName("Orders"))))

	h.engine.On("RunWebhook", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&engine.WebhookResult{
			Status:  201,
			Headers: map[string]string{"X-Run": "run-1"},
			Body:    map[string]any{"ok": true},
		}, nil)

	req := httptest.NewRequest("POST", "/webhook/orders", strings.NewReader(`{"amount": 10}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "run-1", resp.Header.Get("X-Run"))

	body := decodeBody(t, resp.Body)
	assert.Equal(t, true, body["ok"])

	webhookReq := h.engine.Calls[len(h.engine.Calls)-1].Arguments.Get(4).(*engine.WebhookRequest)
	assert.Equal(t, map[string]any{"amount": float64(10)}, webhookReq.Body)
}

func TestHandleWebhook_UnknownRouteIs404Problem(t *testing.T) {
	h := newWebHarness(t)
	h.saveAndInit(t)

	resp, err := h.app.Test(httptest.NewRequest("GET", "/webhook/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Contains(t, body["detail"], "not be active")
}

func TestHandleWebhook_BeforeInitIs503(t *testing.T) {
	h := newWebHarness(t)

	resp, err := h.app.Test(httptest.NewRequest("GET", "/webhook/hooks/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestHandleWebhook_InvalidJSONBodyIs400(t *testing.T) {
	h := newWebHarness(t)
	h.saveAndInit(t)

	req := httptest.NewRequest("POST", "/webhook/orders", strings.NewReader("{not json"))

	resp, err := h.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestActivateDeactivateWorkflow(t *testing.T) {
	h := newWebHarness(t)

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithWebhookNode("GET", "hooks/ping"), testutil.WithName("Ping")))
	workflow.Active = false
	require.NoError(t, h.persistence.WorkflowRepository().Save(t.Context(), workflow))
	require.NoError(t, h.manager.InitWebhooks(t.Context()))

	resp, err := h.app.Test(httptest.NewRequest("POST", "/workflows/wf-1/activate", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	h.engine.On("RunWebhook", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&engine.WebhookResult{Status: 200}, nil)

	resp, err = h.app.Test(httptest.NewRequest("GET", "/webhook/hooks/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = h.app.Test(httptest.NewRequest("POST", "/workflows/wf-1/deactivate", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = h.app.Test(httptest.NewRequest("GET", "/webhook/hooks/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestActivateWorkflow_NotFound(t *testing.T) {
	h := newWebHarness(t)
	h.saveAndInit(t)

	resp, err := h.app.Test(httptest.NewRequest("POST", "/workflows/missing/activate", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestGetActiveWorkflows(t *testing.T) {
	h := newWebHarness(t)

	h.saveAndInit(t,
		testutil.CreateTestWorkflow("wf-1",
			testutil.CreateTestNode(testutil.WithWebhookNode("GET", "hooks/a"))),
		testutil.CreateTestWorkflow("wf-2",
			testutil.CreateTestNode(testutil.WithWebhookNode("GET", "hooks/b"))))

	resp, err := h.app.Test(httptest.NewRequest("GET", "/workflows/active", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, []any{"wf-1", "wf-2"}, body["active"])
}

func TestGetActivationError(t *testing.T) {
	h := newWebHarness(t)

	// Action-only workflow fails activation during init.
	h.saveAndInit(t, testutil.CreateTestWorkflow("wf-bad", testutil.CreateTestNode()))

	resp, err := h.app.Test(httptest.NewRequest("GET", "/workflows/wf-bad/activation-error", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	require.NotNil(t, body["error"])

	resp, err = h.app.Test(httptest.NewRequest("GET", "/workflows/unknown/activation-error", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestDeactivateAll(t *testing.T) {
	h := newWebHarness(t)

	h.saveAndInit(t, testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithWebhookNode("GET", "hooks/a"))))

	resp, err := h.app.Test(httptest.NewRequest("POST", "/workflows/deactivate-all", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = h.app.Test(httptest.NewRequest("GET", "/webhook/hooks/a", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestGetWebhookMethods(t *testing.T) {
	h := newWebHarness(t)

	h.saveAndInit(t, testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithWebhookNode("POST", "orders"), testutil.WithName("A")),
		testutil.CreateTestNode(testutil.WithWebhookNode("GET", "orders"), testutil.WithName("B"))))

	resp, err := h.app.Test(httptest.NewRequest("GET", "/webhooks/methods?path=orders", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, []any{"GET", "POST"}, body["methods"])

	resp, err = h.app.Test(httptest.NewRequest("GET", "/webhooks/methods", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}
