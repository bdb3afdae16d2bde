package dispatch

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hookplane/hookplane/pkg/activation"
	"github.com/hookplane/hookplane/pkg/engine"
	"github.com/hookplane/hookplane/pkg/mocks"
	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence/file"
	"github.com/hookplane/hookplane/pkg/router"
	"github.com/hookplane/hookplane/pkg/testutil"
)

type stubLifecycle struct {
	initialized bool
}

func (s *stubLifecycle) Initialized() bool {
	return s.initialized
}

type dispatcherHarness struct {
	dispatcher  *Dispatcher
	router      *router.Router
	persistence *file.Persistence
	engine      *mocks.MockEngine
	lifecycle   *stubLifecycle
}

func newDispatcherHarness(t *testing.T) *dispatcherHarness {
	t.Helper()

	logger := slog.Default()
	p := file.NewPersistence(t.TempDir())
	rt := router.NewRouter(p.WebhookRepository(), logger)
	eng := &mocks.MockEngine{}
	lifecycle := &stubLifecycle{initialized: true}

	return &dispatcherHarness{
		dispatcher:  NewDispatcher(rt, p.WorkflowRepository(), eng, lifecycle, nil, nil, logger),
		router:      rt,
		persistence: p,
		engine:      eng,
		lifecycle:   lifecycle,
	}
}

// activate saves the workflow and registers its webhook routes, mirroring what
// the activation manager does.
func (h *dispatcherHarness) activate(t *testing.T, workflow *models.Workflow) {
	t.Helper()

	ctx := t.Context()
	require.NoError(t, h.persistence.WorkflowRepository().Save(ctx, workflow))
	require.NoError(t, h.router.Register(ctx, workflow.ID, workflow.WebhookDefinitions()))
}

func TestHandleWebhook_BeforeInit(t *testing.T) {
	h := newDispatcherHarness(t)
	h.lifecycle.initialized = false

	_, err := h.dispatcher.HandleWebhook(t.Context(), "GET", "hooks/ping", &engine.WebhookRequest{})
	require.Error(t, err)
	assert.True(t, activation.IsNotInitialized(err))
}

func TestHandleWebhook_StaticWithTrailingSlash(t *testing.T) {
	h := newDispatcherHarness(t)
	ctx := t.Context()

	node := testutil.CreateTestNode(testutil.WithWebhookNode("GET", "hooks/ping"), testutil.WithName("Ping"))
	h.activate(t, testutil.CreateTestWorkflow("wf-1", node))

	execCtx := &models.ExecutionContext{ID: "exec-1"}
	h.engine.On("BuildContext", mock.Anything, mock.Anything, "Ping", models.ExecutionModeWebhook).
		Return(execCtx, nil)
	h.engine.On("RunWebhook", mock.Anything, mock.Anything, mock.Anything, execCtx, mock.Anything).
		Return(&engine.WebhookResult{Status: 200, Body: map[string]any{"ok": true}}, nil)

	// Lowercase method and trailing slash both normalize away.
	result, err := h.dispatcher.HandleWebhook(ctx, "get", "/hooks/ping/", &engine.WebhookRequest{})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)

	req := h.engine.Calls[1].Arguments.Get(4).(*engine.WebhookRequest)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "hooks/ping", req.Path)
	assert.Empty(t, req.Params)
}

func TestHandleWebhook_DynamicParamExtraction(t *testing.T) {
	h := newDispatcherHarness(t)
	ctx := t.Context()

	node := testutil.CreateTestNode(
		testutil.WithDynamicWebhookNode("GET", ":id/orders/:orderId", "grp1"),
		testutil.WithName("Order Hook"))
	h.activate(t, testutil.CreateTestWorkflow("wf-1", node))

	execCtx := &models.ExecutionContext{ID: "exec-1"}
	h.engine.On("BuildContext", mock.Anything, mock.Anything, "Order Hook", models.ExecutionModeWebhook).
		Return(execCtx, nil)
	h.engine.On("RunWebhook", mock.Anything, mock.Anything, node, execCtx, mock.Anything).
		Return(&engine.WebhookResult{Status: 200}, nil)

	_, err := h.dispatcher.HandleWebhook(ctx, "GET", "grp1/7/orders/42", &engine.WebhookRequest{})
	require.NoError(t, err)

	req := h.engine.Calls[1].Arguments.Get(4).(*engine.WebhookRequest)
	assert.Equal(t, map[string]string{"id": "7", "orderId": "42"}, req.Params)
}

func TestHandleWebhook_RouteNotFound(t *testing.T) {
	h := newDispatcherHarness(t)

	_, err := h.dispatcher.HandleWebhook(t.Context(), "GET", "nowhere", &engine.WebhookRequest{})
	require.Error(t, err)
	assert.True(t, router.IsRouteNotFound(err))
}

func TestHandleWebhook_StaleRegistration(t *testing.T) {
	h := newDispatcherHarness(t)
	ctx := t.Context()

	node := testutil.CreateTestNode(testutil.WithWebhookNode("GET", "hooks/ping"), testutil.WithName("Ping"))
	workflow := testutil.CreateTestWorkflow("wf-1", node)
	h.activate(t, workflow)

	// The graph changes after registration: the webhook node disappears but
	// the registration row stays behind.
	workflow.Nodes = []*models.WorkflowNode{testutil.CreateTestNode(testutil.WithName("Replacement"))}
	require.NoError(t, h.persistence.WorkflowRepository().Save(ctx, workflow))

	h.engine.On("BuildContext", mock.Anything, mock.Anything, "Ping", models.ExecutionModeWebhook).
		Return(&models.ExecutionContext{ID: "exec-1"}, nil)

	_, err := h.dispatcher.HandleWebhook(ctx, "GET", "hooks/ping", &engine.WebhookRequest{})
	require.Error(t, err)
	assert.True(t, IsStartNodeNotFound(err))
}

func TestHandleWebhook_PayloadSchemaValidation(t *testing.T) {
	h := newDispatcherHarness(t)
	ctx := t.Context()

	node := testutil.CreateTestNode(
		testutil.WithConfig(map[string]any{
			"method": "POST",
			"path":   "orders",
			"payload_schema": map[string]any{
				"type":     "object",
				"required": []any{"amount"},
				"properties": map[string]any{
					"amount": map[string]any{"type": "number"},
				},
			},
		}),
		testutil.WithName("Orders"))
	node.Type = models.NodeTypeTriggerWebhook
	node.Category = models.CategoryTypeTrigger
	h.activate(t, testutil.CreateTestWorkflow("wf-1", node))

	execCtx := &models.ExecutionContext{ID: "exec-1"}
	h.engine.On("BuildContext", mock.Anything, mock.Anything, "Orders", models.ExecutionModeWebhook).
		Return(execCtx, nil)
	h.engine.On("RunWebhook", mock.Anything, mock.Anything, node, execCtx, mock.Anything).
		Return(&engine.WebhookResult{Status: 200}, nil)

	_, err := h.dispatcher.HandleWebhook(ctx, "POST", "orders",
		&engine.WebhookRequest{Body: map[string]any{"note": "missing amount"}})
	require.Error(t, err)
	assert.True(t, IsPayloadInvalid(err))

	_, err = h.dispatcher.HandleWebhook(ctx, "POST", "orders",
		&engine.WebhookRequest{Body: map[string]any{"amount": float64(10)}})
	require.NoError(t, err)
}

func TestListMethods(t *testing.T) {
	h := newDispatcherHarness(t)
	ctx := t.Context()

	node := testutil.CreateTestNode(testutil.WithWebhookNode("POST", "orders"), testutil.WithName("Orders"))
	h.activate(t, testutil.CreateTestWorkflow("wf-1", node))

	methods, err := h.dispatcher.ListMethods(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"POST"}, methods)
}
