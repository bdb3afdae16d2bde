package bridge

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hookplane/hookplane/pkg/mocks"
	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence/file"
	"github.com/hookplane/hookplane/pkg/testutil"
)

func newTestBridge(t *testing.T) (*Bridge, *mocks.MockEngine, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	eng := &mocks.MockEngine{}

	return NewBridge(eng, p.WorkflowRepository(), slog.Default()), eng, p
}

func TestPollFunc_RunsWhenItemsProduced(t *testing.T) {
	b, eng, _ := newTestBridge(t)

	node := testutil.CreateTestNode(testutil.WithPollNode("@every 1m"), testutil.WithName("Poller"))
	workflow := testutil.CreateTestWorkflow("wf-1", node)
	execCtx := &models.ExecutionContext{ID: "exec-1"}

	items := []map[string]any{{"id": float64(1)}, {"id": float64(2)}}

	eng.On("Poll", mock.Anything, workflow, node, execCtx).Return(items, nil)
	eng.On("RunNode", mock.Anything, workflow, node, execCtx, items, models.ExecutionModeTrigger).
		Return("run-1", nil)

	pollFn := b.PollFuncFactory(workflow, execCtx)(node)
	pollFn(t.Context())

	eng.AssertExpectations(t)
}

func TestPollFunc_NoItemsNoRun(t *testing.T) {
	b, eng, _ := newTestBridge(t)

	node := testutil.CreateTestNode(testutil.WithPollNode("@every 1m"), testutil.WithName("Poller"))
	workflow := testutil.CreateTestWorkflow("wf-1", node)
	execCtx := &models.ExecutionContext{ID: "exec-1"}

	eng.On("Poll", mock.Anything, workflow, node, execCtx).Return([]map[string]any{}, nil)

	pollFn := b.PollFuncFactory(workflow, execCtx)(node)
	pollFn(t.Context())

	eng.AssertExpectations(t)
	eng.AssertNotCalled(t, "RunNode",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPollFunc_PollErrorSwallowed(t *testing.T) {
	b, eng, _ := newTestBridge(t)

	node := testutil.CreateTestNode(testutil.WithPollNode("@every 1m"), testutil.WithName("Poller"))
	workflow := testutil.CreateTestWorkflow("wf-1", node)
	execCtx := &models.ExecutionContext{ID: "exec-1"}

	eng.On("Poll", mock.Anything, workflow, node, execCtx).Return(nil, errors.New("source down"))

	pollFn := b.PollFuncFactory(workflow, execCtx)(node)
	pollFn(t.Context())

	eng.AssertNotCalled(t, "RunNode",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTriggerFunc_PersistsStaticDataThenRuns(t *testing.T) {
	b, eng, p := newTestBridge(t)
	ctx := t.Context()

	node := testutil.CreateTestNode(testutil.WithEventNode(), testutil.WithName("On Event"))
	workflow := testutil.CreateTestWorkflow("wf-1", node)
	workflow.StaticData = map[string]any{"cursor": "abc"}
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	execCtx := &models.ExecutionContext{ID: "exec-1"}
	payload := map[string]any{"event": "created"}

	started := make(chan struct{})

	eng.On("RunNode", mock.Anything, workflow, node, execCtx,
		[]map[string]any{payload}, models.ExecutionModeTrigger).
		Run(func(args mock.Arguments) { close(started) }).
		Return("run-1", nil)

	triggerFn := b.TriggerFuncFactory(workflow, execCtx)(node)
	triggerFn(ctx, payload)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}

	// Static data was written before the run started.
	stored, err := p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cursor": "abc"}, stored.StaticData)
}

func TestTriggerFunc_RunFailureSwallowed(t *testing.T) {
	b, eng, p := newTestBridge(t)
	ctx := t.Context()

	node := testutil.CreateTestNode(testutil.WithEventNode(), testutil.WithName("On Event"))
	workflow := testutil.CreateTestWorkflow("wf-1", node)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	execCtx := &models.ExecutionContext{ID: "exec-1"}

	failed := make(chan struct{})

	eng.On("RunNode", mock.Anything, workflow, node, execCtx, mock.Anything, models.ExecutionModeTrigger).
		Run(func(args mock.Arguments) { close(failed) }).
		Return("", errors.New("engine rejected run"))

	triggerFn := b.TriggerFuncFactory(workflow, execCtx)(node)

	// Must not panic or propagate.
	triggerFn(ctx, map[string]any{"event": "created"})

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("run was never attempted")
	}
}
