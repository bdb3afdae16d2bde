package subscription

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/testutil"
)

func noopTriggerFactory(node *models.WorkflowNode) TriggerFunc {
	return func(ctx context.Context, payload map[string]any) {}
}

func noopPollFactory(node *models.WorkflowNode) PollFunc {
	return func(ctx context.Context) {}
}

func TestAdd_EventNodeOccupiesSlot(t *testing.T) {
	active := NewActiveWorkflows(slog.Default())

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithEventNode(), testutil.WithName("On Event")))

	err := active.Add(t.Context(), "wf-1", workflow, &models.ExecutionContext{},
		models.ExecutionModeTrigger, models.ActivationModeActivate,
		noopTriggerFactory, noopPollFactory)
	require.NoError(t, err)

	assert.True(t, active.IsActive("wf-1"))
	assert.Equal(t, []string{"wf-1"}, active.AllActiveIDs())
}

func TestAdd_WithoutSubscriptionNodesDoesNotOccupySlot(t *testing.T) {
	active := NewActiveWorkflows(slog.Default())

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithWebhookNode("GET", "hooks/ping")),
		testutil.CreateTestNode(testutil.WithName("Action")))

	err := active.Add(t.Context(), "wf-1", workflow, &models.ExecutionContext{},
		models.ExecutionModeTrigger, models.ActivationModeActivate,
		noopTriggerFactory, noopPollFactory)
	require.NoError(t, err)

	assert.False(t, active.IsActive("wf-1"))
}

func TestAdd_DisabledNodesIgnored(t *testing.T) {
	active := NewActiveWorkflows(slog.Default())

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithEventNode(), testutil.WithDisabled()))

	err := active.Add(t.Context(), "wf-1", workflow, &models.ExecutionContext{},
		models.ExecutionModeTrigger, models.ActivationModeActivate,
		noopTriggerFactory, noopPollFactory)
	require.NoError(t, err)

	assert.False(t, active.IsActive("wf-1"))
}

func TestAdd_InvalidPollScheduleFails(t *testing.T) {
	active := NewActiveWorkflows(slog.Default())

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithPollNode("not a schedule"), testutil.WithName("Poller")))

	err := active.Add(t.Context(), "wf-1", workflow, &models.ExecutionContext{},
		models.ExecutionModeTrigger, models.ActivationModeActivate,
		noopTriggerFactory, noopPollFactory)
	require.Error(t, err)
	assert.False(t, active.IsActive("wf-1"))
}

func TestPollNode_TicksOnSchedule(t *testing.T) {
	active := NewActiveWorkflows(slog.Default())

	var ticks atomic.Int64

	pollFactory := func(node *models.WorkflowNode) PollFunc {
		return func(ctx context.Context) {
			ticks.Add(1)
		}
	}

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithPollNode("@every 10ms"), testutil.WithName("Poller")))

	err := active.Add(t.Context(), "wf-1", workflow, &models.ExecutionContext{},
		models.ExecutionModeTrigger, models.ActivationModeActivate,
		noopTriggerFactory, pollFactory)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return ticks.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)

	active.Remove("wf-1")
}

func TestNotify_DeliversToTriggerNode(t *testing.T) {
	active := NewActiveWorkflows(slog.Default())

	received := make(chan map[string]any, 1)

	triggerFactory := func(node *models.WorkflowNode) TriggerFunc {
		return func(ctx context.Context, payload map[string]any) {
			received <- payload
		}
	}

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithEventNode(), testutil.WithName("On Event")))

	err := active.Add(t.Context(), "wf-1", workflow, &models.ExecutionContext{},
		models.ExecutionModeTrigger, models.ActivationModeActivate,
		triggerFactory, noopPollFactory)
	require.NoError(t, err)

	active.Notify(t.Context(), "wf-1", "On Event", map[string]any{"k": "v"})

	select {
	case payload := <-received:
		assert.Equal(t, map[string]any{"k": "v"}, payload)
	default:
		t.Fatal("notification was not delivered")
	}
}

func TestNotify_UnknownTargetsDropped(t *testing.T) {
	active := NewActiveWorkflows(slog.Default())

	// Unknown workflow and unknown node never panic or error.
	active.Notify(t.Context(), "nobody", "nothing", nil)

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithEventNode(), testutil.WithName("On Event")))

	err := active.Add(t.Context(), "wf-1", workflow, &models.ExecutionContext{},
		models.ExecutionModeTrigger, models.ActivationModeActivate,
		noopTriggerFactory, noopPollFactory)
	require.NoError(t, err)

	active.Notify(t.Context(), "wf-1", "No Such Node", nil)
}

func TestRemove_UnknownIDIsNoop(t *testing.T) {
	active := NewActiveWorkflows(slog.Default())

	active.Remove("never-added")

	workflow := testutil.CreateTestWorkflow("wf-1",
		testutil.CreateTestNode(testutil.WithEventNode(), testutil.WithName("On Event")))

	err := active.Add(t.Context(), "wf-1", workflow, &models.ExecutionContext{},
		models.ExecutionModeTrigger, models.ActivationModeActivate,
		noopTriggerFactory, noopPollFactory)
	require.NoError(t, err)

	active.Remove("wf-1")
	active.Remove("wf-1")

	assert.False(t, active.IsActive("wf-1"))
}
