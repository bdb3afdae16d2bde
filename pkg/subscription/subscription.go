// Package subscription tracks the workflows that currently hold live event
// subscriptions: cron-scheduled poll watchers and trigger notification sinks.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/hookplane/hookplane/pkg/models"
)

const defaultPollSchedule = "@every 1m"

// TriggerFunc handles one external notification addressed to a trigger node.
type TriggerFunc func(ctx context.Context, payload map[string]any)

// PollFunc performs one poll tick for a poll node.
type PollFunc func(ctx context.Context)

// TriggerFuncFactory builds the notification sink for a trigger node.
type TriggerFuncFactory func(node *models.WorkflowNode) TriggerFunc

// PollFuncFactory builds the poll tick handler for a poll node.
type PollFuncFactory func(node *models.WorkflowNode) PollFunc

type entry struct {
	triggers map[string]TriggerFunc
	cron     *cron.Cron
}

// ActiveWorkflows is the in-memory set of workflows with live subscriptions.
// It is created fresh at process init and torn down only by explicit removal.
// Callers must not issue overlapping Add/Remove calls for the same workflow id.
type ActiveWorkflows struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewActiveWorkflows(logger *slog.Logger) *ActiveWorkflows {
	return &ActiveWorkflows{
		logger:  logger.With("module", "active_workflows"),
		entries: make(map[string]*entry),
	}
}

// Add registers the workflow's trigger and poll nodes. Poll nodes are
// scheduled on their configured cron expression; trigger nodes are retained as
// notification sinks for Notify. Workflows without either kind of node do not
// occupy a slot.
func (a *ActiveWorkflows) Add(
	ctx context.Context,
	workflowID string,
	workflow *models.Workflow,
	execCtx *models.ExecutionContext,
	mode models.ExecutionMode,
	activationMode models.ActivationMode,
	triggerFactory TriggerFuncFactory,
	pollFactory PollFuncFactory,
) error {
	e := &entry{triggers: make(map[string]TriggerFunc)}

	for _, node := range workflow.Nodes {
		if node.Disabled {
			continue
		}

		switch node.Type {
		case models.NodeTypeTriggerEvent:
			e.triggers[node.Name] = triggerFactory(node)
		case models.NodeTypeTriggerPoll:
			if e.cron == nil {
				e.cron = cron.New()
			}

			pollFn := pollFactory(node)

			_, err := e.cron.AddFunc(node.ConfigString("schedule", defaultPollSchedule), func() {
				pollFn(context.Background())
			})
			if err != nil {
				e.cron.Stop()

				return fmt.Errorf("failed to schedule poll node %s: %w", node.Name, err)
			}
		}
	}

	if len(e.triggers) == 0 && e.cron == nil {
		return nil
	}

	if e.cron != nil {
		e.cron.Start()
	}

	a.mu.Lock()
	a.entries[workflowID] = e
	a.mu.Unlock()

	a.logger.Info("Registered live subscriptions",
		"workflow_id", workflowID,
		"activation_mode", string(activationMode),
		"trigger_nodes", len(e.triggers),
		"polling", e.cron != nil)

	return nil
}

// Remove tears down the workflow's subscriptions. Removing an unknown id is
// not an error.
func (a *ActiveWorkflows) Remove(workflowID string) {
	a.mu.Lock()
	e, exists := a.entries[workflowID]
	delete(a.entries, workflowID)
	a.mu.Unlock()

	if !exists {
		return
	}

	if e.cron != nil {
		e.cron.Stop()
	}

	a.logger.Info("Removed live subscriptions", "workflow_id", workflowID)
}

// Notify delivers an external notification to the trigger node's sink. Unknown
// workflow ids or node names are logged and dropped; the notifier must never
// observe a failure from a single delivery.
func (a *ActiveWorkflows) Notify(ctx context.Context, workflowID, nodeName string, payload map[string]any) {
	a.mu.RLock()
	e, exists := a.entries[workflowID]

	var fn TriggerFunc
	if exists {
		fn = e.triggers[nodeName]
	}
	a.mu.RUnlock()

	if fn == nil {
		a.logger.Warn("Dropping notification for unknown subscription",
			"workflow_id", workflowID,
			"node_name", nodeName)

		return
	}

	fn(ctx, payload)
}

// IsActive reports whether the workflow holds a live subscription.
func (a *ActiveWorkflows) IsActive(workflowID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, exists := a.entries[workflowID]

	return exists
}

// AllActiveIDs returns the ids of all workflows with live subscriptions.
func (a *ActiveWorkflows) AllActiveIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.entries))
	for id := range a.entries {
		ids = append(ids, id)
	}

	return ids
}
