// Package bridge converts asynchronous external notifications (poll ticks,
// trigger callbacks) into runs of a workflow's execution pipeline.
package bridge

import (
	"context"
	"log/slog"

	"github.com/hookplane/hookplane/pkg/engine"
	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence"
	"github.com/hookplane/hookplane/pkg/subscription"
)

// Bridge produces the callback functions handed to the subscription component
// at activation time. Each produced function closes over one workflow
// descriptor and its execution context.
type Bridge struct {
	engine    engine.Engine
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
}

func NewBridge(eng engine.Engine, workflows persistence.WorkflowRepository, logger *slog.Logger) *Bridge {
	return &Bridge{
		engine:    eng,
		workflows: workflows,
		logger:    logger.With("module", "event_bridge"),
	}
}

// PollFuncFactory builds per-node poll tick handlers. A tick polls the
// external source through the engine and, when items were produced, starts a
// run seeded with them synchronously. Concurrent ticks each start an
// independent run; no de-duplication happens at this layer.
func (b *Bridge) PollFuncFactory(workflow *models.Workflow, execCtx *models.ExecutionContext) subscription.PollFuncFactory {
	return func(node *models.WorkflowNode) subscription.PollFunc {
		logger := b.logger.With("workflow_id", workflow.ID, "node_name", node.Name)

		return func(ctx context.Context) {
			items, err := b.engine.Poll(ctx, workflow, node, execCtx)
			if err != nil {
				logger.Error("Poll tick failed", "error", err)

				return
			}

			if len(items) == 0 {
				return
			}

			runID, err := b.engine.RunNode(ctx, workflow, node, execCtx, items, models.ExecutionModeTrigger)
			if err != nil {
				logger.Error("Failed to start run from poll items", "error", err)

				return
			}

			logger.Debug("Started run from poll tick", "run_id", runID, "items", len(items))
		}
	}
}

// TriggerFuncFactory builds per-node notification sinks. Each notification
// first persists the workflow's accumulated static data, then starts a run
// seeded with the payload asynchronously. Run failures are logged, never
// propagated: the subscription must stay alive regardless of a single run's
// outcome.
func (b *Bridge) TriggerFuncFactory(workflow *models.Workflow, execCtx *models.ExecutionContext) subscription.TriggerFuncFactory {
	return func(node *models.WorkflowNode) subscription.TriggerFunc {
		logger := b.logger.With("workflow_id", workflow.ID, "node_name", node.Name)

		return func(ctx context.Context, payload map[string]any) {
			if err := b.workflows.SaveStaticData(ctx, workflow.ID, workflow.StaticData); err != nil {
				logger.Error("Failed to persist static data before run", "error", err)
			}

			go func() {
				runID, err := b.engine.RunNode(context.WithoutCancel(ctx), workflow, node, execCtx,
					[]map[string]any{payload}, models.ExecutionModeTrigger)
				if err != nil {
					logger.Error("Triggered run failed to start", "error", err)

					return
				}

				logger.Debug("Started run from trigger notification", "run_id", runID)
			}()
		}
	}
}
