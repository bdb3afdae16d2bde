// Package engine defines the contract the control plane requires from the
// external execution engine. The engine owns node-graph execution semantics;
// the control plane only hands it a workflow, a start node, and seed data.
package engine

import (
	"context"

	"github.com/hookplane/hookplane/pkg/models"
)

// WebhookRequest carries the inbound HTTP event handed to a webhook run.
type WebhookRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Params  map[string]string `json:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    map[string]any    `json:"body,omitempty"`
}

// WebhookResult is the engine's completion payload for a webhook run. The
// engine reports completion exactly once, as either a result or an error.
type WebhookResult struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    map[string]any    `json:"body,omitempty"`
}

// Engine runs workflow graphs. The control plane imposes no deadline on a run;
// cancellation is the engine's concern via the supplied context.
type Engine interface {
	// BuildContext resolves credentials and shared helpers for one operation.
	BuildContext(ctx context.Context, workflow *models.Workflow, nodeName string, mode models.ExecutionMode) (*models.ExecutionContext, error)

	// RunWebhook starts a run from the given node in webhook mode and blocks
	// until the engine reports completion.
	RunWebhook(ctx context.Context, workflow *models.Workflow, startNode *models.WorkflowNode, execCtx *models.ExecutionContext, req *WebhookRequest) (*WebhookResult, error)

	// RunNode starts a run from the given node seeded with the supplied items
	// and returns the run id.
	RunNode(ctx context.Context, workflow *models.Workflow, startNode *models.WorkflowNode, execCtx *models.ExecutionContext, seed []map[string]any, mode models.ExecutionMode) (string, error)

	// Poll checks the external source behind a poll node once and returns any
	// produced items.
	Poll(ctx context.Context, workflow *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) ([]map[string]any, error)
}
