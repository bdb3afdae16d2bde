// Package local provides the in-process execution engine: sequential graph
// traversal from a start node with a registry of built-in actions.
package local

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hookplane/hookplane/pkg/engine"
	"github.com/hookplane/hookplane/pkg/models"
)

// Engine walks the workflow graph node by node. Runs are sequential; each
// action receives the previous node's output as its input item.
type Engine struct {
	actions map[string]ActionFunc
	logger  *slog.Logger
}

// ActionFunc executes one action node against one input item.
type ActionFunc func(ctx context.Context, node *models.WorkflowNode, item map[string]any, execCtx *models.ExecutionContext) (map[string]any, error)

func NewEngine(logger *slog.Logger) *Engine {
	e := &Engine{
		actions: make(map[string]ActionFunc),
		logger:  logger.With("module", "local_engine"),
	}

	e.RegisterAction("action:log", logAction(e.logger))
	e.RegisterAction("action:http", httpAction)

	return e
}

// RegisterAction installs the handler for an action node type.
func (e *Engine) RegisterAction(nodeType string, fn ActionFunc) {
	e.actions[nodeType] = fn
}

// BuildContext resolves the execution context for one operation. Workflow
// static data is exposed as variables; credentials resolution is left to
// action handlers.
func (e *Engine) BuildContext(ctx context.Context, workflow *models.Workflow, nodeName string, mode models.ExecutionMode) (*models.ExecutionContext, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution context ID: %w", err)
	}

	return &models.ExecutionContext{
		ID:         id.String(),
		WorkflowID: workflow.ID,
		NodeName:   nodeName,
		Mode:       mode,
		Variables:  workflow.StaticData,
	}, nil
}

// RunWebhook runs the graph from the webhook node and reports completion as a
// result. The start node's config decides the response status and headers; the
// last action's output becomes the response body.
func (e *Engine) RunWebhook(ctx context.Context, workflow *models.Workflow, startNode *models.WorkflowNode, execCtx *models.ExecutionContext, req *engine.WebhookRequest) (*engine.WebhookResult, error) {
	seed := map[string]any{
		"method":  req.Method,
		"path":    req.Path,
		"params":  req.Params,
		"headers": req.Headers,
		"query":   req.Query,
		"body":    req.Body,
	}

	output, err := e.runFrom(ctx, workflow, startNode, seed, execCtx)
	if err != nil {
		return nil, err
	}

	result := &engine.WebhookResult{Status: responseCode(startNode), Body: output}

	if headers, ok := startNode.Config["response_headers"].(map[string]any); ok {
		result.Headers = make(map[string]string, len(headers))

		for name, value := range headers {
			if s, ok := value.(string); ok {
				result.Headers[name] = s
			}
		}
	}

	return result, nil
}

// RunNode runs the graph from the given node once per seed item and returns
// the run id.
func (e *Engine) RunNode(ctx context.Context, workflow *models.Workflow, startNode *models.WorkflowNode, execCtx *models.ExecutionContext, seed []map[string]any, mode models.ExecutionMode) (string, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate run ID: %w", err)
	}

	e.logger.Info("Starting run",
		"run_id", runID.String(),
		"workflow_id", workflow.ID,
		"node_name", startNode.Name,
		"mode", string(mode),
		"items", len(seed))

	for _, item := range seed {
		if _, err := e.runFrom(ctx, workflow, startNode, item, execCtx); err != nil {
			return runID.String(), fmt.Errorf("run %s failed: %w", runID.String(), err)
		}
	}

	return runID.String(), nil
}

// Poll checks the source behind a poll node once. A node with a "url" config
// entry is fetched over HTTP; the response is decoded into items.
func (e *Engine) Poll(ctx context.Context, workflow *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) ([]map[string]any, error) {
	url := node.ConfigString("url", "")
	if url == "" {
		return nil, nil
	}

	return fetchItems(ctx, url)
}

// runFrom executes the successors of the start node in sequence. The start
// node itself is the trigger and is not executed as an action.
func (e *Engine) runFrom(ctx context.Context, workflow *models.Workflow, startNode *models.WorkflowNode, item map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	current := item

	node := nextNode(workflow, startNode)
	for node != nil {
		if node.Disabled {
			node = nextNode(workflow, node)

			continue
		}

		fn, exists := e.actions[node.Type]
		if !exists {
			return nil, fmt.Errorf("no action registered for node type %s (node %s)", node.Type, node.Name)
		}

		output, err := fn(ctx, node, current, execCtx)
		if err != nil {
			return nil, fmt.Errorf("action node %s failed: %w", node.Name, err)
		}

		current = output
		node = nextNode(workflow, node)
	}

	return current, nil
}

// nextNode follows the first outgoing connection of the node.
func nextNode(workflow *models.Workflow, node *models.WorkflowNode) *models.WorkflowNode {
	for _, connection := range workflow.Connections {
		if connection.SourceNode != node.ID {
			continue
		}

		for _, candidate := range workflow.Nodes {
			if candidate.ID == connection.TargetNode {
				return candidate
			}
		}
	}

	return nil
}

func responseCode(node *models.WorkflowNode) int {
	if code, ok := node.Config["response_code"].(float64); ok && code > 0 {
		return int(code)
	}

	return 200
}
