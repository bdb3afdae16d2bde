// Package testutil provides test data builders for workflows and nodes.
package testutil

import (
	"github.com/google/uuid"

	"github.com/hookplane/hookplane/pkg/models"
)

// CreateTestNode creates a WorkflowNode with default values that can be
// overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:       uuid.New().String(),
		Type:     "action:log",
		Category: models.CategoryTypeAction,
		Name:     "Test Node",
		Config:   map[string]any{"message": "test"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithWebhookNode configures the node as a webhook trigger node.
func WithWebhookNode(method, path string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeTriggerWebhook
		n.Category = models.CategoryTypeTrigger
		n.Config = map[string]any{
			"method": method,
			"path":   path,
		}
	}
}

// WithDynamicWebhookNode configures the node as a dynamic webhook trigger node
// in the given routing group.
func WithDynamicWebhookNode(method, path, webhookID string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeTriggerWebhook
		n.Category = models.CategoryTypeTrigger
		n.Config = map[string]any{
			"method":     method,
			"path":       path,
			"webhook_id": webhookID,
		}
	}
}

// WithPollNode configures the node as a poll trigger node.
func WithPollNode(schedule string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeTriggerPoll
		n.Category = models.CategoryTypeTrigger
		n.Config = map[string]any{"schedule": schedule}
	}
}

// WithEventNode configures the node as an event trigger node.
func WithEventNode() func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeTriggerEvent
		n.Category = models.CategoryTypeTrigger
		n.Config = map[string]any{}
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Name = name
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithDisabled marks the node disabled.
func WithDisabled() func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Disabled = true
	}
}

// CreateTestWorkflow creates an active workflow with the given nodes.
func CreateTestWorkflow(id string, nodes ...*models.WorkflowNode) *models.Workflow {
	return &models.Workflow{
		ID:     id,
		Name:   "Test Workflow " + id,
		Active: true,
		Nodes:  nodes,
	}
}
