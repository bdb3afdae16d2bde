// Package models defines the core domain models for the active-workflow control plane.
package models

import "time"

// Workflow represents a triggerable automation graph managed by the control plane.
// The Active flag is the persisted source of truth for activation intent; the
// control plane only ever holds a transient in-memory copy per operation.
type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"        validate:"required,min=3"`
	Active      bool              `json:"active"`
	Nodes       []*WorkflowNode   `json:"nodes"       validate:"required,dive"`
	Connections []*Connection     `json:"connections"`
	StaticData  map[string]any    `json:"static_data,omitempty"` // Accumulated side-state, persisted across runs
	Settings    *WorkflowSettings `json:"settings,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// WorkflowSettings holds per-workflow configuration knobs.
type WorkflowSettings struct {
	Timezone      string `json:"timezone,omitempty"`
	ErrorWorkflow string `json:"error_workflow,omitempty"`
}

// Connection connects two nodes in the graph.
type Connection struct {
	ID         string `json:"id"`
	SourceNode string `json:"source_node" validate:"required"`
	TargetNode string `json:"target_node" validate:"required"`
}

// NodeByName returns the node with the given name, or nil when absent.
func (w *Workflow) NodeByName(name string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.Name == name {
			return node
		}
	}

	return nil
}

// TriggerNodes returns the enabled trigger-class nodes of the workflow.
func (w *Workflow) TriggerNodes() []*WorkflowNode {
	nodes := make([]*WorkflowNode, 0)

	for _, node := range w.Nodes {
		if node.IsTriggerNode() && !node.Disabled {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// CanBeActivated reports whether the workflow contains at least one enabled
// start-capable node. Workflows without one cannot be activated.
func (w *Workflow) CanBeActivated() bool {
	for _, node := range w.Nodes {
		if node.CanStartWorkflow() && !node.Disabled {
			return true
		}
	}

	return false
}

// HasLiveSubscriptionNodes reports whether the workflow defines trigger- or
// poll-type entry points. Only such workflows occupy a live subscription slot;
// a workflow with webhooks only is still active for routing purposes.
func (w *Workflow) HasLiveSubscriptionNodes() bool {
	for _, node := range w.Nodes {
		if node.Disabled {
			continue
		}

		if node.IsEventNode() || node.IsPollNode() {
			return true
		}
	}

	return false
}

// WebhookDefinitions derives the full webhook definition set from the live
// graph. The persisted registration rows carry only the routing subset; the
// definitions recovered here include response handling configuration.
func (w *Workflow) WebhookDefinitions() []*WebhookDefinition {
	defs := make([]*WebhookDefinition, 0)

	for _, node := range w.Nodes {
		if !node.IsWebhookNode() || node.Disabled {
			continue
		}

		defs = append(defs, NewWebhookDefinition(node))
	}

	return defs
}
