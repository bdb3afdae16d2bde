package models

// CategoryType represents the category of a node.
type CategoryType string

const (
	CategoryTypeAction  CategoryType = "action"  // Regular action nodes (http, transform, etc.)
	CategoryTypeTrigger CategoryType = "trigger" // Start-capable nodes (webhook, poll, event, manual)
)

// Built-in trigger node types.
const (
	NodeTypeTriggerWebhook = "trigger:webhook" // Fired by an inbound HTTP request
	NodeTypeTriggerPoll    = "trigger:poll"    // Fired by a scheduled poll tick
	NodeTypeTriggerEvent   = "trigger:event"   // Fired by an external event notification
	NodeTypeTriggerManual  = "trigger:manual"  // Fired by an operator
)

// WorkflowNode represents a node instance in a workflow graph.
type WorkflowNode struct {
	ID       string         `json:"id"       validate:"required"`
	Name     string         `json:"name"     validate:"required,min=1"`
	Type     string         `json:"type"     validate:"required"`
	Category CategoryType   `json:"category" validate:"required"`
	Config   map[string]any `json:"config"`
	Disabled bool           `json:"disabled"`
}

func (n *WorkflowNode) IsActionNode() bool {
	return n.Category == CategoryTypeAction
}

func (n *WorkflowNode) IsTriggerNode() bool {
	return n.Category == CategoryTypeTrigger
}

func (n *WorkflowNode) IsWebhookNode() bool {
	return n.Type == NodeTypeTriggerWebhook
}

func (n *WorkflowNode) IsPollNode() bool {
	return n.Type == NodeTypeTriggerPoll
}

func (n *WorkflowNode) IsEventNode() bool {
	return n.Type == NodeTypeTriggerEvent
}

// CanStartWorkflow reports whether the node is a recognized start-capable
// entry point for activation purposes.
func (n *WorkflowNode) CanStartWorkflow() bool {
	switch n.Type {
	case NodeTypeTriggerWebhook, NodeTypeTriggerPoll, NodeTypeTriggerEvent, NodeTypeTriggerManual:
		return true
	default:
		return false
	}
}

// ConfigString returns a string value from the node configuration, or the
// fallback when the key is absent or not a string.
func (n *WorkflowNode) ConfigString(key, fallback string) string {
	if value, ok := n.Config[key].(string); ok && value != "" {
		return value
	}

	return fallback
}
