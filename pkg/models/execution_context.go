package models

// ExecutionContext carries resolved credentials and shared helpers for one
// lifecycle operation or dispatch. It is built by the execution engine
// collaborator and never cached across operations.
type ExecutionContext struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	NodeName    string         `json:"node_name,omitempty"`
	Mode        ExecutionMode  `json:"mode"`
	Credentials map[string]any `json:"credentials,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
}
