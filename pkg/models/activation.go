package models

import "time"

// ActivationMode describes why a workflow is being activated.
type ActivationMode string

const (
	ActivationModeInit     ActivationMode = "init"     // Bulk re-activation at process start
	ActivationModeActivate ActivationMode = "activate" // Explicit administrative activation
	ActivationModeUpdate   ActivationMode = "update"   // Re-activation after a workflow edit
)

// ExecutionMode describes how a run of a workflow was started.
type ExecutionMode string

const (
	ExecutionModeWebhook  ExecutionMode = "webhook"
	ExecutionModeTrigger  ExecutionMode = "trigger"
	ExecutionModeInternal ExecutionMode = "internal"
)

// ActivationError records the most recent activation failure for a workflow.
// Entries live only for the process lifetime; a restart clears them and
// re-attempts activation from the persisted Active flag.
type ActivationError struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}
