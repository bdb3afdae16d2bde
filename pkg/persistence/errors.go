// Package persistence provides standardized error types for persistence operations.
package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDuplicateWebhookPath indicates a static webhook registration collided
	// with an existing row on (path, method).
	ErrDuplicateWebhookPath = errors.New("webhook path and method already registered")

	// ErrWebhookNotFound indicates no webhook registration matched the query.
	ErrWebhookNotFound = errors.New("webhook registration not found")
)

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsDuplicateWebhookPath checks if an error indicates a static webhook collision.
func IsDuplicateWebhookPath(err error) bool {
	return errors.Is(err, ErrDuplicateWebhookPath)
}

// IsWebhookNotFound checks if an error indicates a missing webhook registration.
func IsWebhookNotFound(err error) bool {
	return errors.Is(err, ErrWebhookNotFound)
}
