package activation

import "errors"

var (
	// ErrNotInitialized indicates the control plane was used before InitWebhooks.
	ErrNotInitialized = errors.New("activation manager not initialized")

	// ErrNotActivatable indicates the workflow has no start-capable node.
	ErrNotActivatable = errors.New("workflow has no trigger node and cannot be activated")
)

// IsNotInitialized checks if an error indicates a missing bootstrap.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}

// IsNotActivatable checks if an error indicates a workflow without entry points.
func IsNotActivatable(err error) bool {
	return errors.Is(err, ErrNotActivatable)
}
