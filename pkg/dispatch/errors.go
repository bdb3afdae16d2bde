package dispatch

import "errors"

var (
	// ErrStartNodeNotFound indicates the persisted webhook row names a node
	// that is absent from the live graph (stale registration after an edit).
	ErrStartNodeNotFound = errors.New("webhook start node not found in workflow")

	// ErrPayloadInvalid indicates the inbound payload failed the webhook
	// node's configured JSON schema.
	ErrPayloadInvalid = errors.New("webhook payload failed schema validation")
)

// IsStartNodeNotFound checks if an error indicates a stale webhook registration.
func IsStartNodeNotFound(err error) bool {
	return errors.Is(err, ErrStartNodeNotFound)
}

// IsPayloadInvalid checks if an error indicates a schema validation failure.
func IsPayloadInvalid(err error) bool {
	return errors.Is(err, ErrPayloadInvalid)
}
