package router

import "errors"

var (
	// ErrRouteNotFound indicates no registration matched the method+path pair.
	ErrRouteNotFound = errors.New("webhook route not found")

	// ErrDuplicateRoute indicates a static registration collided with an
	// existing one on (path, method).
	ErrDuplicateRoute = errors.New("webhook route already registered")
)

// IsRouteNotFound checks if an error indicates an unmatched route.
func IsRouteNotFound(err error) bool {
	return errors.Is(err, ErrRouteNotFound)
}

// IsDuplicateRoute checks if an error indicates a conflicting registration.
func IsDuplicateRoute(err error) bool {
	return errors.Is(err, ErrDuplicateRoute)
}
