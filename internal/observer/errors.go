package observer

import "errors"

// Lifecycle errors returned by Observer methods.
var (
	// ErrNotStarted is returned when a page operation is requested before
	// Start has been called.
	ErrNotStarted = errors.New("observer not started")

	// ErrAlreadyStarted is returned when Start is called on a running observer.
	ErrAlreadyStarted = errors.New("observer already started")

	// ErrStopped is returned once the observer has been stopped, either by
	// Stop or by cancellation of the context passed to Start. A stopped
	// observer cannot be restarted.
	ErrStopped = errors.New("observer stopped")
)
