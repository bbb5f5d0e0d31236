package jobs

import "errors"

var (
	// ErrJobNotFound is returned when a job ID is unknown.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueClosed is returned when publishing to a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrSuperseded reports that a newer snapshot was already written.
	ErrSuperseded = errors.New("snapshot superseded by a newer one")
)
