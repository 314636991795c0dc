package instance

import "errors"

var (
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrServerIDMismatch is returned when a reconfigure targets a server
	// id other than the one this process runs as.
	ErrServerIDMismatch = errors.New("server id mismatch")
)
