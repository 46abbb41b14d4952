package queue

import "errors"

var (
	// ErrInvalidVisibilityTimeout is returned by Pull for a negative timeout
	// and by PullSeconds for one that does not fit in a time.Duration.
	ErrInvalidVisibilityTimeout = errors.New("queue: visibility timeout out of range")

	// ErrClosed is returned by Push and Pull after Close.
	ErrClosed = errors.New("queue: closed")
)
