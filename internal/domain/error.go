package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrPromptTooLong     = errors.New("prompt exceeds maximum length")
	ErrAlreadySubscribed = errors.New("job stream already has a subscriber")
	ErrChannelClosed     = errors.New("event channel is closed")
	ErrTerminalJob       = errors.New("job already in terminal status")
	ErrQueueFull         = errors.New("workflow queue is full")
	ErrNoProvider        = errors.New("no usable AI provider credential")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrOperationFailed   = errors.New("operation failed")
)
