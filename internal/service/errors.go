package service

import "errors"

// Common service-level errors
var (
	// ErrUnsupportedAgentType indicates a submission named an agent type no
	// registered handler serves.
	ErrUnsupportedAgentType = errors.New("unsupported agent type")

	// ErrTaskNotOwned indicates the requesting user is neither the task's
	// owner nor a superuser.
	ErrTaskNotOwned = errors.New("not enough permissions to access this task")
)
