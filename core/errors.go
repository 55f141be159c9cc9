package core

import "errors"

var (
	// ErrNotFound is returned by stores when a path, entry or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAgentNotFound is returned when no agent is registered under the requested name.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInvalidNamespace is returned when a memory namespace lacks the identity its scope requires.
	ErrInvalidNamespace = errors.New("invalid memory namespace")

	// ErrCorruptDocument is returned when a persisted memory blob is not a JSON object.
	ErrCorruptDocument = errors.New("corrupt memory document")
)
