package hetzner

// ServerNotFoundError represents an "already absent" case the logic layer
// treats as success for idempotent destroys.
type ServerNotFoundError struct{}

func (e *ServerNotFoundError) Error() string {
	return "server not found"
}

func (e *ServerNotFoundError) IsNotFound() {}

var errServerNotFound = &ServerNotFoundError{}
