package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrDestroyServer  = errors.New("destroy server")
	ErrServerNotFound = errors.New("server not found")
	ErrListServers    = errors.New("list servers")
)

// Rebuild stages, in execution order. A RebuildError names the stage that
// failed so the operator knows whether the server still exists.
const (
	StageLookup = "lookup"
	StageDelete = "delete"
	StageCreate = "create"
	StageDNS    = "dns"
)

// RebuildError reports which rebuild stage failed. A failure at StageCreate
// leaves the server absent (it was already deleted); a failure at StageDNS
// leaves the new server running with a stale DNS record.
type RebuildError struct {
	Stage string
	Err   error
}

func (e *RebuildError) Error() string {
	return fmt.Sprintf("rebuild stage %s: %v", e.Stage, e.Err)
}

func (e *RebuildError) Unwrap() error {
	return e.Err
}
