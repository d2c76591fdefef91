package botcmd

import (
	"context"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

// Source is the inbound command stream from the chat transport. The channel
// lives for the whole process and is closed only on transport shutdown.
type Source interface {
	Commands() <-chan fleet.Command
}

// Replier sends a rendered reply back to the chat a command came from.
type Replier interface {
	Reply(ctx context.Context, cmd fleet.Command, text string) error
}

// Directory is the read side of the provider's server API used by the
// list/traffic queries.
type Directory interface {
	ListAll(ctx context.Context) ([]fleet.Server, error)
}

// Probe measures traffic usage for one server.
type Probe interface {
	Sample(ctx context.Context, server fleet.Server) (fleet.UsageSample, error)
}

// Lifecycle is the slice of the lifecycle controller reachable from
// operator commands.
type Lifecycle interface {
	Destroy(ctx context.Context, name string) error
	Rebuild(ctx context.Context, name string) (fleet.Server, error)
}

// StagingReader exposes the notification staging state for the status view.
type StagingReader interface {
	LastNotified(serverName string) (int, bool)
}
