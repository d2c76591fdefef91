package monitor

import (
	"context"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

// Directory is the read side of the provider's server API consumed by the
// poll loop.
type Directory interface {
	ListAll(ctx context.Context) ([]fleet.Server, error)
}

// Probe measures traffic usage for one server. A failed probe is an
// explicit error; the caller must never mistake it for zero usage.
type Probe interface {
	Sample(ctx context.Context, server fleet.Server) (fleet.UsageSample, error)
}

// Lifecycle is the slice of the lifecycle controller the scheduler drives.
type Lifecycle interface {
	Warn(ctx context.Context, server fleet.Server, usagePercent float64, threshold int)
	DestroyOverLimit(ctx context.Context, name string, usagePercent float64) error
	ShutdownAll(ctx context.Context) (destroyed, failed int, err error)
	StartupAll(ctx context.Context) (created, failed int)
}
