package lifecycle

import (
	"context"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

// Directory is the port for the cloud provider's server API.
// Implementations are provided by adapters in the outbound layer.
// GetByName and Delete signal an absent server with an error implementing
// IsNotFound(), never with a nil result.
type Directory interface {
	ListAll(ctx context.Context) ([]fleet.Server, error)
	GetByName(ctx context.Context, name string) (*fleet.Server, error)
	Create(ctx context.Context, spec fleet.CreateSpec) (fleet.Server, error)
	Delete(ctx context.Context, name string) error
}

// Messenger is the port for operator notifications. Sends are best-effort;
// the controller logs failures and never lets them block a lifecycle action.
type Messenger interface {
	Send(ctx context.Context, text string) error
}

// DNSUpdater is the port for pointing a DNS record at a rebuilt server.
type DNSUpdater interface {
	Update(ctx context.Context, fqdn, ip string) error
}

// Resetter clears per-server notification staging once a server is
// confirmed destroyed.
type Resetter interface {
	Reset(serverName string)
}

// notFound is a private interface for checking "not found" errors
// without importing the adapter package.
type notFound interface {
	IsNotFound()
}
