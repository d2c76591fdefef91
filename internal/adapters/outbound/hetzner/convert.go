package hetzner

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

// bytesPerGB uses decimal GB, matching how Hetzner bills traffic.
const bytesPerGB = 1_000_000_000

func bytesToGB(b uint64) float64 {
	return float64(b) / bytesPerGB
}

// toDomainServer flattens an SDK server into the plain domain snapshot.
// SSH keys are not reported by the API after creation and stay empty.
func toDomainServer(server *hcloud.Server) fleet.Server {
	out := fleet.Server{
		Name:   server.Name,
		Status: toDomainStatus(server.Status),
	}

	if server.ServerType != nil {
		out.Type = server.ServerType.Name
	}

	if server.Image != nil {
		out.Image = server.Image.Name
	}

	if server.Datacenter != nil && server.Datacenter.Location != nil {
		out.Location = server.Datacenter.Location.Name
	}

	if server.PublicNet.IPv4.IP != nil {
		out.PublicIPv4 = server.PublicNet.IPv4.IP.String()
	}

	return out
}

func toDomainStatus(status hcloud.ServerStatus) fleet.ServerStatus {
	switch status {
	case hcloud.ServerStatusRunning:
		return fleet.ServerStatusRunning
	case hcloud.ServerStatusOff:
		return fleet.ServerStatusStopped
	default:
		return fleet.ServerStatusUnknown
	}
}
