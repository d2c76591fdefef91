// Package hetzner adapts the Hetzner Cloud API to the logic layer's
// directory and probe ports.
package hetzner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

// callTimeout bounds every provider API call; an expired call is a failure,
// never retried at this layer.
const callTimeout = 30 * time.Second

type Adapter struct {
	logger *slog.Logger
	client *hcloud.Client
}

// New creates a new Hetzner Cloud adapter.
func New(logger *slog.Logger, client *hcloud.Client) *Adapter {
	return &Adapter{
		logger: logger,
		client: client,
	}
}

// ListAll returns a snapshot of every server in the account.
func (a *Adapter) ListAll(ctx context.Context) ([]fleet.Server, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	servers, err := a.client.Server.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	out := make([]fleet.Server, 0, len(servers))
	for _, server := range servers {
		out = append(out, toDomainServer(server))
	}

	return out, nil
}

// GetByName returns the server with the given name, or a not-found error.
func (a *Adapter) GetByName(ctx context.Context, name string) (*fleet.Server, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	server, _, err := a.client.Server.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get server %s: %w", name, err)
	}

	if server == nil {
		return nil, fmt.Errorf("get server %s: %w", name, errServerNotFound)
	}

	domain := toDomainServer(server)

	return &domain, nil
}

// Create provisions a server from a spec. SSH key names are resolved
// against the account; a missing key fails the create.
func (a *Adapter) Create(ctx context.Context, spec fleet.CreateSpec) (fleet.Server, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	sshKeys := make([]*hcloud.SSHKey, 0, len(spec.SSHKeys))

	for _, keyName := range spec.SSHKeys {
		key, _, err := a.client.SSHKey.GetByName(ctx, keyName)
		if err != nil {
			return fleet.Server{}, fmt.Errorf("resolve ssh key %s: %w", keyName, err)
		}

		if key == nil {
			return fleet.Server{}, fmt.Errorf("resolve ssh key %s: not found", keyName)
		}

		sshKeys = append(sshKeys, key)
	}

	result, _, err := a.client.Server.Create(ctx, hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: &hcloud.ServerType{Name: spec.Type},
		Image:      &hcloud.Image{Name: spec.Image},
		Location:   &hcloud.Location{Name: spec.Location},
		SSHKeys:    sshKeys,
	})
	if err != nil {
		return fleet.Server{}, fmt.Errorf("create server %s: %w", spec.Name, err)
	}

	a.logger.InfoContext(ctx, "server created",
		"server", spec.Name,
		"type", spec.Type,
		"location", spec.Location,
	)

	server := toDomainServer(result.Server)
	server.SSHKeys = spec.SSHKeys

	return server, nil
}

// Delete removes a server by name. An absent server yields a not-found
// error the logic layer treats as success.
func (a *Adapter) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	server, _, err := a.client.Server.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("get server %s: %w", name, err)
	}

	if server == nil {
		return fmt.Errorf("delete server %s: %w", name, errServerNotFound)
	}

	if _, _, err := a.client.Server.DeleteWithResult(ctx, server); err != nil {
		return fmt.Errorf("delete server %s: %w", name, err)
	}

	return nil
}

// Sample reads the traffic counters for a server. Hetzner reports outgoing
// traffic against the plan's included allowance; both come back in bytes.
func (a *Adapter) Sample(ctx context.Context, server fleet.Server) (fleet.UsageSample, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	current, _, err := a.client.Server.GetByName(ctx, server.Name)
	if err != nil {
		return fleet.UsageSample{}, fmt.Errorf("sample traffic for %s: %w", server.Name, err)
	}

	if current == nil {
		return fleet.UsageSample{}, fmt.Errorf("sample traffic for %s: %w", server.Name, errServerNotFound)
	}

	if current.IncludedTraffic == 0 {
		// No allowance reported (e.g. unlimited plan); there is no
		// meaningful percentage, so this is a probe failure, not 0%.
		return fleet.UsageSample{}, fmt.Errorf("sample traffic for %s: included traffic not reported", server.Name)
	}

	return fleet.UsageSample{
		ServerName: server.Name,
		UsedGB:     bytesToGB(current.OutgoingTraffic),
		TotalGB:    bytesToGB(current.IncludedTraffic),
	}, nil
}
