// Package lifecycle executes the destructive half of the system: destroying,
// rebuilding and recreating servers against the provider directory, with
// operator notifications and DNS updates as side effects.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skillcoder/trafficwarden/internal/infra/metrics"
	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

const (
	// defaultDeleteGrace is how long a rebuild waits after deletion before
	// recreating under the same name, giving the provider time to settle.
	defaultDeleteGrace = 5 * time.Second

	destroyReasonOverLimit = "over_limit"
	destroyReasonManual    = "manual"
	destroyReasonSleep     = "sleep"
	destroyReasonRebuild   = "rebuild"
)

// Controller owns all lifecycle mutations. Operations targeting the same
// server name are serialized; different names proceed independently.
type Controller struct {
	logger       *slog.Logger
	directory    Directory
	messenger    Messenger
	dns          DNSUpdater
	tracker      Resetter
	rebuildSpecs map[string]fleet.CreateSpec
	dnsFQDN      string
	deleteGrace  time.Duration
	locks        *nameLocks
}

// Option configures a Controller.
type Option func(*Controller)

// WithDNS enables the DNS update after rebuild, pointing fqdn at the new
// server's public IPv4.
func WithDNS(dns DNSUpdater, fqdn string) Option {
	return func(c *Controller) {
		c.dns = dns
		c.dnsFQDN = fqdn
	}
}

// WithDeleteGrace overrides the delete-to-create settle wait used by Rebuild.
func WithDeleteGrace(grace time.Duration) Option {
	return func(c *Controller) {
		c.deleteGrace = grace
	}
}

// New creates a lifecycle controller. rebuildSpecs are the configured
// sleep-mode create specs, also consulted during Rebuild for the SSH keys
// the provider cannot report back.
func New(
	logger *slog.Logger,
	directory Directory,
	messenger Messenger,
	tracker Resetter,
	rebuildSpecs []fleet.CreateSpec,
	opts ...Option,
) *Controller {
	byName := make(map[string]fleet.CreateSpec, len(rebuildSpecs))
	for _, spec := range rebuildSpecs {
		byName[spec.Name] = spec
	}

	c := &Controller{
		logger:       logger,
		directory:    directory,
		messenger:    messenger,
		tracker:      tracker,
		rebuildSpecs: byName,
		deleteGrace:  defaultDeleteGrace,
		locks:        newNameLocks(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Destroy deletes a server by name. A server that is already absent counts
// as success. On success the notification staging for the name is reset;
// on provider failure it is left untouched so the caller may retry.
func (c *Controller) Destroy(ctx context.Context, name string) error {
	return c.destroy(ctx, name, destroyReasonManual)
}

func (c *Controller) destroy(ctx context.Context, name, reason string) error {
	unlock := c.locks.acquire(name)
	defer unlock()

	err := c.directory.Delete(ctx, name)
	if err != nil {
		var target notFound
		if errors.As(err, &target) {
			c.logger.InfoContext(ctx, "server already absent on destroy", "server", name)
			c.tracker.Reset(name)

			return nil
		}

		return fmt.Errorf("%w %s: %w", ErrDestroyServer, name, err)
	}

	c.tracker.Reset(name)
	metrics.RecordServerDestroyed(reason)
	c.logger.InfoContext(ctx, "server destroyed", "server", name, "reason", reason)

	return nil
}

// DestroyOverLimit alerts the operator and destroys a server that crossed
// the hard traffic cap. The alert is best-effort and never blocks the
// destroy.
func (c *Controller) DestroyOverLimit(ctx context.Context, name string, usagePercent float64) error {
	c.notify(ctx, renderOverLimit(name, usagePercent))
	c.logger.WarnContext(ctx, "traffic limit exceeded, destroying server",
		"server", name,
		"usagePercent", usagePercent,
	)

	return c.destroy(ctx, name, destroyReasonOverLimit)
}

// Warn sends a staged usage warning. Best-effort: a send failure is logged
// and counted, nothing else.
func (c *Controller) Warn(ctx context.Context, server fleet.Server, usagePercent float64, threshold int) {
	c.notify(ctx, renderWarning(server, usagePercent, threshold))
	metrics.RecordUsageWarning(server.Name, threshold)
	c.logger.InfoContext(ctx, "usage warning sent",
		"server", server.Name,
		"usagePercent", usagePercent,
		"threshold", threshold,
	)
}

// Rebuild deletes a server and recreates it with an identical spec, then
// updates DNS when enabled. Type, image and location come from the live
// server; SSH keys come from the configured rebuild spec with the same name
// since the provider does not report them. Any stage failure short-circuits
// with a RebuildError. A StageDNS failure returns the already-created server
// alongside the error.
func (c *Controller) Rebuild(ctx context.Context, name string) (fleet.Server, error) {
	unlock := c.locks.acquire(name)
	defer unlock()

	server, err := c.directory.GetByName(ctx, name)
	if err != nil {
		var target notFound
		if errors.As(err, &target) {
			return fleet.Server{}, &RebuildError{Stage: StageLookup, Err: ErrServerNotFound}
		}

		return fleet.Server{}, &RebuildError{Stage: StageLookup, Err: err}
	}

	spec := fleet.SpecFromServer(*server)
	if configured, ok := c.rebuildSpecs[name]; ok {
		spec.SSHKeys = configured.SSHKeys
	}

	if err := c.directory.Delete(ctx, name); err != nil {
		var target notFound
		if !errors.As(err, &target) {
			return fleet.Server{}, &RebuildError{Stage: StageDelete, Err: err}
		}
	}

	c.tracker.Reset(name)
	metrics.RecordServerDestroyed(destroyReasonRebuild)

	// Let the deletion settle before reusing the name. From here on the
	// server is absent; a create failure is not auto-recovered.
	select {
	case <-ctx.Done():
		return fleet.Server{}, &RebuildError{Stage: StageDelete, Err: ctx.Err()}
	case <-time.After(c.deleteGrace):
	}

	created, err := c.directory.Create(ctx, spec)
	if err != nil {
		return fleet.Server{}, &RebuildError{Stage: StageCreate, Err: err}
	}

	metrics.RecordServerCreated()
	c.logger.InfoContext(ctx, "server rebuilt",
		"server", name,
		"type", created.Type,
		"location", created.Location,
		"ip", created.PublicIPv4,
	)

	if c.dns != nil {
		if err := c.dns.Update(ctx, c.dnsFQDN, created.PublicIPv4); err != nil {
			metrics.RecordDNSUpdate(false)

			return created, &RebuildError{Stage: StageDNS, Err: err}
		}

		metrics.RecordDNSUpdate(true)
		c.logger.InfoContext(ctx, "dns record updated", "fqdn", c.dnsFQDN, "ip", created.PublicIPv4)
	}

	return created, nil
}

// ShutdownAll destroys every currently known server. Individual failures
// are logged and counted, never abort the batch. The returned error is
// non-nil only when the fleet could not be listed at all.
func (c *Controller) ShutdownAll(ctx context.Context) (destroyed, failed int, err error) {
	servers, err := c.directory.ListAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrListServers, err)
	}

	for _, server := range servers {
		if err := c.destroy(ctx, server.Name, destroyReasonSleep); err != nil {
			c.logger.ErrorContext(ctx, "sleep shutdown: destroy failed",
				"server", server.Name,
				"reason", err,
			)

			failed++

			continue
		}

		destroyed++

		c.notify(ctx, renderSleepShutdown(server.Name))
	}

	c.logger.InfoContext(ctx, "sleep shutdown complete", "destroyed", destroyed, "failed", failed)

	return destroyed, failed, nil
}

// StartupAll creates one server per configured rebuild spec. Per-spec
// failures are isolated; the batch continues.
func (c *Controller) StartupAll(ctx context.Context) (created, failed int) {
	for _, spec := range c.rebuildSpecs {
		server, err := c.directory.Create(ctx, spec)
		if err != nil {
			c.logger.ErrorContext(ctx, "sleep startup: create failed",
				"server", spec.Name,
				"reason", err,
			)

			failed++

			continue
		}

		created++

		metrics.RecordServerCreated()
		c.notify(ctx, renderSleepStartup(server.Name, server.PublicIPv4))
	}

	c.logger.InfoContext(ctx, "sleep startup complete", "created", created, "failed", failed)

	return created, failed
}

// notify sends a message to the operator, logging and counting failures.
func (c *Controller) notify(ctx context.Context, text string) {
	if err := c.messenger.Send(ctx, text); err != nil {
		metrics.RecordNotifyFailure()
		c.logger.ErrorContext(ctx, "notification send failed", "reason", err)
	}
}
