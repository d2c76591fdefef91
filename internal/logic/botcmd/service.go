// Package botcmd maps inbound chat commands to read-only fleet queries and
// lifecycle actions, and renders short human replies. It runs on its own
// execution path, concurrent with the scheduler.
package botcmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

// StatusInfo is the static configuration shown by /help and /status.
type StatusInfo struct {
	Thresholds   []int
	LimitPercent int
	PollInterval time.Duration
	SleepEnabled bool
	ShutdownTime string
	StartupTime  string
}

// Service consumes the command stream and dispatches each command.
type Service struct {
	logger     *slog.Logger
	source     Source
	replier    Replier
	directory  Directory
	probe      Probe
	lifecycle  Lifecycle
	staging    StagingReader
	info       StatusInfo
	ready      chan struct{}
	doneCh     chan struct{}
	inShutdown atomic.Bool
}

// New creates the command dispatcher service.
func New(
	logger *slog.Logger,
	source Source,
	replier Replier,
	directory Directory,
	probe Probe,
	lifecycle Lifecycle,
	staging StagingReader,
	info StatusInfo,
) *Service {
	return &Service{
		logger:    logger,
		source:    source,
		replier:   replier,
		directory: directory,
		probe:     probe,
		lifecycle: lifecycle,
		staging:   staging,
		info:      info,
		ready:     make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Name returns the name of the command dispatcher component.
func (s *Service) Name() string {
	return "bot-commands"
}

// Start runs the dispatch loop in a goroutine.
func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "command service is shutting down, skipping start")

		return nil
	}

	go s.RunCommand(ctx)

	return nil
}

// Ready returns a channel that is closed once the dispatch loop is running.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Ping reports readiness of the dispatch loop.
func (s *Service) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
		return nil
	default:
		return fmt.Errorf("command service is not ready")
	}
}

// Shutdown waits for the dispatch loop to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "command service is already shutting down, skipping shutdown")

		return nil
	}

	defer func() {
		s.logger.InfoContext(ctx, "command service shut downed")
	}()

	s.logger.InfoContext(ctx, "shutting down command service")

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before command loop exited: %w", ctx.Err())
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "command loop exited")
	}

	return nil
}

// RunCommand reads commands until the stream closes or the context is
// cancelled. Commands are handled inline, one at a time; provider calls are
// bounded by the adapters' timeouts.
func (s *Service) RunCommand(ctx context.Context) {
	defer close(s.doneCh)

	logger := s.logger.With("botcmd", "RunCommand")

	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "terminating command loop")

			return
		case cmd, ok := <-s.source.Commands():
			if !ok {
				logger.InfoContext(ctx, "command stream closed, terminating command loop")

				return
			}

			s.Dispatch(ctx, cmd)
		}
	}
}

// Dispatch handles a single command and replies to the operator. Failures
// become short human-readable replies, never raw internals.
func (s *Service) Dispatch(ctx context.Context, cmd fleet.Command) {
	logger := s.logger.With("command", cmd.Name, "args", cmd.Args)
	logger.InfoContext(ctx, "command received")

	var text string

	switch cmd.Name {
	case "start", "help":
		text = renderHelp(s.info)
	case "ll", "list":
		text = s.handleList(ctx)
	case "traffic":
		text = s.handleTraffic(ctx)
	case "status":
		text = renderStatus(s.info, time.Now())
	case "rebuild":
		text = s.handleRebuild(ctx, cmd.Args)
	case "stop":
		text = s.handleStop(ctx, cmd.Args)
	default:
		text = fmt.Sprintf("❌ Unknown command /%s, see /help", cmd.Name)
	}

	if err := s.replier.Reply(ctx, cmd, text); err != nil {
		logger.ErrorContext(ctx, "reply send failed", "reason", err)
	}
}

func (s *Service) handleList(ctx context.Context) string {
	servers, usage, err := s.snapshot(ctx)
	if err != nil {
		return "❌ Could not list servers, try again later"
	}

	warned := make(map[string]int, len(servers))

	for i := range servers {
		if threshold, ok := s.staging.LastNotified(servers[i].Name); ok {
			warned[servers[i].Name] = threshold
		}
	}

	return renderServerList(servers, usage, warned)
}

func (s *Service) handleTraffic(ctx context.Context) string {
	servers, usage, err := s.snapshot(ctx)
	if err != nil {
		return "❌ Could not list servers, try again later"
	}

	return renderTraffic(servers, usage)
}

func (s *Service) handleRebuild(ctx context.Context, args string) string {
	name := strings.TrimSpace(args)
	if name == "" {
		return "❌ Usage: /rebuild <server>"
	}

	server, err := s.lifecycle.Rebuild(ctx, name)
	if err != nil {
		s.logger.ErrorContext(ctx, "rebuild failed", "server", name, "reason", err)

		return fmt.Sprintf("❌ Rebuild of *%s* failed", name)
	}

	return fmt.Sprintf("✅ Server *%s* rebuilt\nIP: %s", server.Name, server.PublicIPv4)
}

func (s *Service) handleStop(ctx context.Context, args string) string {
	name := strings.TrimSpace(args)
	if name == "" {
		return "❌ Usage: /stop <server>"
	}

	if err := s.lifecycle.Destroy(ctx, name); err != nil {
		s.logger.ErrorContext(ctx, "destroy failed", "server", name, "reason", err)

		return fmt.Sprintf("❌ Deleting *%s* failed", name)
	}

	return fmt.Sprintf("✅ Server *%s* deleted", name)
}

// snapshot reads the fleet once and probes usage for each server.
// Individual probe failures leave a gap in the usage map; the renderers
// show those explicitly instead of pretending 0%.
func (s *Service) snapshot(ctx context.Context) ([]fleet.Server, map[string]fleet.UsageSample, error) {
	servers, err := s.directory.ListAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list servers failed", "reason", err)

		return nil, nil, err
	}

	usage := make(map[string]fleet.UsageSample, len(servers))

	for i := range servers {
		sample, err := s.probe.Sample(ctx, servers[i])
		if err != nil {
			s.logger.ErrorContext(ctx, "usage probe failed",
				"server", servers[i].Name,
				"reason", err,
			)

			continue
		}

		usage[servers[i].Name] = sample
	}

	return servers, usage, nil
}
