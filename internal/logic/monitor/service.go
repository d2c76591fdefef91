// Package monitor turns periodic usage samples into staged warnings and
// destroy decisions, and drives the daily sleep/wake jobs off a single
// clock.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillcoder/trafficwarden/internal/infra/cronparser"
	"github.com/skillcoder/trafficwarden/internal/infra/metrics"
	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

// tickResolution is how often the scheduler wakes to check for due jobs.
const tickResolution = 1 * time.Second

// SleepSchedule is the daily shutdown/startup timetable. Specs are standard
// five-field cron lines; Timezone is an IANA name applied to both.
type SleepSchedule struct {
	Enabled      bool
	ShutdownSpec string
	StartupSpec  string
	Timezone     string
}

// Service is the scheduler: one loop waking every second, dispatching the
// traffic poll at the configured interval and the sleep-mode jobs at their
// daily times. Jobs run in their own goroutines so a slow batch never
// delays the next due job; each job skips its own overlapping runs.
type Service struct {
	logger    *slog.Logger
	directory Directory
	probe     Probe
	policy    *Policy
	tracker   *Tracker
	lifecycle Lifecycle
	interval  time.Duration
	sleep     SleepSchedule
	parser    *cronparser.Parser

	ready       chan struct{}
	doneCh      chan struct{}
	inShutdown  atomic.Bool
	wg          sync.WaitGroup
	mu          sync.RWMutex
	lastPollEnd time.Time

	pollRunning     atomic.Bool
	shutdownRunning atomic.Bool
	startupRunning  atomic.Bool
}

// New creates the scheduler service.
func New(
	logger *slog.Logger,
	directory Directory,
	probe Probe,
	tracker *Tracker,
	policy *Policy,
	lifecycle Lifecycle,
	interval time.Duration,
	sleep SleepSchedule,
) *Service {
	return &Service{
		logger:    logger,
		directory: directory,
		probe:     probe,
		policy:    policy,
		tracker:   tracker,
		lifecycle: lifecycle,
		interval:  interval,
		sleep:     sleep,
		parser:    cronparser.New(),
		ready:     make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Name returns the name of the scheduler component.
func (s *Service) Name() string {
	return "traffic-monitor"
}

// Start runs the scheduler loop in a goroutine.
func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "monitor service is shutting down, skipping start")

		return nil
	}

	go s.RunCommand(ctx)

	return nil
}

// Ready returns a channel that is closed once the loop is running.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Ping reports unhealthy when the loop has not completed a poll within two
// intervals.
func (s *Service) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
		lastPollAge := s.getLastPollAge()
		if lastPollAge > 2*s.interval {
			return fmt.Errorf("last poll was too long ago: %s", lastPollAge.Round(time.Second).String())
		}

		return nil
	default:
		return fmt.Errorf("monitor service is not ready")
	}
}

// Shutdown waits for the loop and any in-flight jobs to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "monitor service is already shutting down, skipping shutdown")

		return nil
	}

	defer func() {
		s.logger.InfoContext(ctx, "monitor service shut downed")
	}()

	s.logger.InfoContext(ctx, "shutting down monitor service")

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before monitor loop exited: %w", ctx.Err())
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "monitor loop exited")
	}

	// In-flight jobs keep best-effort batch semantics; wait for them.
	jobsDone := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(jobsDone)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before jobs finished: %w", ctx.Err())
	case <-jobsDone:
	}

	return nil
}

// RunCommand runs the scheduler loop until the context is cancelled. The
// first poll fires immediately; the daily jobs fire at their next cron
// occurrence.
func (s *Service) RunCommand(ctx context.Context) {
	defer close(s.doneCh)

	logger := s.logger.With("monitor", "RunCommand")

	now := time.Now()
	nextPoll := now

	var nextShutdown, nextStartup time.Time

	if s.sleep.Enabled {
		nextShutdown = s.nextOccurrence(ctx, logger, s.sleep.ShutdownSpec, now)
		nextStartup = s.nextOccurrence(ctx, logger, s.sleep.StartupSpec, now)
		logger.InfoContext(ctx, "sleep mode scheduled",
			"nextShutdown", nextShutdown,
			"nextStartup", nextStartup,
		)
	}

	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()

	close(s.ready)

	for {
		now := time.Now()

		if !nextPoll.IsZero() && !now.Before(nextPoll) {
			nextPoll = now.Add(s.interval)

			s.dispatch(ctx, logger, "traffic-poll", &s.pollRunning, s.pollOnce)
		}

		if !nextShutdown.IsZero() && !now.Before(nextShutdown) {
			nextShutdown = s.nextOccurrence(ctx, logger, s.sleep.ShutdownSpec, now)

			s.dispatch(ctx, logger, "sleep-shutdown", &s.shutdownRunning, s.sleepShutdown)
		}

		if !nextStartup.IsZero() && !now.Before(nextStartup) {
			nextStartup = s.nextOccurrence(ctx, logger, s.sleep.StartupSpec, now)

			s.dispatch(ctx, logger, "sleep-startup", &s.startupRunning, s.sleepStartup)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.InfoContext(ctx, "terminating monitor loop")

			return
		}
	}
}

// PollOnce runs one traffic poll cycle inline: snapshot the fleet, sample
// usage, decide, dispatch. Per-server failures are isolated.
func (s *Service) PollOnce(ctx context.Context) error {
	logger := s.logger.With("monitor", "PollOnce")

	servers, err := s.directory.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list servers: %w", err)
	}

	logger.DebugContext(ctx, "starting traffic poll", "count", len(servers))

	known := make(map[string]struct{}, len(servers))
	for i := range servers {
		known[servers[i].Name] = struct{}{}
	}

	// State for vanished servers is dropped so a reused name starts clean.
	for _, name := range s.tracker.Prune(known) {
		metrics.ForgetServer(name)
		logger.InfoContext(ctx, "server gone, staging state dropped", "server", name)
	}

	for i := range servers {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "context done, stopping traffic poll")

			return nil
		default:
		}

		s.processServer(ctx, logger, servers[i])
	}

	s.setLastPollEnd()

	return nil
}

func (s *Service) processServer(ctx context.Context, logger *slog.Logger, server fleet.Server) {
	logger = logger.With("server", server.Name)

	// A stopped server still accrues billable traffic; it is monitored
	// exactly like a running one.
	sample, err := s.probe.Sample(ctx, server)
	if err != nil {
		metrics.RecordProbeFailure(server.Name)
		logger.ErrorContext(ctx, "usage probe failed, skipping server", "reason", err)

		return
	}

	usagePercent := sample.Percent()
	metrics.SetServerUsage(server.Name, usagePercent)

	logger.DebugContext(ctx, "usage sampled",
		"usedGB", sample.UsedGB,
		"totalGB", sample.TotalGB,
		"usagePercent", usagePercent,
	)

	decision := s.policy.Decide(server.Name, usagePercent)

	switch decision.Action {
	case ActionWarn:
		s.lifecycle.Warn(ctx, server, usagePercent, decision.Threshold)
	case ActionDestroy:
		if err := s.lifecycle.DestroyOverLimit(ctx, server.Name, usagePercent); err != nil {
			logger.ErrorContext(ctx, "over-limit destroy failed", "reason", err)
		}
	case ActionNone:
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	if err := s.PollOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "traffic poll error", "reason", err)
	}
}

func (s *Service) sleepShutdown(ctx context.Context) {
	if _, _, err := s.lifecycle.ShutdownAll(ctx); err != nil {
		s.logger.ErrorContext(ctx, "sleep shutdown error", "reason", err)
	}
}

func (s *Service) sleepStartup(ctx context.Context) {
	s.lifecycle.StartupAll(ctx)
}

// dispatch runs a due job in its own goroutine unless its previous run is
// still in flight, in which case the run is skipped.
func (s *Service) dispatch(
	ctx context.Context,
	logger *slog.Logger,
	name string,
	running *atomic.Bool,
	job func(context.Context),
) {
	if !running.CompareAndSwap(false, true) {
		logger.WarnContext(ctx, "previous job run still in flight, skipping", "job", name)

		return
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer running.Store(false)

		start := time.Now()
		job(ctx)

		logger.DebugContext(ctx, "job finished", "job", name, "duration", time.Since(start))
	}()
}

func (s *Service) nextOccurrence(
	ctx context.Context,
	logger *slog.Logger,
	spec string,
	after time.Time,
) time.Time {
	next, err := s.parser.NextAfter(spec, s.sleep.Timezone, after)
	if err != nil {
		// Specs are validated at config load; a failure here disables the job.
		logger.ErrorContext(ctx, "cron spec no longer parses, job disabled",
			"spec", spec,
			"reason", err,
		)

		return time.Time{}
	}

	return next
}

func (s *Service) getLastPollAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return time.Since(s.lastPollEnd)
}

func (s *Service) setLastPollEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPollEnd = time.Now()
}
