// Package app wires the adapters, logic services and operational servers
// together and runs them until a termination signal arrives.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/skillcoder/trafficwarden/internal/adapters/outbound/cfdns"
	"github.com/skillcoder/trafficwarden/internal/adapters/outbound/hetzner"
	"github.com/skillcoder/trafficwarden/internal/adapters/outbound/telegram"
	"github.com/skillcoder/trafficwarden/internal/config"
	"github.com/skillcoder/trafficwarden/internal/httpserver"
	"github.com/skillcoder/trafficwarden/internal/infra/shutdown"
	"github.com/skillcoder/trafficwarden/internal/logic/botcmd"
	"github.com/skillcoder/trafficwarden/internal/logic/lifecycle"
	"github.com/skillcoder/trafficwarden/internal/logic/monitor"
)

// startupTimeout bounds how long components may take to become ready.
const startupTimeout = 30 * time.Second

type App struct {
	logger   *slog.Logger
	appState appstater
	signals  signalHandler
	pingers  pingerRunner
	servers  []appServer
}

// New creates a new application instance with all dependencies wired.
func New(
	logger *slog.Logger,
	cfg *config.Config,
	appState appstater,
	pingers pingerRunner,
) (*App, error) {
	if unreachable := cfg.UnreachableThresholds(); len(unreachable) > 0 {
		logger.Warn("notification thresholds at or above the traffic limit never fire",
			"thresholds", unreachable,
			"limitPercent", cfg.TrafficLimitPercent,
		)
	}

	// Create secondary adapters
	hcloudClient := hcloud.NewClient(hcloud.WithToken(cfg.HCloudToken))
	fleetRepo := hetzner.New(logger, hcloudClient)

	bot, err := telegram.New(logger, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	// Create logic services (inject adapters)
	tracker := monitor.NewTracker()
	policy := monitor.NewPolicy(tracker, cfg.NotificationThresholds, cfg.TrafficLimitPercent)

	var lifecycleOpts []lifecycle.Option

	if cfg.Cloudflare.Enable {
		dns, err := cfdns.New(logger, cfg.Cloudflare.APIToken, cfg.Cloudflare.Domain)
		if err != nil {
			return nil, fmt.Errorf("create cloudflare updater: %w", err)
		}

		lifecycleOpts = append(lifecycleOpts, lifecycle.WithDNS(dns, cfg.DNSRecordName()))
	}

	lifecycleController := lifecycle.New(
		logger,
		fleetRepo,
		bot,
		tracker,
		cfg.RebuildSpecs(),
		lifecycleOpts...,
	)

	monitorService := monitor.New(
		logger,
		fleetRepo,
		fleetRepo,
		tracker,
		policy,
		lifecycleController,
		cfg.PollInterval,
		monitor.SleepSchedule{
			Enabled:      cfg.SleepMode.Enable,
			ShutdownSpec: cfg.ShutdownCron,
			StartupSpec:  cfg.StartupCron,
			Timezone:     cfg.SleepMode.Timezone,
		},
	)

	commandService := botcmd.New(
		logger,
		bot,
		bot,
		fleetRepo,
		fleetRepo,
		lifecycleController,
		tracker,
		botcmd.StatusInfo{
			Thresholds:   cfg.NotificationThresholds,
			LimitPercent: cfg.TrafficLimitPercent,
			PollInterval: cfg.PollInterval,
			SleepEnabled: cfg.SleepMode.Enable,
			ShutdownTime: cfg.SleepMode.ShutdownTime,
			StartupTime:  cfg.SleepMode.StartupTime,
		},
	)

	httpServer := httpserver.New(logger, appState, cfg.HTTPPort)
	metricsServer := httpserver.NewMetricsServer(logger, cfg.MetricsPort)

	return &App{
		logger:   logger,
		appState: appState,
		signals:  shutdown.New(logger, appState),
		pingers:  pingers,
		servers: []appServer{
			bot,
			monitorService,
			commandService,
			httpServer,
			metricsServer,
		},
	}, nil
}

// Run starts all components and blocks until a termination signal arrives or
// the context is cancelled, then shuts everything down in reverse order.
func (a *App) Run(originCtx context.Context) error {
	ctx, cancel := context.WithCancel(originCtx)
	defer cancel()

	go a.signals.HandleSignals(ctx, cancel)

	if err := a.appState.SetStarting(ctx); err != nil {
		return fmt.Errorf("set starting application state: %w", err)
	}

	readyChans := make([]<-chan struct{}, 0, len(a.servers)+1)

	for _, server := range a.servers {
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", server.Name(), err)
		}

		if err := a.appState.RegisterPinger(server); err != nil {
			return fmt.Errorf("register pinger %s: %w", server.Name(), err)
		}

		if err := a.appState.RegisterShutdowner(server); err != nil {
			return fmt.Errorf("register shutdowner %s: %w", server.Name(), err)
		}

		readyChans = append(readyChans, server.Ready())
	}

	// The pinger loop starts after registration so the first round covers
	// every component.
	if err := a.pingers.Start(ctx); err != nil {
		return fmt.Errorf("start pinger service: %w", err)
	}

	if err := a.appState.RegisterShutdowner(a.pingers); err != nil {
		return fmt.Errorf("register shutdowner pinger service: %w", err)
	}

	readyChans = append(readyChans, a.pingers.Ready())

	select {
	case <-allChannelsClose(ctx, a.logger, readyChans...):
	case <-time.After(startupTimeout):
		return fmt.Errorf("components did not become ready within %s", startupTimeout)
	}

	if err := a.appState.SetRunning(ctx); err != nil {
		return fmt.Errorf("set running application state: %w", err)
	}

	a.logger.InfoContext(ctx, "application running")

	<-ctx.Done()

	if err := a.appState.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown application: %w", err)
	}

	return nil
}

// allChannelsClose returns a channel that closes once every input channel has
// closed, or immediately when the context is cancelled.
func allChannelsClose(
	ctx context.Context,
	logger *slog.Logger,
	chans ...<-chan struct{},
) <-chan struct{} {
	out := make(chan struct{})

	go func() {
		defer close(out)

		for _, ch := range chans {
			select {
			case <-ch:
			case <-ctx.Done():
				logger.InfoContext(ctx, "context done while waiting for components readiness")

				return
			}
		}
	}()

	return out
}
