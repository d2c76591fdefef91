package botcmd_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/trafficwarden/internal/logic/botcmd"
	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

type fakeSource struct {
	commands chan fleet.Command
}

func (s *fakeSource) Commands() <-chan fleet.Command {
	return s.commands
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (r *fakeReplier) Reply(_ context.Context, _ fleet.Command, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.replies = append(r.replies, text)

	return nil
}

func (r *fakeReplier) last(t *testing.T) string {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	require.NotEmpty(t, r.replies)

	return r.replies[len(r.replies)-1]
}

type fakeDirectory struct {
	servers []fleet.Server
	listErr error
}

func (d *fakeDirectory) ListAll(_ context.Context) ([]fleet.Server, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}

	return append([]fleet.Server(nil), d.servers...), nil
}

type fakeProbe struct {
	samples map[string]fleet.UsageSample
	errs    map[string]error
}

func (p *fakeProbe) Sample(_ context.Context, server fleet.Server) (fleet.UsageSample, error) {
	if err := p.errs[server.Name]; err != nil {
		return fleet.UsageSample{}, err
	}

	return p.samples[server.Name], nil
}

type fakeLifecycle struct {
	mu         sync.Mutex
	destroyed  []string
	rebuilt    []string
	destroyErr error
	rebuildErr error
}

func (l *fakeLifecycle) Destroy(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.destroyErr != nil {
		return l.destroyErr
	}

	l.destroyed = append(l.destroyed, name)

	return nil
}

func (l *fakeLifecycle) Rebuild(_ context.Context, name string) (fleet.Server, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rebuildErr != nil {
		return fleet.Server{}, l.rebuildErr
	}

	l.rebuilt = append(l.rebuilt, name)

	return fleet.Server{Name: name, PublicIPv4: "198.51.100.7"}, nil
}

type fakeStaging struct {
	warned map[string]int
}

func (s *fakeStaging) LastNotified(serverName string) (int, bool) {
	threshold, ok := s.warned[serverName]

	return threshold, ok
}

func testInfo() botcmd.StatusInfo {
	return botcmd.StatusInfo{
		Thresholds:   []int{10, 50, 90},
		LimitPercent: 95,
		PollInterval: 5 * time.Minute,
		SleepEnabled: true,
		ShutdownTime: "23:30",
		StartupTime:  "07:00",
	}
}

type testDeps struct {
	source    *fakeSource
	replier   *fakeReplier
	directory *fakeDirectory
	probe     *fakeProbe
	lifecycle *fakeLifecycle
	staging   *fakeStaging
}

func newTestService(deps testDeps) *botcmd.Service {
	if deps.source == nil {
		deps.source = &fakeSource{commands: make(chan fleet.Command)}
	}

	if deps.replier == nil {
		deps.replier = &fakeReplier{}
	}

	if deps.directory == nil {
		deps.directory = &fakeDirectory{}
	}

	if deps.probe == nil {
		deps.probe = &fakeProbe{}
	}

	if deps.lifecycle == nil {
		deps.lifecycle = &fakeLifecycle{}
	}

	if deps.staging == nil {
		deps.staging = &fakeStaging{}
	}

	return botcmd.New(
		slog.Default(),
		deps.source,
		deps.replier,
		deps.directory,
		deps.probe,
		deps.lifecycle,
		deps.staging,
		testInfo(),
	)
}

func TestService_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("help lists commands and schedule", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		svc := newTestService(testDeps{replier: replier})

		svc.Dispatch(t.Context(), fleet.Command{Name: "help"})

		reply := replier.last(t)
		require.Contains(t, reply, "/rebuild")
		require.Contains(t, reply, "/stop")
		require.Contains(t, reply, "10,50,90")
		require.Contains(t, reply, "95%")
		require.Contains(t, reply, "23:30")
	})

	t.Run("start is an alias for help", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		svc := newTestService(testDeps{replier: replier})

		svc.Dispatch(t.Context(), fleet.Command{Name: "start"})
		require.Contains(t, replier.last(t), "/help")
	})

	t.Run("list shows usage and warned stage", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		svc := newTestService(testDeps{
			replier: replier,
			directory: &fakeDirectory{servers: []fleet.Server{
				{Name: "web-1", Status: fleet.ServerStatusRunning, Type: "cx21", Location: "fsn1"},
				{Name: "web-2", Status: fleet.ServerStatusStopped, Type: "cx21", Location: "nbg1"},
			}},
			probe: &fakeProbe{
				samples: map[string]fleet.UsageSample{
					"web-1": {ServerName: "web-1", UsedGB: 11, TotalGB: 20},
				},
				errs: map[string]error{
					"web-2": errors.New("api down"),
				},
			},
			staging: &fakeStaging{warned: map[string]int{"web-1": 50}},
		})

		svc.Dispatch(t.Context(), fleet.Command{Name: "ll"})

		reply := replier.last(t)
		require.Contains(t, reply, "web-1")
		require.Contains(t, reply, "55.0%")
		require.Contains(t, reply, "Warned at: 50%")
		require.Contains(t, reply, "web-2")
		require.Contains(t, reply, "probe failed")
	})

	t.Run("list with no servers", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		svc := newTestService(testDeps{replier: replier})

		svc.Dispatch(t.Context(), fleet.Command{Name: "list"})
		require.Contains(t, replier.last(t), "No servers found")
	})

	t.Run("list failure is a short human reply", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		svc := newTestService(testDeps{
			replier:   replier,
			directory: &fakeDirectory{listErr: errors.New("api down")},
		})

		svc.Dispatch(t.Context(), fleet.Command{Name: "list"})

		reply := replier.last(t)
		require.Contains(t, reply, "try again later")
		require.NotContains(t, reply, "api down")
	})

	t.Run("traffic renders a usage bar", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		svc := newTestService(testDeps{
			replier: replier,
			directory: &fakeDirectory{servers: []fleet.Server{
				{Name: "web-1", Status: fleet.ServerStatusRunning},
			}},
			probe: &fakeProbe{samples: map[string]fleet.UsageSample{
				"web-1": {ServerName: "web-1", UsedGB: 10, TotalGB: 20},
			}},
		})

		svc.Dispatch(t.Context(), fleet.Command{Name: "traffic"})

		reply := replier.last(t)
		require.Contains(t, reply, "50.0%")
		require.Contains(t, reply, "█")
		require.Contains(t, reply, "░")
	})

	t.Run("status shows thresholds and sleep times", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		svc := newTestService(testDeps{replier: replier})

		svc.Dispatch(t.Context(), fleet.Command{Name: "status"})

		reply := replier.last(t)
		require.Contains(t, reply, "10,50,90")
		require.Contains(t, reply, "95%")
		require.Contains(t, reply, "23:30")
		require.Contains(t, reply, "07:00")
	})

	t.Run("rebuild requires a server name", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		lc := &fakeLifecycle{}
		svc := newTestService(testDeps{replier: replier, lifecycle: lc})

		svc.Dispatch(t.Context(), fleet.Command{Name: "rebuild", Args: "  "})
		require.Contains(t, replier.last(t), "Usage: /rebuild")
		require.Empty(t, lc.rebuilt)
	})

	t.Run("rebuild replies with the new ip", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		lc := &fakeLifecycle{}
		svc := newTestService(testDeps{replier: replier, lifecycle: lc})

		svc.Dispatch(t.Context(), fleet.Command{Name: "rebuild", Args: "web-1"})
		require.Equal(t, []string{"web-1"}, lc.rebuilt)
		require.Contains(t, replier.last(t), "198.51.100.7")
	})

	t.Run("rebuild failure is a short human reply", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		lc := &fakeLifecycle{rebuildErr: errors.New("quota exceeded")}
		svc := newTestService(testDeps{replier: replier, lifecycle: lc})

		svc.Dispatch(t.Context(), fleet.Command{Name: "rebuild", Args: "web-1"})

		reply := replier.last(t)
		require.Contains(t, reply, "failed")
		require.NotContains(t, reply, "quota exceeded")
	})

	t.Run("stop deletes the named server", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		lc := &fakeLifecycle{}
		svc := newTestService(testDeps{replier: replier, lifecycle: lc})

		svc.Dispatch(t.Context(), fleet.Command{Name: "stop", Args: "web-1"})
		require.Equal(t, []string{"web-1"}, lc.destroyed)
		require.Contains(t, replier.last(t), "deleted")
	})

	t.Run("stop requires a server name", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		lc := &fakeLifecycle{}
		svc := newTestService(testDeps{replier: replier, lifecycle: lc})

		svc.Dispatch(t.Context(), fleet.Command{Name: "stop"})
		require.Contains(t, replier.last(t), "Usage: /stop")
		require.Empty(t, lc.destroyed)
	})

	t.Run("unknown command points at help", func(t *testing.T) {
		t.Parallel()

		replier := &fakeReplier{}
		svc := newTestService(testDeps{replier: replier})

		svc.Dispatch(t.Context(), fleet.Command{Name: "frobnicate"})
		require.Contains(t, replier.last(t), "/help")
	})
}

func TestService_RunCommand(t *testing.T) {
	t.Parallel()

	t.Run("dispatches from the stream until it closes", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{commands: make(chan fleet.Command, 1)}
		replier := &fakeReplier{}
		svc := newTestService(testDeps{source: source, replier: replier})

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		require.NoError(t, svc.Start(ctx))

		select {
		case <-svc.Ready():
		case <-time.After(2 * time.Second):
			t.Fatal("service did not become ready")
		}

		source.commands <- fleet.Command{Name: "help"}

		require.Eventually(t, func() bool {
			replier.mu.Lock()
			defer replier.mu.Unlock()

			return len(replier.replies) == 1
		}, 2*time.Second, 10*time.Millisecond)

		close(source.commands)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		require.NoError(t, svc.Shutdown(shutdownCtx))
	})

	t.Run("ping before ready returns error", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(testDeps{})
		require.Error(t, svc.Ping(t.Context()))
	})
}
