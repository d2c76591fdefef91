package monitor_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
	"github.com/skillcoder/trafficwarden/internal/logic/monitor"
)

type fakeDirectory struct {
	mu      sync.Mutex
	servers []fleet.Server
	listErr error
}

func (d *fakeDirectory) ListAll(_ context.Context) ([]fleet.Server, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listErr != nil {
		return nil, d.listErr
	}

	return append([]fleet.Server(nil), d.servers...), nil
}

type fakeProbe struct {
	mu      sync.Mutex
	samples map[string]fleet.UsageSample
	errs    map[string]error
}

func (p *fakeProbe) Sample(_ context.Context, server fleet.Server) (fleet.UsageSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[server.Name]; err != nil {
		return fleet.UsageSample{}, err
	}

	return p.samples[server.Name], nil
}

type warnCall struct {
	server    string
	threshold int
}

type fakeLifecycle struct {
	mu         sync.Mutex
	warns      []warnCall
	destroys   []string
	destroyErr error
	shutdowns  int
	startups   int
}

func (l *fakeLifecycle) Warn(_ context.Context, server fleet.Server, _ float64, threshold int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.warns = append(l.warns, warnCall{server: server.Name, threshold: threshold})
}

func (l *fakeLifecycle) DestroyOverLimit(_ context.Context, name string, _ float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.destroys = append(l.destroys, name)

	return l.destroyErr
}

func (l *fakeLifecycle) ShutdownAll(_ context.Context) (int, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.shutdowns++

	return 0, 0, nil
}

func (l *fakeLifecycle) StartupAll(_ context.Context) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.startups++

	return 0, 0
}

func newTestService(
	dir *fakeDirectory,
	probe *fakeProbe,
	lc *fakeLifecycle,
	tracker *monitor.Tracker,
) *monitor.Service {
	policy := monitor.NewPolicy(tracker, []int{10, 20}, 95)

	return monitor.New(
		slog.Default(),
		dir,
		probe,
		tracker,
		policy,
		lc,
		time.Minute,
		monitor.SleepSchedule{},
	)
}

func sampleFor(name string, usedGB float64) fleet.UsageSample {
	return fleet.UsageSample{ServerName: name, UsedGB: usedGB, TotalGB: 100}
}

func TestService_PollOnce(t *testing.T) {
	t.Parallel()

	t.Run("crossing a threshold warns once", func(t *testing.T) {
		t.Parallel()

		dir := &fakeDirectory{servers: []fleet.Server{{Name: "web-1"}}}
		probe := &fakeProbe{samples: map[string]fleet.UsageSample{
			"web-1": sampleFor("web-1", 15),
		}}
		lc := &fakeLifecycle{}
		svc := newTestService(dir, probe, lc, monitor.NewTracker())

		require.NoError(t, svc.PollOnce(t.Context()))
		require.Equal(t, []warnCall{{server: "web-1", threshold: 10}}, lc.warns)

		require.NoError(t, svc.PollOnce(t.Context()))
		require.Len(t, lc.warns, 1)
	})

	t.Run("over the hard limit destroys", func(t *testing.T) {
		t.Parallel()

		dir := &fakeDirectory{servers: []fleet.Server{{Name: "web-1"}}}
		probe := &fakeProbe{samples: map[string]fleet.UsageSample{
			"web-1": sampleFor("web-1", 96),
		}}
		lc := &fakeLifecycle{}
		svc := newTestService(dir, probe, lc, monitor.NewTracker())

		require.NoError(t, svc.PollOnce(t.Context()))
		require.Equal(t, []string{"web-1"}, lc.destroys)
		require.Empty(t, lc.warns)
	})

	t.Run("probe failure skips only the failed server", func(t *testing.T) {
		t.Parallel()

		dir := &fakeDirectory{servers: []fleet.Server{{Name: "web-1"}, {Name: "web-2"}}}
		probe := &fakeProbe{
			samples: map[string]fleet.UsageSample{
				"web-2": sampleFor("web-2", 25),
			},
			errs: map[string]error{
				"web-1": errors.New("api down"),
			},
		}
		lc := &fakeLifecycle{}
		svc := newTestService(dir, probe, lc, monitor.NewTracker())

		require.NoError(t, svc.PollOnce(t.Context()))
		require.Equal(t, []warnCall{{server: "web-2", threshold: 10}}, lc.warns)
		require.Empty(t, lc.destroys)
	})

	t.Run("destroy failure leaves staging for retry", func(t *testing.T) {
		t.Parallel()

		dir := &fakeDirectory{servers: []fleet.Server{{Name: "web-1"}}}
		probe := &fakeProbe{samples: map[string]fleet.UsageSample{
			"web-1": sampleFor("web-1", 96),
		}}
		lc := &fakeLifecycle{destroyErr: errors.New("api down")}
		tracker := monitor.NewTracker()
		svc := newTestService(dir, probe, lc, tracker)

		require.NoError(t, svc.PollOnce(t.Context()))
		require.NoError(t, svc.PollOnce(t.Context()))
		require.Len(t, lc.destroys, 2)
	})

	t.Run("list failure returns error", func(t *testing.T) {
		t.Parallel()

		dir := &fakeDirectory{listErr: errors.New("api down")}
		svc := newTestService(dir, &fakeProbe{}, &fakeLifecycle{}, monitor.NewTracker())

		require.Error(t, svc.PollOnce(t.Context()))
	})

	t.Run("vanished servers are pruned from staging", func(t *testing.T) {
		t.Parallel()

		tracker := monitor.NewTracker()

		_, ok := tracker.Evaluate("old", 15, []int{10})
		require.True(t, ok)

		dir := &fakeDirectory{servers: []fleet.Server{{Name: "web-1"}}}
		probe := &fakeProbe{samples: map[string]fleet.UsageSample{
			"web-1": sampleFor("web-1", 5),
		}}
		svc := newTestService(dir, probe, &fakeLifecycle{}, tracker)

		require.NoError(t, svc.PollOnce(t.Context()))

		_, ok = tracker.LastNotified("old")
		require.False(t, ok)
	})
}

func TestService_Start_Ready_Shutdown(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{}
	svc := newTestService(dir, &fakeProbe{}, &fakeLifecycle{}, monitor.NewTracker())

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, svc.Start(ctx))

	select {
	case <-svc.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("service did not become ready")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	require.NoError(t, svc.Shutdown(shutdownCtx))
}

func TestService_Ping(t *testing.T) {
	t.Parallel()

	t.Run("before ready returns error", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&fakeDirectory{}, &fakeProbe{}, &fakeLifecycle{}, monitor.NewTracker())

		require.Error(t, svc.Ping(t.Context()))
	})

	t.Run("healthy after the first poll completes", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&fakeDirectory{}, &fakeProbe{}, &fakeLifecycle{}, monitor.NewTracker())

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		require.NoError(t, svc.Start(ctx))

		select {
		case <-svc.Ready():
		case <-time.After(2 * time.Second):
			t.Fatal("service did not become ready")
		}

		require.Eventually(t, func() bool {
			return svc.Ping(ctx) == nil
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
	})
}
