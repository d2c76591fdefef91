package shutdown_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/trafficwarden/internal/infra/shutdown"
)

type fakeShutdowner struct {
	mu    sync.Mutex
	name  string
	err   error
	order *[]string
}

func (f *fakeShutdowner) Name() string {
	return f.name
}

func (f *fakeShutdowner) Shutdown(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}

	return f.err
}

func TestGracefulShutdown(t *testing.T) {
	t.Parallel()

	logger := slog.Default()

	t.Run("empty list returns nil", func(t *testing.T) {
		t.Parallel()

		err := shutdown.GracefulShutdown(t.Context(), logger, nil)
		require.NoError(t, err)
	})

	t.Run("one shutdowner success returns nil", func(t *testing.T) {
		t.Parallel()

		err := shutdown.GracefulShutdown(t.Context(), logger, []shutdown.Shutdowner{
			&fakeShutdowner{name: "test"},
		})
		require.NoError(t, err)
	})

	t.Run("one shutdowner error returns error", func(t *testing.T) {
		t.Parallel()

		err := shutdown.GracefulShutdown(t.Context(), logger, []shutdown.Shutdowner{
			&fakeShutdowner{name: "test", err: context.DeadlineExceeded},
		})
		require.Error(t, err)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("shutdowners run in reverse registration order", func(t *testing.T) {
		t.Parallel()

		var order []string

		err := shutdown.GracefulShutdown(t.Context(), logger, []shutdown.Shutdowner{
			&fakeShutdowner{name: "first", order: &order},
			&fakeShutdowner{name: "second", order: &order},
			&fakeShutdowner{name: "third", order: &order},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"third", "second", "first"}, order)
	})

	t.Run("failure does not stop the remaining shutdowners", func(t *testing.T) {
		t.Parallel()

		var order []string

		err := shutdown.GracefulShutdown(t.Context(), logger, []shutdown.Shutdowner{
			&fakeShutdowner{name: "first", order: &order},
			&fakeShutdowner{name: "second", err: context.DeadlineExceeded},
			&fakeShutdowner{name: "third", order: &order},
		})
		require.Error(t, err)
		require.Equal(t, []string{"third", "first"}, order)
	})

	t.Run("cancelled origin context still shuts down", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		var order []string

		err := shutdown.GracefulShutdown(ctx, logger, []shutdown.Shutdowner{
			&fakeShutdowner{name: "only", order: &order},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"only"}, order)
	})
}
