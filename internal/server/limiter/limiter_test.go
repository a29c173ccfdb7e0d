package limiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

func TestBurstThenRateLimited(t *testing.T) {
	l := New(config.RateLimit{Rps: 1, Burst: 3, MaxConcurrent: 100})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Admit(ctx), "request %d", i)
		l.Release()
	}

	err := l.Admit(ctx)
	require.Error(t, err)
	require.Equal(t, fserr.KindRateLimited, fserr.KindOf(err))
}

func TestConcurrencyCap(t *testing.T) {
	l := New(config.RateLimit{Rps: 1000, Burst: 1000, MaxConcurrent: 2})
	ctx := context.Background()

	require.NoError(t, l.Admit(ctx))
	require.NoError(t, l.Admit(ctx))

	err := l.Admit(ctx)
	require.Error(t, err)
	require.Equal(t, fserr.KindTooManyConcurrent, fserr.KindOf(err))

	l.Release()
	require.NoError(t, l.Admit(ctx))
	l.Release()
	l.Release()
}

func TestGraceWaitPicksUpFreedSlot(t *testing.T) {
	l := New(config.RateLimit{Rps: 1000, Burst: 1000, MaxConcurrent: 1})
	ctx := context.Background()

	require.NoError(t, l.Admit(ctx))
	go l.Release()

	// the freed slot arrives within the grace window
	require.NoError(t, l.Admit(ctx))
	l.Release()
}

func TestZeroMeansUnlimited(t *testing.T) {
	l := New(config.RateLimit{})
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Admit(ctx))
	}
	for i := 0; i < 1000; i++ {
		l.Release()
	}
}
