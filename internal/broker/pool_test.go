package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	p := NewPool(1)
	require.NoError(t, p.Acquire(context.Background()))
	p.Release()
	require.NoError(t, p.Acquire(context.Background()))
	p.Release()
}

func TestPoolAcquireBlocksWhenExhausted(t *testing.T) {
	p := NewPool(1)
	require.NoError(t, p.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release()
}

func TestPoolZeroMaxDefaultsToOneSlot(t *testing.T) {
	p := NewPool(0)
	require.Equal(t, 1, cap(p.slots))
}
