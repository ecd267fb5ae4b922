package shopify

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerEnforcesSpacing(t *testing.T) {
	p := NewPacer(80*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.Acquire(ctx, "shop-a.myshopify.com"))
	start := time.Now()
	require.NoError(t, p.Acquire(ctx, "shop-a.myshopify.com"))
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

func TestPacerFirstCallDoesNotWait(t *testing.T) {
	p := NewPacer(time.Second, zerolog.Nop())

	start := time.Now()
	require.NoError(t, p.Acquire(context.Background(), "shop-a.myshopify.com"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacerKeysAreIndependent(t *testing.T) {
	p := NewPacer(time.Second, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.Acquire(ctx, "shop-a.myshopify.com"))

	// A different connection must not queue behind shop-a's pacing state.
	start := time.Now()
	require.NoError(t, p.Acquire(ctx, "shop-b.myshopify.com"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPacerHonorsLargerExplicitDelay(t *testing.T) {
	p := NewPacer(10*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.Acquire(ctx, "shop-a.myshopify.com"))
	start := time.Now()
	require.NoError(t, p.AcquireAfter(ctx, "shop-a.myshopify.com", 120*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 115*time.Millisecond)
}

func TestPacerIgnoresSmallerExplicitDelay(t *testing.T) {
	p := NewPacer(80*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.Acquire(ctx, "shop-a.myshopify.com"))
	start := time.Now()
	require.NoError(t, p.AcquireAfter(ctx, "shop-a.myshopify.com", 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

func TestPacerContextCancellation(t *testing.T) {
	p := NewPacer(5*time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.Acquire(ctx, "shop-a.myshopify.com"))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Acquire(ctx, "shop-a.myshopify.com")
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacerCancelledWaitReleasesSlot(t *testing.T) {
	p := NewPacer(200*time.Millisecond, zerolog.Nop())

	require.NoError(t, p.Acquire(context.Background(), "shop-a.myshopify.com"))
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	require.ErrorIs(t, p.Acquire(ctx, "shop-a.myshopify.com"), context.Canceled)

	// The cancelled wait must not count as an issued request: the next call
	// paces against the first call only, not the abandoned slot.
	require.NoError(t, p.Acquire(context.Background(), "shop-a.myshopify.com"))
	assert.Less(t, time.Since(start), 300*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
