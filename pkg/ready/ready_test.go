package ready

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_WaitReturnsAfterOpen(t *testing.T) {
	g := NewGate()
	assert.False(t, g.IsOpen())

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Open()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Wait(ctx))
	assert.True(t, g.IsOpen())
}

func TestGate_OpenIsIdempotent(t *testing.T) {
	g := NewGate()
	g.Open()
	g.Open()
	assert.True(t, g.IsOpen())
}

func TestGate_WaitHonorsContext(t *testing.T) {
	g := NewGate()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
