// Package ready provides a one-shot readiness gate that collaborators signal
// once their initialization (login, session restore, ...) has completed.
// Waiters block until the gate opens or their context is cancelled; a gate
// that never opens keeps its waiters in Initializing indefinitely.
package ready

import (
	"context"
	"sync"
)

type Gate struct {
	once sync.Once
	done chan struct{}
}

func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Open marks the gate ready. Subsequent calls are no-ops.
func (g *Gate) Open() {
	g.once.Do(func() {
		close(g.done)
	})
}

// IsOpen reports whether the gate has been opened.
func (g *Gate) IsOpen() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate opens or ctx is cancelled.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
