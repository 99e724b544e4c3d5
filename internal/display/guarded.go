package display

import "sync"

// Guarded holds a value behind its own lock. The zero value holds the zero T.
type Guarded[T any] struct {
	mu sync.RWMutex
	v  T
}

func (g *Guarded[T]) Load() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

func (g *Guarded[T]) Store(v T) {
	g.mu.Lock()
	g.v = v
	g.mu.Unlock()
}
