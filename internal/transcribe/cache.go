package transcribe

import (
	"context"
	"sync"
)

// Cache hands out process-wide transcriber handles, constructing each size
// tier at most once. Model construction is the most expensive step in the
// pipeline; every task shares the cached handle instead of rebuilding it.
//
// The factory is injected so tests can substitute a fake without touching
// process-wide state.
type Cache struct {
	mu      sync.Mutex
	factory func(ctx context.Context, size Size) (Transcriber, error)
	handles map[Size]Transcriber
}

func NewCache(factory func(ctx context.Context, size Size) (Transcriber, error)) *Cache {
	return &Cache{
		factory: factory,
		handles: make(map[Size]Transcriber),
	}
}

// Get returns the cached handle for the size tier, constructing it on first
// use. Repeated calls for the same size return the identical handle. A failed
// construction is not cached, so a later call retries.
func (c *Cache) Get(ctx context.Context, size Size) (Transcriber, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if handle, ok := c.handles[size]; ok {
		return handle, nil
	}

	handle, err := c.factory(ctx, size)
	if err != nil {
		return nil, err
	}

	c.handles[size] = handle
	return handle, nil
}
