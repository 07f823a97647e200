package embedding

import (
	"context"
	"sync"
	"sync/atomic"
)

// Factory builds a Provider. It is called until it succeeds once.
type Factory func(ctx context.Context) (Provider, error)

type handle struct {
	provider Provider
}

// Lazy constructs its Provider on first use and shares it afterwards.
// A failed construction is retried by the next caller.
type Lazy struct {
	factory Factory
	mu      sync.Mutex
	current atomic.Pointer[handle]
}

// NewLazy wraps factory in a lazily initialised Provider.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// NewLazyClient returns a Lazy that hands out c once its health endpoint answers.
func NewLazyClient(c *Client) *Lazy {
	return NewLazy(func(ctx context.Context) (Provider, error) {
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Get returns the shared Provider, constructing it if needed.
func (l *Lazy) Get(ctx context.Context) (Provider, error) {
	if h := l.current.Load(); h != nil {
		return h.provider, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if h := l.current.Load(); h != nil {
		return h.provider, nil
	}

	p, err := l.factory(ctx)
	if err != nil {
		return nil, err
	}
	l.current.Store(&handle{provider: p})
	return p, nil
}

// DetectFaces implements Provider.
func (l *Lazy) DetectFaces(ctx context.Context, image []byte) ([]Face, error) {
	p, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return p.DetectFaces(ctx, image)
}
