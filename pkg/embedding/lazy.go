package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Factory builds the underlying client on first use.
type Factory func(ctx context.Context) (Client, error)

// Lazy defers building a Client until the first call. Concurrent first callers
// wait on the same initialization; a failed initialization is retried by the
// next call.
type Lazy struct {
	factory Factory

	mu     sync.Mutex
	client Client
}

func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

func (l *Lazy) get(ctx context.Context) (Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	c, err := l.factory(ctx)
	if err != nil {
		return nil, err
	}
	l.client = c
	return c, nil
}

func (l *Lazy) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.CreateEmbedding(ctx, text)
}

func (l *Lazy) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.CreateEmbeddings(ctx, texts)
}

// ProbedFactory returns a Factory that builds an API client and checks, with a
// single request, that the model answers with the expected dimensionality.
func ProbedFactory(newClient func() Client, dims int) Factory {
	return func(ctx context.Context) (Client, error) {
		c := newClient()
		vec, err := c.CreateEmbedding(ctx, "dimension probe")
		if err != nil {
			return nil, err
		}
		if dims > 0 && len(vec) != dims {
			return nil, &DimensionError{Want: dims, Got: len(vec)}
		}
		return c, nil
	}
}

// DimensionError reports a model whose vectors do not fit the index mapping.
type DimensionError struct {
	Want, Got int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index expects %d, model returned %d", e.Want, e.Got)
}
