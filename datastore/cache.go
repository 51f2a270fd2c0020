package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/opforge/memo-framework/operations"
	"github.com/opforge/memo-framework/pkg/logger"
)

// Cache executes operations through a runner and persists every fresh result
// in a Store, so re-executing a structurally equal operation in any later
// process returns the stored result without recomputing.
type Cache struct {
	store  Store
	runner *operations.Runner
	lggr   logger.Logger
}

type cacheOptions struct {
	runner *operations.Runner
	lggr   logger.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*cacheOptions)

// WithRunner sets the runner used for store misses. Defaults to a runner
// with memoization disabled, since the store already provides cross-call
// deduplication.
func WithRunner(r *operations.Runner) CacheOption {
	return func(o *cacheOptions) {
		o.runner = r
	}
}

// WithLogger sets the cache's logger. Defaults to a no-op logger.
func WithLogger(lggr logger.Logger) CacheOption {
	return func(o *cacheOptions) {
		o.lggr = lggr
	}
}

// NewCache creates a cache over store.
func NewCache(store Store, opts ...CacheOption) *Cache {
	options := cacheOptions{lggr: logger.Nop()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.runner == nil {
		options.runner = operations.NewRunner(operations.WithLogger(options.lggr))
	}

	return &Cache{store: store, runner: options.runner, lggr: options.lggr}
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	return c.store
}

// Execute returns the stored result for op when one exists. On a miss it
// executes op through the runner and persists the result before returning
// it. Execution errors propagate and nothing is stored for them.
func (c *Cache) Execute(ctx context.Context, op *operations.Operation) (any, error) {
	v, err := c.store.Get(ctx, op)
	if err == nil {
		c.lggr.Debugw("Returning stored operation result",
			"tag", op.Tag(), "digest", op.Digest())

		return v, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	c.lggr.Debugw("No stored result. Executing operation",
		"tag", op.Tag(), "digest", op.Digest())
	result, err := c.runner.Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, op, result); err != nil {
		return nil, fmt.Errorf("store result for operation %s: %w", op.Digest(), err)
	}

	return result, nil
}

// CachedFunc is a function whose results are persisted by a Cache.
type CachedFunc func(ctx context.Context, args ...any) (any, error)

// Func wraps a variant as a function. Each call binds the arguments
// positionally, then executes the resulting operation through the cache.
func (c *Cache) Func(v *operations.Variant) CachedFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		op, err := v.New(args...)
		if err != nil {
			return nil, err
		}

		return c.Execute(ctx, op)
	}
}

// WrapFunc adapts fn into an operation variant with operations.FromFunc and
// returns it as a cached function. The variant is also returned so callers
// can construct operations explicitly or decode stored keys.
func (c *Cache) WrapFunc(tag string, fn any, opts ...operations.FuncOption) (CachedFunc, *operations.Variant, error) {
	v, err := operations.FromFunc(tag, fn, opts...)
	if err != nil {
		return nil, nil, err
	}

	return c.Func(v), v, nil
}
