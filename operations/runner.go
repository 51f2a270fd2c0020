package operations

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opforge/memo-framework/pkg/logger"
)

// CapacityUnbounded configures a runner to memoize every result for its
// lifetime with no eviction.
const CapacityUnbounded = -1

// Runner executes an operation graph, recursively resolving nested
// operations and memoizing results in a private, in-memory execution cache.
// The cache lives exactly as long as the runner and is never persisted.
//
// A runner is not safe for concurrent use; callers sharing one across
// goroutines must serialize calls to Execute.
type Runner struct {
	lggr  logger.Logger
	cache executionCache
}

type runnerOptions struct {
	capacity int
	lggr     logger.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerOptions)

// WithCapacity sets the execution cache capacity. Zero (the default)
// disables memoization entirely, CapacityUnbounded removes the bound, and a
// positive value bounds the cache with least-recently-used eviction.
func WithCapacity(n int) RunnerOption {
	return func(o *runnerOptions) {
		o.capacity = n
	}
}

// WithLogger sets the runner's logger. Defaults to a no-op logger.
func WithLogger(lggr logger.Logger) RunnerOption {
	return func(o *runnerOptions) {
		o.lggr = lggr
	}
}

// NewRunner creates a runner. The capacity is fixed at construction.
func NewRunner(opts ...RunnerOption) *Runner {
	options := runnerOptions{lggr: logger.Nop()}
	for _, opt := range opts {
		opt(&options)
	}

	return &Runner{
		lggr:  options.lggr,
		cache: newExecutionCache(options.capacity),
	}
}

// Execute computes value. Values that are not operations pass through
// unchanged. For an operation, a cache hit returns the memoized result
// without re-running apply; a miss runs the variant's apply and memoizes the
// result. Apply recurses into Execute for nested operations, so shared
// sub-expressions are resolved at most once per run. Errors propagate
// unchanged and are never cached, so a failed operation is retried in full
// on the next Execute with the same key.
func (r *Runner) Execute(ctx context.Context, value any) (any, error) {
	op, ok := value.(*Operation)
	if !ok {
		return value, nil
	}

	key := op.Key()
	if result, ok := r.cache.Get(key); ok {
		r.lggr.Debugw("Operation already executed. Returning memoized result",
			"tag", op.Tag(), "digest", op.Digest())

		return result, nil
	}

	r.lggr.Debugw("Executing operation", "tag", op.Tag(), "digest", op.Digest())
	result, err := op.variant.apply(ctx, r, op)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, result)

	return result, nil
}

// CacheLen returns the number of memoized entries.
func (r *Runner) CacheLen() int {
	return r.cache.Len()
}

// executionCache is the runner-scoped memoization table.
type executionCache interface {
	Get(key string) (any, bool)
	Add(key string, value any)
	Len() int
}

func newExecutionCache(capacity int) executionCache {
	switch {
	case capacity == 0:
		return nopCache{}
	case capacity < 0:
		return &unboundedCache{entries: make(map[string]any)}
	default:
		// lru.New only fails for non-positive sizes, which are handled above.
		c, err := lru.New[string, any](capacity)
		if err != nil {
			panic(err)
		}

		return &lruCache{c}
	}
}

type nopCache struct{}

func (nopCache) Get(string) (any, bool) { return nil, false }
func (nopCache) Add(string, any)        {}
func (nopCache) Len() int               { return 0 }

type unboundedCache struct {
	entries map[string]any
}

func (c *unboundedCache) Get(key string) (any, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *unboundedCache) Add(key string, value any) {
	c.entries[key] = value
}

func (c *unboundedCache) Len() int {
	return len(c.entries)
}

type lruCache struct {
	c *lru.Cache[string, any]
}

func (c *lruCache) Get(key string) (any, bool) {
	return c.c.Get(key)
}

func (c *lruCache) Add(key string, value any) {
	c.c.Add(key, value)
}

func (c *lruCache) Len() int {
	return c.c.Len()
}
