/*
Package operations provides the structured value model and execution engine
for memoized computations.

# Core Components

Variant:
  - Defines a kind of operation: a stable tag, an ordered field schema and
    the apply logic that computes its result
  - Created once at definition time with NewVariant or synthesized from a
    plain function with FromFunc
  - Registered in a Registry so serialized operations can be decoded by tag

Operation:
  - An immutable instance of a Variant with field values bound from
    positional and keyword arguments
  - Computes a deterministic canonical key from its tag and recursively
    canonicalized field values; structurally equal operations produce
    identical keys
  - Serializes to a tagged envelope and back without loss of structure

Runner:
  - Executes an operation graph, recursively resolving nested operations
    through the Resolver interface
  - Memoizes results in a bounded, least-recently-used execution cache for
    the runner's lifetime; failures are never cached

# Basic Usage

	number := operations.MustNewVariant("number", semver.MustParse("1.0.0"),
		"a constant", operations.MustNewSchema(operations.PrimitiveField("value")),
		func(ctx context.Context, r operations.Resolver, op *operations.Operation) (any, error) {
			v, _ := op.Get("value")
			return v, nil
		})

	op := number.MustNew(42)
	runner := operations.NewRunner(operations.WithCapacity(128))
	result, err := runner.Execute(ctx, op)
*/
package operations
