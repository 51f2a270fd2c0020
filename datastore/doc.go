// Package datastore persists operation results keyed by canonical operation
// key, so a computation performed once can be looked up forever after, across
// processes and machines.
//
// Store is the backend contract. The package provides an in-memory backend
// for tests and composition; the fsstore and docstore sub-packages persist to
// a filesystem directory and a SQL database respectively.
//
// Cache glues a Store to an operations.Runner: executing through a Cache
// consults the store first and persists fresh results, which is how a plain
// function wrapped with WrapFunc becomes transparently memoized.
package datastore
