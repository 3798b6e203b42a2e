// Package contentrepo implements an in-memory content-repository engine:
// hierarchical filing of folders and documents, typed multi-value properties,
// access-control lists, and a checkout/check-in versioning lifecycle.
//
// The Service interface is the object store consumed by protocol bindings.
// It composes a Repository (the id-indexed object table, see repo/memory), a
// TypeRegistry (property schemas with inheritance), and one or more BlobStore
// content backends (see storage/memory, storage/fs, storage/s3).
//
// Every mutating operation is atomic with respect to the objects it touches
// and advances the target's change token; stale tokens and competing
// checkouts fail with ErrUpdateConflict rather than blocking.
package contentrepo
