// Package txn implements the multi-record transaction (MRT) core: per-transaction read-version bookkeeping, a write
// key set, a namespace compare-and-set, and the commit/abort state machine
// built atop the Batch Planner's verify and roll-forward/roll-back phases.
//
// Grounded on ShardRegistry (internal/coordinator/shard_registry.go): a
// sync.RWMutex-guarded map is the same idiom used here for the write set,
// generalized into three structures: a reads map (concurrent map
// insert-if-absent), a writes set (protected by a short-lived lock), and a
// namespace field bound by compare-and-set.
package txn
