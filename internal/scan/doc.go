// Package scan implements the Scan/Query partition tracker: a per-partition pending/in-progress/done state machine, a
// bounded queue records flow through, and a PartitionFilter naming a
// contiguous partition range. Tracker.Remaining lists unfinished partitions;
// Start does not skip completed partitions or resume from a digest cursor.
//
// Grounded on the Shard.State enum (internal/shard/shard.go,
// ShardStateActive/Migrating/Deleted), generalized from a 3-state storage
// lifecycle to the scan's pending/in-progress/done lifecycle. Worker
// fan-out and the bounded queue use errgroup.Group for the former and a
// buffered channel for the latter.
package scan
