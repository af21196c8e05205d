// Package partition implements the Partition Map and the key→node router.
//
// Map is an immutable, per-namespace snapshot: partition id → ordered list
// of replica slots (slot 0 is always the master). Cluster swaps in a new
// Map atomically each tend cycle; every lookup sees one internally
// consistent snapshot.
//
// Grounded on ShardRegistry (internal/coordinator/shard_registry.go):
// same RWMutex-free,
// copy-on-write discipline, generalized from a flat shardID→single-node map
// to a per-namespace array of partition rows holding a full replica chain
// per slot, and from FNV hashing over a string key to the server's digest
// bytes.
//
// Map does not depend on the cluster package to avoid an import cycle
// (Cluster needs to build and swap Maps; Map's rows need to reference
// Nodes). Instead Map stores the small NodeRef interface that
// cluster.Node satisfies structurally; callers holding a *cluster.Node type
// -assert it back out.
package partition
