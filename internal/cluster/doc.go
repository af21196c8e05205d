// Package cluster implements the topology state machine: seed discovery,
// the periodic tend refresh, peer enumeration, per-node health,
// partition-map maintenance and rolling node add/remove.
//
// # Overview
//
// cluster is the client's view of the server cluster. It owns the Node set
// and the current Partition Map, refreshing both from a background tend
// loop so that every other component (the router, the executor, the batch
// planner, the scan tracker) can read a consistent snapshot without ever
// blocking on network I/O.
//
// # Architecture
//
// Unlike the coordinator-orchestrated topology this package's predecessor
// modeled, there is no central coordinator here: every client instance
// independently seeds from the Hosts it's given and tends its own view of
// the cluster.
//
//	              ┌──────────────┐
//	              │   Cluster    │
//	              │              │
//	              │ - nodes[]    │
//	              │ - partitions │
//	              │ - tend loop  │
//	              └──────┬───────┘
//	                     │ probes via info protocol
//	      ┌──────────────┼──────────────────┐
//	      │              │                  │
//	┌─────▼─────┐  ┌─────▼─────┐     ┌─────▼─────┐
//	│  Node 1   │  │  Node 2   │     │  Node 3   │
//	│ Pool: ... │  │ Pool: ... │     │ Pool: ... │
//	└───────────┘  └───────────┘     └───────────┘
//
// # Core Components
//
// Node: a stable cluster-assigned identity plus a preferred Host, alternate
// Hosts, a Connection Pool, and health counters.
//
// Cluster: the aggregate of Nodes plus the current Partition Map snapshot,
// published via atomic pointer swap.
//
// # Tend Loop
//
// Every TendInterval, the Cluster:
//  1. Probes each node in the list, active or not, over the info protocol
//     for node/partition-generation/
//     peer/cluster-name.
//  2. Marks a node inactive once it has failed probes continuously for
//     MaxUnreachable and drains its pool.
//  3. Parses the per-namespace partition-generation reply ("ns1:gen1;
//     ns2:gen2;...") and records, for every namespace it names, that the
//     reporting node currently serves all of that namespace's partitions;
//     namespaces the cycle didn't touch are copied forward from the
//     previous map so a partial tend never blanks out the rest.
//  4. Diffs the peer list against the active set and probes unknown peers.
//  5. Atomically publishes the merged node list and partition map.
//
// Tend errors are logged and counted; they never propagate to callers.
// A node is marked inactive only after the unreachable window elapses — a
// single bad tend cycle never does it — and it stays in the node list.
//
// # Concurrency Model
//
// Node-set and partition-map reads never block on the tend loop: both are
// served from an atomically-swapped immutable snapshot
// (sync/atomic.Pointer). The tend loop is the single writer; everything
// else is a reader.
//
// # See Also
//
// Related packages:
//   - internal/partition: the Partition Map and replica-selection router
//   - internal/conn: the per-node connection pool this package's Nodes own
//   - internal/command: the retry/deadline loop that consumes node_for
package cluster
