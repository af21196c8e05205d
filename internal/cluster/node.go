package cluster

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamware/aerospike-go/internal/conn"
	"github.com/dreamware/aerospike-go/internal/types"
)

// Node is a stable cluster-assigned identity plus the current preferred
// Host, a list of alternate Hosts, a Connection Pool, and health counters.
// A Node is created on first discovery and marked inactive (its pool
// drained) once it has failed tend probes for MaxUnreachable; it stays in
// the node list and becomes active again on its next successful probe. It
// is owned exclusively by
// the Cluster and referenced by weak reference (a plain pointer copied into
// partition.Map rows — the map never owns it) from the Partition Map.
//
// Grounded on NodeInfo{ID, Addr, Status} (internal/cluster/types.go),
// generalized from a caller-assigned ID and single address to a
// server-assigned stable ID, a preferred Host plus alternates, and an owned
// connection pool.
type Node struct {
	id string

	host      types.Host
	aliases   []types.Host
	rack      string
	peerNames []string // raw discovery-capability-selected peer command's reported identity, for dedup

	pool *conn.Pool

	active    atomic.Bool
	inFlight  atomic.Int64
	errCount  atomic.Int64
	lastTend  atomic.Int64 // unix nanos
	consecutiveFails atomic.Int32

	genMu       sync.Mutex
	generations map[string]int64 // namespace -> last reported partition-generation
}

// NewNode constructs an active Node for host, owning a fresh connection
// pool sized per policy.
func NewNode(id string, host types.Host, maxConns int, idleTimeout, connectTimeout time.Duration, user string) *Node {
	n := &Node{
		id:          id,
		host:        host,
		pool:        conn.NewPool(host.String(), user, maxConns, idleTimeout, connectTimeout),
		generations: make(map[string]int64),
	}
	n.active.Store(true)
	n.lastTend.Store(time.Now().UnixNano())
	return n
}

// ID returns the node's stable, server-assigned identifier.
func (n *Node) ID() string { return n.id }

// Host returns the node's current preferred address.
func (n *Node) Host() types.Host { return n.host }

// Rack returns the node's configured rack id, used by PREFER_RACK replica
// selection.
func (n *Node) Rack() string { return n.rack }

// SetRack records the node's rack id. The tend loop does not call it, so
// Rack stays "" unless a caller sets it.
func (n *Node) SetRack(rack string) { n.rack = rack }

// Pool returns the node's connection pool.
func (n *Node) Pool() *conn.Pool { return n.pool }

// Active reports whether the node is part of the live cluster view.
func (n *Node) Active() bool { return n.active.Load() }

// markInactive flags the node inactive and drains its pool. Called by the
// tend loop once the node has been failing probes continuously (time since
// its last successful tend) for at least MaxUnreachable.
func (n *Node) markInactive() {
	n.active.Store(false)
	n.pool.Drain()
}

// recordTendSuccess resets the failure streak and stamps lastTend.
func (n *Node) recordTendSuccess() {
	n.consecutiveFails.Store(0)
	n.lastTend.Store(time.Now().UnixNano())
	n.active.Store(true)
}

// recordTendFailure increments the failure streak and error counter; it
// returns how long the node has now been failing continuously, measured
// against lastTend.
func (n *Node) recordTendFailure() time.Duration {
	n.consecutiveFails.Add(1)
	n.errCount.Add(1)
	return time.Since(time.Unix(0, n.lastTend.Load()))
}

// PartitionGeneration returns the last partition-generation this node
// reported for ns, or -1 if ns has never been reported by this node.
func (n *Node) PartitionGeneration(ns string) int64 {
	n.genMu.Lock()
	defer n.genMu.Unlock()
	gen, ok := n.generations[ns]
	if !ok {
		return -1
	}
	return gen
}

// setPartitionGeneration records a newly observed per-namespace
// partition-generation.
func (n *Node) setPartitionGeneration(ns string, gen int64) {
	n.genMu.Lock()
	defer n.genMu.Unlock()
	n.generations[ns] = gen
}

// namespaces returns every namespace this node has ever reported a
// partition-generation for. tendOnce does not use it; it works from each
// cycle's parsed partition-generation reply instead.
func (n *Node) namespaces() []string {
	n.genMu.Lock()
	defer n.genMu.Unlock()
	out := make([]string, 0, len(n.generations))
	for ns := range n.generations {
		out = append(out, ns)
	}
	return out
}

// InFlight returns the number of commands currently in flight against this
// node, exposed for the optional Prometheus gauge.
func (n *Node) InFlight() int64 { return n.inFlight.Load() }

// BeginCommand/EndCommand bracket a single command dispatch so InFlight
// stays accurate; the Command Executor calls these around each attempt.
func (n *Node) BeginCommand() { n.inFlight.Add(1) }
func (n *Node) EndCommand()   { n.inFlight.Add(-1) }

// ErrorRate returns the total number of failed tend probes since the node
// was created; a coarse signal, not divided by elapsed cycles or time,
// exposed for metrics only.
func (n *Node) ErrorRate() float64 {
	fails := float64(n.errCount.Load())
	if fails == 0 {
		return 0
	}
	return fails
}

// Close drains the node's pool. Called by Cluster.Close for every node in
// the cluster view.
func (n *Node) Close() {
	n.pool.Drain()
}
