package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/aerospike-go/internal/cluster"
	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
)

// BatchRecord is one keyed operation submitted to a batch dispatch.
// ExpectedVersion is unused by a plain read/write batch; the transaction
// verify phase (internal/txn) sets it to the record's last-known generation
// so a Dispatcher can compare it server-side without a separate call shape.
type BatchRecord struct {
	Key             types.Key
	ExpectedVersion uint32
}

// BatchResult is the outcome for one BatchRecord, positionally aligned with
// the input slice regardless of which node-group it was dispatched through.
type BatchResult struct {
	Record types.Record
	Err    error
}

// Dispatcher sends the sub-command for a single node-group and returns one
// BatchResult per requested index, in the same order as indices. Framing
// the actual wire request/response is an external encoder/decoder concern;
// Dispatcher is the seam a caller plugs that in at.
type Dispatcher interface {
	DispatchGroup(ctx context.Context, node *cluster.Node, records []BatchRecord, indices []int) ([]BatchResult, error)
}

// Plan groups records by the node that owns each key's master partition,
// dispatches each group concurrently (bounded by
// BatchPolicy.MaxConcurrentThreads), and reassembles a full-length
// positional result slice. It returns the results and whether every record
// completed without error.
func Plan(ctx context.Context, pol policy.BatchPolicy, m *partition.Map, router *partition.Router, records []BatchRecord, dispatcher Dispatcher) ([]BatchResult, bool) {
	results := make([]BatchResult, len(records))

	groups, unrouted := groupByNode(m, router, pol.Replica, records)
	for _, idx := range unrouted {
		results[idx] = BatchResult{Err: partition.ErrPartitionUnavailable}
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := pol.MaxConcurrentThreads
	if limit <= 0 {
		limit = len(groups)
	}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			dispatchGroup(gctx, pol, m, router, dispatcher, grp, results)
			return nil
		})
	}
	_ = g.Wait()

	ok := true
	for _, r := range results {
		if r.Err != nil {
			ok = false
			break
		}
	}
	return results, ok
}

// nodeGroup is the set of record indices routed to the same node.
type nodeGroup struct {
	node    *cluster.Node
	records []BatchRecord
	indices []int
}

func groupByNode(m *partition.Map, router *partition.Router, replica policy.ReplicaPolicy, records []BatchRecord) ([]*nodeGroup, []int) {
	byNode := make(map[string]*nodeGroup)
	var order []string
	var unrouted []int

	for i, rec := range records {
		ref, err := router.NodeFor(m, rec.Key, replica, false, 0)
		if err != nil {
			unrouted = append(unrouted, i)
			continue
		}
		node, ok := ref.(*cluster.Node)
		if !ok {
			unrouted = append(unrouted, i)
			continue
		}
		grp, exists := byNode[node.ID()]
		if !exists {
			grp = &nodeGroup{node: node}
			byNode[node.ID()] = grp
			order = append(order, node.ID())
		}
		grp.records = append(grp.records, rec)
		grp.indices = append(grp.indices, i)
	}

	groups := make([]*nodeGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, byNode[id])
	}
	return groups, unrouted
}

// dispatchGroup sends one group, retrying rerouted sub-indices up to
// MaxRetries if the group's node fails entirely.
func dispatchGroup(ctx context.Context, pol policy.BatchPolicy, m *partition.Map, router *partition.Router, dispatcher Dispatcher, grp *nodeGroup, results []BatchResult) {
	out, err := dispatcher.DispatchGroup(ctx, grp.node, grp.records, grp.indices)
	if err == nil {
		for i, idx := range grp.indices {
			results[idx] = out[i]
		}
		return
	}

	for attempt := 1; attempt <= pol.MaxRetries; attempt++ {
		rerouted, unrouted := rerouteGroup(m, router, pol.Replica, grp, attempt)
		for _, idx := range unrouted {
			results[idx] = BatchResult{Err: partition.ErrPartitionUnavailable}
		}
		if rerouted == nil {
			return
		}
		out, err = dispatcher.DispatchGroup(ctx, rerouted.node, rerouted.records, rerouted.indices)
		if err == nil {
			for i, idx := range rerouted.indices {
				results[idx] = out[i]
			}
			return
		}
		grp = rerouted
	}

	for _, idx := range grp.indices {
		results[idx] = BatchResult{Err: err}
	}
}

func rerouteGroup(m *partition.Map, router *partition.Router, replica policy.ReplicaPolicy, grp *nodeGroup, attempt int) (*nodeGroup, []int) {
	byNode := make(map[string]*nodeGroup)
	var order []string
	var unrouted []int

	for i, rec := range grp.records {
		ref, err := router.NodeFor(m, rec.Key, replica, false, attempt)
		if err != nil {
			unrouted = append(unrouted, grp.indices[i])
			continue
		}
		node, ok := ref.(*cluster.Node)
		if !ok {
			unrouted = append(unrouted, grp.indices[i])
			continue
		}
		g, exists := byNode[node.ID()]
		if !exists {
			g = &nodeGroup{node: node}
			byNode[node.ID()] = g
			order = append(order, node.ID())
		}
		g.records = append(g.records, rec)
		g.indices = append(g.indices, grp.indices[i])
	}

	if len(order) == 0 {
		return nil, unrouted
	}
	// A single node group re-routes to (at most) one new node per retry; if
	// the rerouted keys split across multiple nodes, only the first group is
	// retried here and the rest are reported unrouted rather than silently
	// dropped, so a future retry round (or the caller) can still act on them.
	primary := byNode[order[0]]
	for _, id := range order[1:] {
		unrouted = append(unrouted, byNode[id].indices...)
	}
	return primary, unrouted
}
