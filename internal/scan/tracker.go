package scan

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/aerospike-go/internal/cluster"
	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
)

// partStatus is one partition's place in the pending/in-progress/done
// lifecycle.
type partStatus int

const (
	partPending partStatus = iota
	partInProgress
	partDone
)

// PartitionFilter names the partitions a scan or query should cover. Resume
// holds a per-partition digest cursor; Start does not read it, and the
// filter is not updated as partitions complete.
type PartitionFilter struct {
	Namespace  string
	Begin      int
	Count      int
	Resume     map[int][types.DigestSize]byte // partition id -> last-seen digest
}

// partitions expands the filter into the concrete partition ids it covers.
func (f PartitionFilter) partitions() []int {
	ids := make([]int, 0, f.Count)
	for i := 0; i < f.Count; i++ {
		ids = append(ids, f.Begin+i)
	}
	return ids
}

// RecordResult is one item flowing through the tracker's queue: either a
// record or a terminal per-partition error.
type RecordResult struct {
	Key       types.Key
	Record    types.Record
	Partition int
	Err       error
}

// Dispatcher streams every record belonging to partitionIDs on node through
// emit, in any order, and returns once the node has no more records for
// those partitions. The wire-level scan command framing is out of scope;
// Dispatcher is the seam a caller plugs an encoder/decoder pair into.
type Dispatcher interface {
	DispatchPartitions(ctx context.Context, node *cluster.Node, partitionIDs []int, emit func(RecordResult)) error
}

// Tracker runs one scan or query: it groups a PartitionFilter's partitions
// by owning node, fans out one worker per node-group with all groups running
// at once, and feeds every record into a single bounded queue an Iterator
// drains.
type Tracker struct {
	mu         sync.Mutex
	partitions map[int]partStatus

	queue chan RecordResult
	done  chan struct{}
}

// Start launches the tracker's worker fan-out in the background and returns
// an Iterator the caller drains. replica selects which copy of each
// partition is read from (MASTER by default matches a consistent scan;
// callers wanting to spread load across proles pass RANDOM).
func Start(ctx context.Context, m *partition.Map, router *partition.Router, replica policy.ReplicaPolicy, filter PartitionFilter, dispatcher Dispatcher, queueDepth int) *Iterator {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	t := &Tracker{
		partitions: make(map[int]partStatus),
		queue:      make(chan RecordResult, queueDepth),
		done:       make(chan struct{}),
	}
	ids := filter.partitions()
	for _, pid := range ids {
		t.partitions[pid] = partPending
	}

	go t.run(ctx, m, router, replica, filter.Namespace, ids, dispatcher)

	return &Iterator{tracker: t}
}

// run groups partitions by owning node and dispatches one worker per group,
// with no limit on how many run at once; it closes the queue once every group has
// finished so the Iterator's blocking receive terminates.
func (t *Tracker) run(ctx context.Context, m *partition.Map, router *partition.Router, replica policy.ReplicaPolicy, namespace string, ids []int, dispatcher Dispatcher) {
	defer close(t.queue)
	defer close(t.done)

	groups := make(map[string][]int)
	nodes := make(map[string]*cluster.Node)
	for _, pid := range ids {
		ref, err := router.NodeForPartition(m, namespace, pid, replica)
		if err != nil {
			t.emit(RecordResult{Partition: pid, Err: err})
			t.markDone(pid)
			continue
		}
		node, ok := ref.(*cluster.Node)
		if !ok {
			t.emit(RecordResult{Partition: pid, Err: err})
			t.markDone(pid)
			continue
		}
		groups[node.ID()] = append(groups[node.ID()], pid)
		nodes[node.ID()] = node
	}

	g, gctx := errgroup.WithContext(ctx)
	for nodeID, pids := range groups {
		nodeID, pids := nodeID, pids
		node := nodes[nodeID]
		for _, pid := range pids {
			t.markInProgress(pid)
		}
		g.Go(func() error {
			err := dispatcher.DispatchPartitions(gctx, node, pids, t.emit)
			for _, pid := range pids {
				if err != nil {
					t.emit(RecordResult{Partition: pid, Err: err})
				}
				t.markDone(pid)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (t *Tracker) emit(r RecordResult) {
	t.queue <- r
}

func (t *Tracker) markInProgress(pid int) {
	t.mu.Lock()
	t.partitions[pid] = partInProgress
	t.mu.Unlock()
}

func (t *Tracker) markDone(pid int) {
	t.mu.Lock()
	t.partitions[pid] = partDone
	t.mu.Unlock()
}

// Remaining lists the partition ids that have not yet reached partDone,
// exposed for an interrupted scan's caller to build a resumable
// PartitionFilter from whatever's left.
func (t *Tracker) Remaining() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var left []int
	for pid, st := range t.partitions {
		if st != partDone {
			left = append(left, pid)
		}
	}
	return left
}

// Iterator is the pull-based consumer side of a running Tracker.
type Iterator struct {
	tracker *Tracker
	closed  bool
}

// Next blocks until a record is available, the scan finishes, or ctx is
// done. ok is false once the tracker's queue has drained and no more
// records will arrive.
func (it *Iterator) Next(ctx context.Context) (RecordResult, bool) {
	select {
	case r, ok := <-it.tracker.queue:
		return r, ok
	case <-ctx.Done():
		return RecordResult{Err: ctx.Err()}, true
	}
}

// Close stops draining the tracker early; in-flight dispatch goroutines
// continue writing to the now-unread queue until their context is
// cancelled by the caller. Close itself never blocks on outstanding
// workers.
func (it *Iterator) Close() {
	it.closed = true
}
