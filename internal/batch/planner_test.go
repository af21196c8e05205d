package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dreamware/aerospike-go/internal/cluster"
	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher returns a fixed record for every key and counts how
// many distinct node-groups it was invoked for, to verify the planner
// groups by node rather than dispatching one call per record. It can also
// be configured to fail the first call for a given node ID once, so the
// retry/re-route path gets exercised.
type recordingDispatcher struct {
	mu      sync.Mutex
	calls   int
	failOn  string
	hasFailed bool
}

func (d *recordingDispatcher) DispatchGroup(ctx context.Context, node *cluster.Node, records []BatchRecord, indices []int) ([]BatchResult, error) {
	d.mu.Lock()
	d.calls++
	shouldFail := d.failOn != "" && node.ID() == d.failOn && !d.hasFailed
	if shouldFail {
		d.hasFailed = true
	}
	d.mu.Unlock()

	if shouldFail {
		return nil, errDispatchFailed
	}

	out := make([]BatchResult, len(records))
	for i, rec := range records {
		out[i] = BatchResult{Record: types.Record{Bins: map[string]types.Value{"set": rec.Key.SetName}}}
	}
	return out, nil
}

type dispatchFailedError struct{}

func (dispatchFailedError) Error() string { return "dispatch failed" }

var errDispatchFailed = dispatchFailedError{}

func newKey(t *testing.T, set, userKey string) types.Key {
	t.Helper()
	k, err := types.NewKey("test", set, userKey)
	require.NoError(t, err)
	return k
}

func newTestBatchNode(t *testing.T, id string) *cluster.Node {
	t.Helper()
	return cluster.NewNode(id, types.NewHost("127.0.0.1", 0), 4, time.Minute, time.Second, "")
}

func buildBatchMap(t *testing.T, keys []types.Key, nodes []*cluster.Node) *partition.Map {
	t.Helper()
	b := partition.NewBuilder(4)
	for i, k := range keys {
		pid := partition.PartitionID(k.Digest(), 4)
		b.Set(k.Namespace, pid, 0, nodes[i])
	}
	return b.Build(1)
}

func TestPlanGroupsRecordsByNodeAndPreservesOrder(t *testing.T) {
	n1 := newTestBatchNode(t, "n1")
	n2 := newTestBatchNode(t, "n2")

	k1 := newKey(t, "a", "k1")
	k2 := newKey(t, "b", "k2")
	k3 := newKey(t, "a", "k3")

	m := buildBatchMap(t, []types.Key{k1, k2, k3}, []*cluster.Node{n1, n2, n1})
	router := partition.NewRouter("")

	records := []BatchRecord{{Key: k1}, {Key: k2}, {Key: k3}}
	dispatcher := &recordingDispatcher{}

	results, ok := Plan(context.Background(), policy.NewBatchPolicy(), m, router, records, dispatcher)

	require.True(t, ok)
	require.Len(t, results, 3)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, records[i].Key.SetName, r.Record.Bins["set"])
	}
	assert.Equal(t, 2, dispatcher.calls)
}

func TestPlanReportsUnroutedRecordsAsErrors(t *testing.T) {
	k1 := newKey(t, "missing", "k1")
	m := partition.NewBuilder(4).Build(1) // no nodes assigned to any partition
	router := partition.NewRouter("")

	records := []BatchRecord{{Key: k1}}
	dispatcher := &recordingDispatcher{}

	results, ok := Plan(context.Background(), policy.NewBatchPolicy(), m, router, records, dispatcher)
	require.False(t, ok)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, partition.ErrPartitionUnavailable)
}

func TestPlanRetriesOnDispatchFailure(t *testing.T) {
	n1 := newTestBatchNode(t, "flaky")
	k1 := newKey(t, "a", "k1")
	m := buildBatchMap(t, []types.Key{k1}, []*cluster.Node{n1})
	router := partition.NewRouter("")

	dispatcher := &recordingDispatcher{failOn: "flaky"}
	pol := policy.NewBatchPolicy()
	pol.MaxRetries = 2

	results, ok := Plan(context.Background(), pol, m, router, []BatchRecord{{Key: k1}}, dispatcher)
	require.True(t, ok)
	require.NoError(t, results[0].Err)
	assert.GreaterOrEqual(t, dispatcher.calls, 2)
}
