package scan

import (
	"context"
	"testing"
	"time"

	"github.com/dreamware/aerospike-go/internal/cluster"
	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	recordsPerPartition int
}

func (f fakeDispatcher) DispatchPartitions(ctx context.Context, node *cluster.Node, partitionIDs []int, emit func(RecordResult)) error {
	for _, pid := range partitionIDs {
		for i := 0; i < f.recordsPerPartition; i++ {
			k, err := types.NewKey("test", "s", pid*1000+i)
			if err != nil {
				return err
			}
			emit(RecordResult{Key: k, Partition: pid, Record: types.Record{Bins: map[string]types.Value{"n": i}}})
		}
	}
	return nil
}

func newTestScanNode(t *testing.T, id string) *cluster.Node {
	t.Helper()
	return cluster.NewNode(id, types.NewHost("127.0.0.1", 0), 4, time.Minute, time.Second, "")
}

func TestTrackerDeliversAllRecordsAcrossPartitions(t *testing.T) {
	n1 := newTestScanNode(t, "n1")
	b := partition.NewBuilder(4)
	for pid := 0; pid < 4; pid++ {
		b.Set("test", pid, 0, n1)
	}
	m := b.Build(1)
	router := partition.NewRouter("")

	filter := PartitionFilter{Namespace: "test", Begin: 0, Count: 4}
	it := Start(context.Background(), m, router, policy.Master, filter, fakeDispatcher{recordsPerPartition: 3}, 8)

	var got []RecordResult
	for {
		r, ok := it.Next(context.Background())
		if !ok {
			break
		}
		got = append(got, r)
	}

	assert.Len(t, got, 12)
	for _, r := range got {
		require.NoError(t, r.Err)
	}
}

func TestTrackerReportsUnavailablePartitionAsError(t *testing.T) {
	m := partition.NewBuilder(4).Build(1) // no node assigned anywhere
	router := partition.NewRouter("")

	filter := PartitionFilter{Namespace: "test", Begin: 0, Count: 1}
	it := Start(context.Background(), m, router, policy.Master, filter, fakeDispatcher{}, 4)

	r, ok := it.Next(context.Background())
	require.True(t, ok)
	assert.Error(t, r.Err)

	_, ok = it.Next(context.Background())
	assert.False(t, ok)
}
