package partition

import (
	"testing"

	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	id     string
	active bool
	rack   string
}

func (n *fakeNode) ID() string     { return n.id }
func (n *fakeNode) Active() bool   { return n.active }
func (n *fakeNode) Rack() string   { return n.rack }

func buildMap(t *testing.T, namespace string, numPartitions int, rows map[int]Row) *Map {
	t.Helper()
	b := NewBuilder(numPartitions)
	for pid, row := range rows {
		for idx, n := range row {
			if n != nil {
				b.Set(namespace, pid, idx, n)
			}
		}
	}
	return b.Build(1)
}

func TestPartitionIDDeterministic(t *testing.T) {
	k, err := types.NewKey("test", "s", "k1")
	require.NoError(t, err)
	d := k.Digest()
	id1 := PartitionID(d, 4096)
	id2 := PartitionID(d, 4096)
	assert.Equal(t, id1, id2)
	assert.GreaterOrEqual(t, id1, 0)
	assert.Less(t, id1, 4096)
}

func TestRouterMasterPolicy(t *testing.T) {
	master := &fakeNode{id: "n1", active: true}
	prole := &fakeNode{id: "n2", active: true}
	k, err := types.NewKey("test", "s", "k1")
	require.NoError(t, err)
	pid := PartitionID(k.Digest(), 4)
	m := buildMap(t, "test", 4, map[int]Row{pid: {master, prole}})

	r := NewRouter("")
	node, err := r.NodeFor(m, k, policy.Master, false, 0)
	require.NoError(t, err)
	assert.Equal(t, "n1", node.ID())
}

func TestRouterWriteAlwaysMaster(t *testing.T) {
	master := &fakeNode{id: "n1", active: true}
	k, err := types.NewKey("test", "s", "k1")
	require.NoError(t, err)
	pid := PartitionID(k.Digest(), 4)
	m := buildMap(t, "test", 4, map[int]Row{pid: {master}})

	r := NewRouter("")
	node, err := r.NodeFor(m, k, policy.Random, true, 0)
	require.NoError(t, err)
	assert.Equal(t, "n1", node.ID())
}

func TestRouterSequenceAdvancesOnRetry(t *testing.T) {
	master := &fakeNode{id: "master", active: true}
	prole := &fakeNode{id: "prole", active: true}
	k, err := types.NewKey("test", "s", "k1")
	require.NoError(t, err)
	pid := PartitionID(k.Digest(), 4)
	m := buildMap(t, "test", 4, map[int]Row{pid: {master, prole}})

	r := NewRouter("")
	first, err := r.NodeFor(m, k, policy.Sequence, false, 0)
	require.NoError(t, err)
	second, err := r.NodeFor(m, k, policy.Sequence, false, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestRouterUnavailableWhenMasterEmpty(t *testing.T) {
	k, err := types.NewKey("test", "s", "k1")
	require.NoError(t, err)
	pid := PartitionID(k.Digest(), 4)
	m := buildMap(t, "test", 4, map[int]Row{pid: {nil}})

	r := NewRouter("")
	_, err = r.NodeFor(m, k, policy.Master, false, 0)
	assert.ErrorIs(t, err, ErrPartitionUnavailable)
}

func TestRouterUnavailableWhenMasterInactive(t *testing.T) {
	master := &fakeNode{id: "n1", active: false}
	k, err := types.NewKey("test", "s", "k1")
	require.NoError(t, err)
	pid := PartitionID(k.Digest(), 4)
	m := buildMap(t, "test", 4, map[int]Row{pid: {master}})

	r := NewRouter("")
	_, err = r.NodeFor(m, k, policy.Master, false, 0)
	assert.ErrorIs(t, err, ErrPartitionUnavailable)
}

func TestRouterPreferRackPicksSameRackReplica(t *testing.T) {
	master := &fakeNode{id: "master", active: true, rack: "rack-a"}
	prole := &fakeNode{id: "prole", active: true, rack: "rack-b"}
	k, err := types.NewKey("test", "s", "k1")
	require.NoError(t, err)
	pid := PartitionID(k.Digest(), 4)
	m := buildMap(t, "test", 4, map[int]Row{pid: {master, prole}})

	r := NewRouter("rack-b")
	node, err := r.NodeFor(m, k, policy.PreferRack, false, 0)
	require.NoError(t, err)
	assert.Equal(t, "prole", node.ID())
}

func TestMapRowUnknownNamespace(t *testing.T) {
	m := NewBuilder(4).Build(1)
	_, ok := m.Row("missing", 0)
	assert.False(t, ok)
}

func TestMapNilSafe(t *testing.T) {
	var m *Map
	assert.Equal(t, 0, m.NumPartitions())
	_, ok := m.Row("test", 0)
	assert.False(t, ok)
}
