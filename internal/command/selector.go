package command

import (
	"github.com/dreamware/aerospike-go/internal/cluster"
	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
)

// KeyNodeSelector routes a single-key command through the partition router,
// re-resolving the partition map on every attempt so a retry automatically
// picks up a topology change mid-command.
type KeyNodeSelector struct {
	Cluster  *cluster.Cluster
	Router   *partition.Router
	Key      types.Key
	Replica  policy.ReplicaPolicy
	ForWrite bool
}

// SelectNode implements NodeSelector by resolving Key against the cluster's
// current partition map snapshot.
func (s KeyNodeSelector) SelectNode(attempt int) (*cluster.Node, error) {
	ref, err := s.Router.NodeFor(s.Cluster.PartitionMap(), s.Key, s.Replica, s.ForWrite, attempt)
	if err != nil {
		return nil, err
	}
	node, ok := ref.(*cluster.Node)
	if !ok {
		return nil, types.NewErrorf(types.InvalidNode, "partition router returned unexpected node reference type %T", ref)
	}
	return node, nil
}

// RandomNodeSelector targets any active node, for info/admin commands that
// aren't key-routed.
type RandomNodeSelector struct {
	Cluster *cluster.Cluster
}

// SelectNode ignores attempt; every retry simply asks for another random
// active node.
func (s RandomNodeSelector) SelectNode(int) (*cluster.Node, error) {
	return s.Cluster.RandomNode()
}
