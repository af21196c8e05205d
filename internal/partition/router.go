package partition

import (
	"math/rand"

	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
)

// ErrPartitionUnavailable is returned by NodeFor when the requested
// replica policy can't find a usable node for a partition.
var ErrPartitionUnavailable = types.NewError(types.PartitionUnavailable)

// Router computes a key's partition id and selects a Node to target for a
// given replica policy. It holds no mutable
// state beyond the client's configured rack id; all topology data comes in
// through the Map argument.
type Router struct {
	rackID string
}

// NewRouter builds a Router configured for rackID (empty means rack
// awareness is unused).
func NewRouter(rackID string) *Router {
	return &Router{rackID: rackID}
}

// NodeFor selects a Node for key under replica, given map snapshot m. attempt
// is the zero-based retry count, used by SEQUENCE to advance one slot per
// retry. forWrite forces slot 0 regardless of replica: writes always target
// the master partition.
func (r *Router) NodeFor(m *Map, key types.Key, replica policy.ReplicaPolicy, forWrite bool, attempt int) (NodeRef, error) {
	partitionID := PartitionID(key.Digest(), m.NumPartitions())
	row, ok := m.Row(key.Namespace, partitionID)
	if !ok || len(row) == 0 {
		return nil, ErrPartitionUnavailable
	}

	if forWrite {
		return activeOrUnavailable(row, 0)
	}

	switch replica {
	case policy.Master:
		return activeOrUnavailable(row, 0)
	case policy.MasterProles:
		idx := attempt
		if idx >= len(row) {
			idx = len(row) - 1
		}
		return firstActiveFrom(row, idx)
	case policy.Sequence:
		idx := attempt % len(row)
		return firstActiveFrom(row, idx)
	case policy.Random:
		return randomActive(row)
	case policy.PreferRack:
		if r.rackID != "" {
			for _, n := range row {
				if n != nil && n.Active() && n.Rack() == r.rackID {
					return n, nil
				}
			}
		}
		idx := attempt % len(row)
		return firstActiveFrom(row, idx)
	default:
		return activeOrUnavailable(row, 0)
	}
}

// NodeForPartition selects a node for a partition directly (no key digest
// involved), used by the scan/query tracker which iterates partition ids
// rather than keys.
func (r *Router) NodeForPartition(m *Map, namespace string, partitionID int, replica policy.ReplicaPolicy) (NodeRef, error) {
	row, ok := m.Row(namespace, partitionID)
	if !ok || len(row) == 0 {
		return nil, ErrPartitionUnavailable
	}
	switch replica {
	case policy.Random:
		return randomActive(row)
	case policy.PreferRack:
		if r.rackID != "" {
			for _, n := range row {
				if n != nil && n.Active() && n.Rack() == r.rackID {
					return n, nil
				}
			}
		}
		return firstActiveFrom(row, 0)
	default:
		return activeOrUnavailable(row, 0)
	}
}

func activeOrUnavailable(row Row, idx int) (NodeRef, error) {
	if idx < 0 || idx >= len(row) || row[idx] == nil || !row[idx].Active() {
		return nil, ErrPartitionUnavailable
	}
	return row[idx], nil
}

// firstActiveFrom scans row starting at idx, wrapping once, for the first
// non-nil active node — used by MASTER_PROLES/SEQUENCE/PREFER_RACK fallback
// so a retry still makes progress even if its preferred slot is empty.
func firstActiveFrom(row Row, idx int) (NodeRef, error) {
	n := len(row)
	for i := 0; i < n; i++ {
		slot := (idx + i) % n
		if row[slot] != nil && row[slot].Active() {
			return row[slot], nil
		}
	}
	return nil, ErrPartitionUnavailable
}

func randomActive(row Row) (NodeRef, error) {
	candidates := make([]NodeRef, 0, len(row))
	for _, n := range row {
		if n != nil && n.Active() {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrPartitionUnavailable
	}
	return candidates[rand.Intn(len(candidates))], nil
}
