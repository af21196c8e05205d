package partition

import (
	"github.com/dreamware/aerospike-go/internal/types"
)

// NodeRef is the minimal view of a cluster.Node the partition map and
// router need. cluster.Node satisfies this interface structurally, so this
// package never imports internal/cluster.
type NodeRef interface {
	ID() string
	Active() bool
	Rack() string
}

// Row is one partition's replica chain: Row[0] is the master, Row[1:] are
// proles in replication order. A nil entry means that slot is currently
// unassigned.
type Row []NodeRef

// Master returns the row's slot-0 node, or nil if unassigned.
func (r Row) Master() NodeRef {
	if len(r) == 0 {
		return nil
	}
	return r[0]
}

// Map is an immutable per-namespace snapshot of partition→replica-chain
// assignments. Build one with a Builder; never
// mutate a Map's rows after Build.
type Map struct {
	generation    uint32
	numPartitions int
	byNamespace   map[string][]Row
}

// NumPartitions returns P, the fixed partition count this map was built
// with.
func (m *Map) NumPartitions() int {
	if m == nil {
		return 0
	}
	return m.numPartitions
}

// Generation returns the partition-generation counter this snapshot was
// built from. The tend loop rebuilds the map every cycle and does not
// consult it.
func (m *Map) Generation() uint32 {
	if m == nil {
		return 0
	}
	return m.generation
}

// Row returns the replica chain for (namespace, partitionID). The zero
// value and false are returned for an unknown namespace or an
// out-of-range partition id.
func (m *Map) Row(namespace string, partitionID int) (Row, bool) {
	if m == nil {
		return nil, false
	}
	rows, ok := m.byNamespace[namespace]
	if !ok || partitionID < 0 || partitionID >= len(rows) {
		return nil, false
	}
	return rows[partitionID], true
}

// Namespaces lists the namespaces this snapshot has partition data for.
func (m *Map) Namespaces() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.byNamespace))
	for ns := range m.byNamespace {
		out = append(out, ns)
	}
	return out
}

// PartitionID computes the partition id for a key's digest: the first
// three digest bytes interpreted little-endian, modulo numPartitions.
func PartitionID(digest [types.DigestSize]byte, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	v := uint32(digest[0]) | uint32(digest[1])<<8 | uint32(digest[2])<<16
	return int(v % uint32(numPartitions))
}

// Builder assembles a new Map snapshot. It is not safe for concurrent use;
// the tend loop owns exactly one Builder per refresh cycle and discards it
// after Build.
type Builder struct {
	numPartitions int
	byNamespace   map[string][]Row
	replicaCount  map[string]int
}

// NewBuilder starts a fresh snapshot for a cluster with numPartitions
// partitions per namespace.
func NewBuilder(numPartitions int) *Builder {
	return &Builder{
		numPartitions: numPartitions,
		byNamespace:   make(map[string][]Row),
		replicaCount:  make(map[string]int),
	}
}

// Set assigns node to (namespace, partitionID)'s replicaIdx slot (0 =
// master). Rows are grown lazily as higher replica indices are set.
func (b *Builder) Set(namespace string, partitionID, replicaIdx int, node NodeRef) {
	rows, ok := b.byNamespace[namespace]
	if !ok {
		rows = make([]Row, b.numPartitions)
		b.byNamespace[namespace] = rows
	}
	row := rows[partitionID]
	for len(row) <= replicaIdx {
		row = append(row, nil)
	}
	row[replicaIdx] = node
	rows[partitionID] = row
}

// Build freezes the builder into an immutable Map stamped with generation.
func (b *Builder) Build(generation uint32) *Map {
	frozen := make(map[string][]Row, len(b.byNamespace))
	for ns, rows := range b.byNamespace {
		cp := make([]Row, len(rows))
		copy(cp, rows)
		frozen[ns] = cp
	}
	return &Map{
		generation:    generation,
		numPartitions: b.numPartitions,
		byNamespace:   frozen,
	}
}
