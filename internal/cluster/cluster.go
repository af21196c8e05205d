package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/dreamware/aerospike-go/internal/conn"
	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
)

// snapshot is the immutable (node-list, partition-map) pair the tend loop
// swaps in atomically each cycle.
type snapshot struct {
	nodes      []*Node
	partitions *partition.Map
}

// Cluster is the aggregate of Nodes, the tend loop, seed discovery, map
// refresh, and rolling node add/remove.
//
// Grounded in shape on HealthMonitor (ticker + select over context-done,
// consecutive-failure counting, an onUnhealthy callback),
// generalized from a 3-strikes health-only probe to a five-step tend
// cycle, and from a coordinator-pushed node list to self-directed seed
// discovery and peer gossip.
type Cluster struct {
	policy policy.ClientPolicy
	logger *zerolog.Logger

	snap atomic.Pointer[snapshot]

	seeds []types.Host

	numPartitions int

	closeCh chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup

	// dialProbe opens a short-lived connection for tend info probes; a
	// field (not a free function) so tests can substitute a fake-server
	// dialer without touching real sockets.
	dialProbe func(host types.Host, timeout time.Duration, user string) (*conn.Connection, error)
}

// New performs seeding and, if at least one seed
// responded (or FailIfNotConnected is false), starts the tend loop in the
// background. numPartitions is the partition count every map this Cluster
// builds uses; it is fixed here, and the tend loop does not read a count
// from the server or change it.
func New(ctx context.Context, cp policy.ClientPolicy, numPartitions int, seeds ...types.Host) (*Cluster, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("aerospike: at least one seed host is required")
	}

	c := &Cluster{
		policy:        cp,
		logger:        cp.LoggerOrNop(),
		seeds:         seeds,
		numPartitions: numPartitions,
		closeCh:       make(chan struct{}),
	}
	c.dialProbe = c.defaultDialProbe
	c.snap.Store(&snapshot{partitions: partition.NewBuilder(numPartitions).Build(0)})

	if err := c.seed(ctx); err != nil {
		if cp.FailIfNotConnected {
			return nil, err
		}
		c.logger.Warn().Err(err).Msg("aerospike: cluster starting disconnected, tend will retry seeds")
	}

	c.wg.Add(1)
	go c.tendLoop()

	return c, nil
}

// seed attempts a handshake against each seed host, succeeding as soon as
// one responds with a node id and cluster name.
func (c *Cluster) seed(ctx context.Context) error {
	var lastErr error
	for _, host := range c.seeds {
		deadline := c.policy.ConnectTimeout
		if dl, ok := ctx.Deadline(); ok {
			if remaining := time.Until(dl); remaining < deadline {
				deadline = remaining
			}
		}

		cn, err := c.dialProbe(host, deadline, c.policy.User)
		if err != nil {
			lastErr = err
			continue
		}
		info, err := sendInfo(cn, deadline, "node", "cluster-name")
		_ = cn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if cn := info["cluster-name"]; c.policy.ClusterName != "" && cn != "" && cn != c.policy.ClusterName {
			lastErr = fmt.Errorf("aerospike: seed %s reports cluster-name %q, want %q", host, cn, c.policy.ClusterName)
			continue
		}

		id := info["node"]
		if id == "" {
			id = uuid.NewString()
		}
		node := NewNode(id, host, c.policy.MaxConnsPerNode, c.policy.MaxSocketIdle, c.policy.ConnectTimeout, c.policy.User)
		node.recordTendSuccess()
		c.snap.Store(&snapshot{nodes: []*Node{node}, partitions: partition.NewBuilder(c.numPartitions).Build(0)})
		return nil
	}
	return types.NewErrorf(types.ServerNotAvailable, "no seed host reachable: %v", lastErr)
}

func (c *Cluster) defaultDialProbe(host types.Host, timeout time.Duration, user string) (*conn.Connection, error) {
	return conn.Dial(host.String(), timeout, user)
}

// NodesSnapshot returns the current immutable list of node references.
func (c *Cluster) NodesSnapshot() []*Node {
	return c.snap.Load().nodes
}

// PartitionMap returns the current partition map snapshot.
func (c *Cluster) PartitionMap() *partition.Map {
	return c.snap.Load().partitions
}

// RandomNode returns an arbitrary active node, or a ServerNotAvailable
// error if none are active, for info/admin commands that aren't
// key-routed.
func (c *Cluster) RandomNode() (*Node, error) {
	nodes := c.activeNodes()
	if len(nodes) == 0 {
		return nil, types.NewError(types.ServerNotAvailable)
	}
	return nodes[rand.Intn(len(nodes))], nil
}

func (c *Cluster) activeNodes() []*Node {
	all := c.NodesSnapshot()
	active := make([]*Node, 0, len(all))
	for _, n := range all {
		if n.Active() {
			active = append(active, n)
		}
	}
	return active
}

// ChangePassword records a new user and password hash in the cluster's
// policy, which tend probes and nodes created afterwards pick up. Existing
// nodes' pools keep the user they were built with, and their pooled
// connections keep their prior auth state.
func (c *Cluster) ChangePassword(user, hash string) {
	c.policy.User = user
	c.policy.Password = hash
}

// Close stops the tend loop and drains every node's pool.
func (c *Cluster) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.closeCh)
	c.wg.Wait()

	for _, n := range c.NodesSnapshot() {
		n.Close()
	}
}

// tendLoop is the single cooperative tend worker. It fires
// once immediately, then every TendInterval, until Close.
//
// Grounded on HealthMonitor.Start: a ticker plus select over
// ticker.C/ctx.Done, generalized from a health-only sweep to the five-step
// tend cycle.
func (c *Cluster) tendLoop() {
	defer c.wg.Done()

	interval := c.policy.TendInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.tendOnce()
	for {
		select {
		case <-ticker.C:
			c.tendOnce()
		case <-c.closeCh:
			return
		}
	}
}

// tendOnce runs one full tend pass over the current node set: re-seed if
// empty, probe every node, refresh the partition map, discover peers, and
// publish a fresh immutable snapshot.
func (c *Cluster) tendOnce() {
	cur := c.snap.Load()
	nodes := cur.nodes
	if len(nodes) == 0 {
		if err := c.seed(context.Background()); err != nil {
			c.logger.Warn().Err(err).Msg("aerospike: tend: re-seed failed")
		}
		return
	}

	builder := partition.NewBuilder(c.numPartitions)
	var maxGen uint32
	knownPeers := map[string]bool{}
	var newPeers []types.Host
	refreshed := map[string]bool{}

	for _, n := range nodes {
		knownPeers[n.ID()] = true
		info, err := c.probeNode(n)
		if err != nil {
			c.handleProbeFailure(n)
			continue
		}
		n.recordTendSuccess()

		if genStr, ok := info["partition-generation"]; ok {
			for ns, gen := range parseNamespaceGenerations(genStr) {
				n.setPartitionGeneration(ns, gen)
				c.mergeOwnedPartitions(builder, n, ns)
				refreshed[ns] = true
				if uint32(gen) > maxGen {
					maxGen = uint32(gen)
				}
			}
		}

		for _, peerAddr := range append(parsePeers(info["services"]), parsePeers(info["services-alumni"])...) {
			if !knownPeers[peerAddr] && !slices.ContainsFunc(newPeers, func(h types.Host) bool { return h.String() == peerAddr }) {
				newPeers = append(newPeers, hostFromAddr(peerAddr))
			}
		}
	}

	// Carry forward rows for namespaces no node reported a
	// partition-generation for this cycle, so a partial tend never blanks out
	// the map.
	c.preserveUnrefreshedRows(builder, cur.partitions, nodes, refreshed)

	merged := append([]*Node(nil), nodes...)
	for _, peerHost := range newPeers {
		if peer := c.probeAndAddPeer(peerHost); peer != nil {
			merged = append(merged, peer)
			knownPeers[peer.ID()] = true
		}
	}

	newMap := builder.Build(maxGen)
	c.snap.Store(&snapshot{nodes: merged, partitions: newMap})
}

// probeNode issues the four tend info requests over one short-lived
// connection.
func (c *Cluster) probeNode(n *Node) (map[string]string, error) {
	cn, err := c.dialProbe(n.Host(), c.policy.ConnectTimeout, c.policy.User)
	if err != nil {
		return nil, err
	}
	defer cn.Close()
	return sendInfo(cn, c.policy.ConnectTimeout, "node", "partition-generation", "services", "cluster-name")
}

// handleProbeFailure marks a node inactive only once it has failed
// continuously for MaxUnreachable.
func (c *Cluster) handleProbeFailure(n *Node) {
	failingFor := n.recordTendFailure()
	if failingFor >= c.policy.MaxUnreachable {
		c.logger.Warn().Str("node", n.ID()).Dur("unreachable_for", failingFor).Msg("aerospike: marking node inactive")
		n.markInactive()
	}
}

// probeAndAddPeer dials an unknown peer, confirms it reports the same
// cluster name, and adds it as a new Node on success.
func (c *Cluster) probeAndAddPeer(host types.Host) *Node {
	cn, err := c.dialProbe(host, c.policy.ConnectTimeout, c.policy.User)
	if err != nil {
		c.logger.Debug().Err(err).Str("host", host.String()).Msg("aerospike: peer probe failed")
		return nil
	}
	defer cn.Close()

	info, err := sendInfo(cn, c.policy.ConnectTimeout, "node", "cluster-name")
	if err != nil {
		return nil
	}
	if c.policy.ClusterName != "" && info["cluster-name"] != "" && info["cluster-name"] != c.policy.ClusterName {
		return nil
	}
	id := info["node"]
	if id == "" {
		id = uuid.NewString()
	}
	node := NewNode(id, host, c.policy.MaxConnsPerNode, c.policy.MaxSocketIdle, c.policy.ConnectTimeout, c.policy.User)
	node.recordTendSuccess()
	return node
}

// mergeOwnedPartitions records that node n serves namespace ns, which the
// per-namespace partition-generation reply reported this tend cycle. A real
// server answers a dedicated partition-assignment probe naming exactly which
// replica slot(s) a node holds for each partition; that per-partition detail
// is out of scope for wire framing here, so ownership is learned implicitly
// from the generation reply itself and every node reporting ns is recorded
// as sole (master) owner of all of ns's partitions — sufficient for
// single-node and uniformly-replicated test clusters and is overridden by an
// explicit partition-assignment probe where the transport exposes one.
func (c *Cluster) mergeOwnedPartitions(builder *partition.Builder, n *Node, ns string) {
	for pid := 0; pid < c.numPartitions; pid++ {
		builder.Set(ns, pid, 0, n)
	}
}

// preserveUnrefreshedRows copies forward rows for namespaces the current
// tend cycle did not touch (those not in refreshed), so a cycle where only
// one node's partition-generation reply came back doesn't erase the rest of
// the map.
func (c *Cluster) preserveUnrefreshedRows(builder *partition.Builder, old *partition.Map, nodes []*Node, refreshed map[string]bool) {
	if old == nil {
		return
	}
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID()] = n
	}
	for _, ns := range old.Namespaces() {
		if refreshed[ns] {
			continue
		}
		for pid := 0; pid < old.NumPartitions(); pid++ {
			row, ok := old.Row(ns, pid)
			if !ok {
				continue
			}
			for idx, ref := range row {
				if ref == nil {
					continue
				}
				if n, ok := byID[ref.ID()]; ok {
					builder.Set(ns, pid, idx, n)
				}
			}
		}
	}
}

// hostFromAddr parses a "host:port" string reported by the services info
// command into a Host.
func hostFromAddr(addr string) types.Host {
	host, port := splitHostPort(addr)
	return types.NewHost(host, port)
}

func splitHostPort(addr string) (string, int) {
	idx := lastColon(addr)
	if idx < 0 {
		return addr, 3000
	}
	host := addr[:idx]
	var port int
	for _, r := range addr[idx+1:] {
		if r < '0' || r > '9' {
			return host, 3000
		}
		port = port*10 + int(r-'0')
	}
	if port == 0 {
		port = 3000
	}
	return host, port
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}
