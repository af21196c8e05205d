// Package fakeserver is a loopback TCP double for the binary envelope
// internal/protocol frames. It answers record commands (put/get/append/
// prepend/add/touch/delete/operate/UDF), batch sub-requests and scan
// per-partition requests, and transaction monitor closes, so client.go's
// Client can be exercised end to end without a real Aerospike cluster.
//
// Grounded on cmd/node/main.go's handleShardRequest: one dispatch point
// that routes by request shape to a handful of storage operations, backed
// by internal/storage.MemoryStore the way a real node backs a shard.
package fakeserver

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/protocol"
	"github.com/dreamware/aerospike-go/internal/storage"
	"github.com/dreamware/aerospike-go/internal/types"
)

var errInvalidDigest = errors.New("fakeserver: invalid hex digest")

// Server is a single fake node: every namespace/set pair gets its own
// storage.MemoryStore, digest-hex keyed, mirroring how a real node
// partitions storage per shard but collapsed here to one process.
//
// Grounded on cmd/node.Node's shards map guarded by a mutex; Server's
// stores map plays the same "lazily created, mutex-guarded backend per
// logical partition" role, generalized from shard ID to namespace+set, and
// each backend is a real internal/storage.MemoryStore rather than a
// reimplementation of it.
type Server struct {
	ln net.Listener

	mu            sync.Mutex
	stores        map[string]storage.Store
	numPartitions int
	monitors      map[int64]bool
	namespaces    []string
}

// storedRecord is the JSON envelope persisted as a MemoryStore value;
// storage.Store only deals in bytes, so bins/generation/expiration are
// marshaled in and out of it on every access.
type storedRecord struct {
	Bins       map[string]types.Value `json:"bins"`
	Generation uint32                 `json:"generation"`
	Expiration uint32                 `json:"expiration"`
}

// New starts a Server on a loopback port chosen by the OS, configured with
// namespaces (statically, the way a real node's namespaces come from its
// config file rather than being created by the first write to them). With
// none given it defaults to a single "test" namespace.
func New(numPartitions int, namespaces ...string) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	if len(namespaces) == 0 {
		namespaces = []string{"test"}
	}
	s := &Server{
		ln:            ln,
		stores:        make(map[string]storage.Store),
		numPartitions: numPartitions,
		monitors:      make(map[int64]bool),
		namespaces:    namespaces,
	}
	go s.serve()
	return s, nil
}

// Addr is the host/port a Client can dial this Server on.
func (s *Server) Addr() types.Host {
	addr := s.ln.Addr().(*net.TCPAddr)
	return types.NewHost(addr.IP.String(), addr.Port)
}

// Close stops accepting new connections.
func (s *Server) Close() error { return s.ln.Close() }

func (s *Server) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(c)
	}
}

// infoQuietWindow bounds how long the info-protocol reader waits for
// another request line before assuming the client is done sending and
// replying. The textual info sub-protocol never frames its
// own length, and the real contract is "read until the peer closes"
// (internal/cluster/types.go); since the client here never closes its
// write side before reading the reply, this server answers as soon as the
// line stream goes quiet instead of waiting for a FIN that never comes.
const infoQuietWindow = 30 * time.Millisecond

func (s *Server) handle(c net.Conn) {
	defer c.Close()
	br := bufio.NewReader(c)
	for {
		first, err := br.Peek(4)
		if err != nil {
			return
		}
		if looksLikeEnvelope(first) {
			msg, err := protocol.ReadMessage(br)
			if err != nil {
				return
			}
			reply := s.dispatch(msg)
			if err := protocol.WriteMessage(c, reply); err != nil {
				return
			}
			continue
		}
		s.handleInfo(c, br)
		return
	}
}

// looksLikeEnvelope reports whether the next 4 bytes are a plausible
// protocol.Message length prefix rather than the start of a textual info
// request line. A real length prefix is small (header size plus a modest
// JSON body); an info request's first byte is an ASCII command-name
// character, which as the high byte of a big-endian uint32 is always
// larger than any realistic message length.
func looksLikeEnvelope(b []byte) bool {
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return v >= 50 && v < 1<<20
}

func (s *Server) handleInfo(c net.Conn, br *bufio.Reader) {
	var names []string
	for {
		_ = c.SetReadDeadline(time.Now().Add(infoQuietWindow))
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if line != "" {
			names = append(names, line)
		}
		if err != nil {
			break
		}
	}
	_ = c.SetReadDeadline(time.Time{})

	var out strings.Builder
	for _, name := range names {
		out.WriteString(name)
		out.WriteByte('\t')
		out.WriteString(s.infoValue(name))
		out.WriteByte('\n')
	}
	_, _ = c.Write([]byte(out.String()))
}

// infoValue answers the handful of info commands internal/cluster's tend
// loop asks for: a stable node id, an empty cluster name
// (accepts any policy.ClusterName), one generation-1 entry per configured
// namespace (never changes, so every tend cycle rebuilds the same
// partition map from this fake), and no peers (single-node cluster).
func (s *Server) infoValue(name string) string {
	switch name {
	case "node":
		return "FAKE1"
	case "cluster-name":
		return ""
	case "partition-generation":
		return s.partitionGenerationValue()
	case "services", "services-alumni":
		return ""
	default:
		return ""
	}
}

// partitionGenerationValue formats every configured namespace's generation
// as "ns1:1;ns2:1", matching the real info reply's per-namespace shape.
func (s *Server) partitionGenerationValue() string {
	parts := make([]string, len(s.namespaces))
	for i, ns := range s.namespaces {
		parts[i] = ns + ":1"
	}
	return strings.Join(parts, ";")
}

func (s *Server) dispatch(msg protocol.Message) protocol.Message {
	if msg.Header.Type == protocol.TypeInfo {
		return s.dispatchScan(msg)
	}
	return s.dispatchRecord(msg)
}

func (s *Server) storeFor(namespace, set string) (storage.Store, string) {
	key := namespace + "\x00" + set
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[key]
	if !ok {
		store = storage.NewMemoryStore()
		s.stores[key] = store
	}
	return store, key
}

func (s *Server) getRecord(store storage.Store, digestKey string) (*storedRecord, bool) {
	raw, err := store.Get(digestKey)
	if err != nil {
		return nil, false
	}
	var rec storedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *Server) putRecord(store storage.Store, digestKey string, rec *storedRecord) {
	raw, _ := json.Marshal(rec)
	_ = store.Put(digestKey, raw)
}

// dispatchRecord handles every single-key operation recordCommand and
// udfCommand send: the first op's Kind selects the behavior, matching
// client.go's convention of sending one Kind per call (touch, delete,
// read/get-all) or a uniform Kind across the op list (write, append,
// prepend, add, udf-arg).
func (s *Server) dispatchRecord(msg protocol.Message) protocol.Message {
	namespace, _ := fieldString(msg, "namespace")
	set, _ := fieldString(msg, "set")
	store, _ := s.storeFor(namespace, set)
	digestKey := hexDigest(msg.Header.Digest)

	if module, ok := fieldString(msg, "udf-module"); ok {
		function, _ := fieldString(msg, "udf-function")
		return s.dispatchUDF(msg, module, function)
	}

	if len(msg.Ops) == 1 && msg.Ops[0].Kind == "close-monitor" {
		s.mu.Lock()
		delete(s.monitors, msg.Header.TxnID)
		s.mu.Unlock()
		return protocol.Message{Header: protocol.Header{Type: protocol.TypeMessage, ResultCode: types.OK, TxnID: msg.Header.TxnID}}
	}

	rec, exists := s.getRecord(store, digestKey)

	if msg.Header.WriteFlags&protocol.WriteCreateOnly != 0 && exists {
		return errorReply(types.KeyExists, msg.Header.TxnID)
	}
	if msg.Header.WriteFlags&protocol.WriteUpdateOnly != 0 && !exists {
		return errorReply(types.KeyNotFound, msg.Header.TxnID)
	}

	if len(msg.Ops) == 1 && msg.Ops[0].Kind == "delete" {
		if !exists {
			return errorReply(types.KeyNotFound, msg.Header.TxnID)
		}
		_ = store.Delete(digestKey)
		return protocol.Message{Header: protocol.Header{Type: protocol.TypeMessage, ResultCode: types.OK}}
	}

	if !exists {
		if msg.Header.InfoFlags&protocol.InfoRead != 0 {
			return errorReply(types.KeyNotFound, msg.Header.TxnID)
		}
		rec = &storedRecord{Bins: make(map[string]types.Value)}
	}

	if msg.Header.InfoFlags&protocol.InfoRead != 0 {
		return readReply(rec, msg)
	}

	for _, op := range msg.Ops {
		applyWriteOp(rec, op)
	}
	rec.Generation++
	if msg.Header.Expiration != 0 {
		rec.Expiration = msg.Header.Expiration
	}
	s.putRecord(store, digestKey, rec)

	return protocol.Message{
		Header: protocol.Header{
			Type:       protocol.TypeMessage,
			ResultCode: types.OK,
			Generation: rec.Generation,
			Expiration: rec.Expiration,
		},
	}
}

func applyWriteOp(rec *storedRecord, op protocol.Op) {
	switch op.Kind {
	case "write":
		rec.Bins[op.Name] = op.Value
	case "append":
		cur, _ := rec.Bins[op.Name].(string)
		add, _ := op.Value.(string)
		rec.Bins[op.Name] = cur + add
	case "prepend":
		cur, _ := rec.Bins[op.Name].(string)
		add, _ := op.Value.(string)
		rec.Bins[op.Name] = add + cur
	case "add":
		rec.Bins[op.Name] = addValues(rec.Bins[op.Name], op.Value)
	case "touch":
		// generation/expiration bump happens unconditionally in the caller
	}
}

func addValues(cur, delta types.Value) types.Value {
	switch d := delta.(type) {
	case float64:
		switch c := cur.(type) {
		case float64:
			return c + d
		case int64:
			return float64(c) + d
		default:
			return d
		}
	case int64:
		switch c := cur.(type) {
		case int64:
			return c + d
		case float64:
			return c + float64(d)
		default:
			return d
		}
	default:
		return delta
	}
}

func readReply(rec *storedRecord, msg protocol.Message) protocol.Message {
	reply := protocol.Message{Header: protocol.Header{
		Type: protocol.TypeMessage, ResultCode: types.OK,
		Generation: rec.Generation, Expiration: rec.Expiration,
	}}
	if msg.Header.InfoFlags&protocol.InfoNoBinData != 0 {
		return reply
	}
	names := make([]string, 0, len(msg.Ops))
	for _, op := range msg.Ops {
		names = append(names, op.Name)
	}
	if msg.Header.InfoFlags&protocol.InfoGetAll != 0 || len(names) == 0 {
		for name, v := range rec.Bins {
			reply.Ops = append(reply.Ops, protocol.Op{Name: name, Kind: "read", Value: v})
		}
		return reply
	}
	for _, name := range names {
		if v, ok := rec.Bins[name]; ok {
			reply.Ops = append(reply.Ops, protocol.Op{Name: name, Kind: "read", Value: v})
		}
	}
	return reply
}

// dispatchUDF runs a registered function by name. Only one is registered,
// matching what an integration test can exercise without a real UDF
// registration protocol: "double" multiplies arg0 by 2, anything else
// echoes arg0 back.
func (s *Server) dispatchUDF(msg protocol.Message, module, function string) protocol.Message {
	var arg0 types.Value
	if len(msg.Ops) > 0 {
		arg0 = msg.Ops[0].Value
	}
	var ret types.Value
	switch function {
	case "double":
		if n, ok := arg0.(float64); ok {
			ret = n * 2
		} else {
			ret = arg0
		}
	default:
		ret = arg0
	}
	_ = module
	return protocol.Message{
		Header: protocol.Header{Type: protocol.TypeMessage, ResultCode: types.OK},
		Ops:    []protocol.Op{{Name: "SUCCESS", Kind: "udf-return", Value: ret}},
	}
}

// dispatchScan answers one partition's worth of records for a set, taken
// from every namespace's store with that set name (every store when set is
// ""; the request carries no namespace), filtering each stored digest by
// the same PartitionID function the
// real Partition Router hashes with so a multi-partition scan never returns
// the same record twice across calls.
func (s *Server) dispatchScan(msg protocol.Message) protocol.Message {
	set, _ := fieldString(msg, "set")
	partitionStr, _ := fieldString(msg, "partition")
	pid := atoiOrZero(partitionStr)

	reply := protocol.Message{Header: protocol.Header{Type: protocol.TypeInfo, ResultCode: types.OK}}

	s.mu.Lock()
	var matches []storage.Store
	for key, store := range s.stores {
		if set == "" || hasSuffixSet(key, set) {
			matches = append(matches, store)
		}
	}
	s.mu.Unlock()

	for _, store := range matches {
		for _, digestKey := range store.List() {
			rec, ok := s.getRecord(store, digestKey)
			if !ok {
				continue
			}
			digest, err := parseHexDigest(digestKey)
			if err != nil || partition.PartitionID(digest, s.numPartitions) != pid {
				continue
			}
			reply.Ops = append(reply.Ops, protocol.Op{
				Name:  digestKey,
				Kind:  "scan-record",
				Value: rec.Bins,
			})
		}
	}
	return reply
}

func errorReply(code types.ResultCode, txnID int64) protocol.Message {
	return protocol.Message{Header: protocol.Header{Type: protocol.TypeMessage, ResultCode: code, TxnID: txnID}}
}

func fieldString(msg protocol.Message, name string) (string, bool) {
	v, ok := msg.FieldValue(name)
	if !ok {
		return "", false
	}
	return string(v), true
}

func hasSuffixSet(storeKey, set string) bool {
	want := "\x00" + set
	if len(storeKey) < len(want) {
		return false
	}
	return storeKey[len(storeKey)-len(want):] == want
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

const hexDigits = "0123456789abcdef"

func hexDigest(d [types.DigestSize]byte) string {
	out := make([]byte, len(d)*2)
	for i, b := range d {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

func parseHexDigest(s string) ([types.DigestSize]byte, error) {
	var out [types.DigestSize]byte
	if len(s) != types.DigestSize*2 {
		return out, errInvalidDigest
	}
	for i := 0; i < types.DigestSize; i++ {
		hi, ok1 := hexVal(s[i*2])
		lo, ok2 := hexVal(s[i*2+1])
		if !ok1 || !ok2 {
			return out, errInvalidDigest
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	default:
		return 0, false
	}
}

