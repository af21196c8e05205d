package txn

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/dreamware/aerospike-go/internal/batch"
	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
)

// State is the transaction's position in the commit/abort state machine:
// Open -> Verifying -> Committing -> Closed, or Open -> Aborting -> Closed.
type State int32

const (
	Open State = iota
	Verifying
	Committing
	Aborting
	Closed
)

// CommitStatus is the outcome of Commit, collapsing server-reported
// idempotent responses into a small enumerated set of outcomes.
type CommitStatus int

const (
	CommitOK CommitStatus = iota
	CommitAlreadyCommitted
	CommitVerifyFail
	CommitRollForwardAbandoned
	CommitCloseAbandoned
)

// AbortStatus mirrors CommitStatus for the rollback path.
type AbortStatus int

const (
	AbortOK AbortStatus = iota
	AbortAlreadyAborted
	AbortRollBackAbandoned
	AbortCloseAbandoned
)

type readEntry struct {
	key     types.Key
	version uint32
}

// Txn is the per-transaction bookkeeping record: a read-version map, a write-key set, a namespace bound on first
// use, and the monitor/roll-attempted flags the commit/abort state machine
// consults.
//
// Grounded on ShardRegistry's RWMutex-guarded map idiom
// (internal/coordinator/shard_registry.go), adapted so the
// reads map is a sync.Map (insert-if-absent, lock-free reads), the writes
// set is a plain map behind a short-lived mutex, and namespace is a
// compare-and-set pointer rather than a registry-wide lock.
type Txn struct {
	id int64

	reads sync.Map // [types.DigestSize]byte -> readEntry

	mu     sync.Mutex
	writes map[[types.DigestSize]byte]types.Key

	namespace atomic.Pointer[string]

	monitorDeadline atomic.Int64
	monitorInDoubt  atomic.Bool
	rollAttempted   atomic.Bool
	state           atomic.Int32
}

// New creates an Open transaction with a fresh non-zero 63-bit random id.
func New() *Txn {
	id := rand.Int63()
	for id == 0 {
		id = rand.Int63()
	}
	return &Txn{id: id, writes: make(map[[types.DigestSize]byte]types.Key)}
}

// ID returns the transaction's random identifier.
func (t *Txn) ID() int64 { return t.id }

// State returns the transaction's current state-machine position.
func (t *Txn) State() State { return State(t.state.Load()) }

func (t *Txn) setState(s State) { t.state.Store(int32(s)) }

// bindNamespace enforces the invariant that a Key's namespace must equal
// Transaction.namespace once set, binding on first use via compare-and-set.
func (t *Txn) bindNamespace(ns string) error {
	for {
		cur := t.namespace.Load()
		if cur == nil {
			candidate := ns
			if t.namespace.CompareAndSwap(nil, &candidate) {
				return nil
			}
			continue
		}
		if *cur != ns {
			return types.NewErrorf(types.ParameterError, "transaction namespace mismatch: got %q, already bound to %q", ns, *cur)
		}
		return nil
	}
}

// OnRead records a successful read's version, observed by every single-key
// read command running under this transaction.
func (t *Txn) OnRead(key types.Key, version uint32) error {
	if err := t.bindNamespace(key.Namespace); err != nil {
		return err
	}
	d := key.Digest()
	t.mu.Lock()
	_, isWrite := t.writes[d]
	t.mu.Unlock()
	if isWrite {
		return nil
	}
	t.reads.LoadOrStore(d, readEntry{key: key, version: version})
	return nil
}

// OnWrite records a successful write, moving the key from the read set (if
// present) into the write set.
func (t *Txn) OnWrite(key types.Key, code types.ResultCode) error {
	if err := t.bindNamespace(key.Namespace); err != nil {
		return err
	}
	if code != types.OK {
		return nil
	}
	d := key.Digest()
	t.reads.Delete(d)
	t.mu.Lock()
	t.writes[d] = key
	t.mu.Unlock()
	return nil
}

// OnWriteInDoubt records a write whose socket-level outcome is unknown,
// conservatively treating it as a write that must be rolled forward or
// rolled back rather than ignored.
func (t *Txn) OnWriteInDoubt(key types.Key) error {
	if err := t.bindNamespace(key.Namespace); err != nil {
		return err
	}
	d := key.Digest()
	t.reads.Delete(d)
	t.mu.Lock()
	t.writes[d] = key
	t.mu.Unlock()
	t.monitorInDoubt.Store(true)
	return nil
}

// SetMonitorDeadline records when the server confirmed the MRT monitor
// record was established.
func (t *Txn) SetMonitorDeadline(epochSeconds int64) { t.monitorDeadline.Store(epochSeconds) }

// MonitorDeadline returns the last deadline SetMonitorDeadline recorded, or
// 0 if the monitor record hasn't been confirmed yet.
func (t *Txn) MonitorDeadline() int64 { return t.monitorDeadline.Load() }

// MonitorInDoubt reports whether any write under this transaction left the
// monitor record's state unknown.
func (t *Txn) MonitorInDoubt() bool { return t.monitorInDoubt.Load() }

// SetRollAttempted is a one-shot latch: it returns true exactly once across
// the transaction's lifetime, false on every subsequent call, preventing a
// racing caller from double-committing or double-aborting.
func (t *Txn) SetRollAttempted() bool {
	return t.rollAttempted.CompareAndSwap(false, true)
}

// writeKeys returns a snapshot of the current write set.
func (t *Txn) writeKeys() []types.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]types.Key, 0, len(t.writes))
	for _, k := range t.writes {
		keys = append(keys, k)
	}
	return keys
}

// readEntries returns a snapshot of the current read-version map.
func (t *Txn) readEntries() []readEntry {
	var out []readEntry
	t.reads.Range(func(_, v any) bool {
		out = append(out, v.(readEntry))
		return true
	})
	return out
}

// MonitorCloser deletes the transaction's server-side monitor record.
// Framing the delete command is an external encoder/decoder concern;
// MonitorCloser is the seam a caller plugs that in at.
type MonitorCloser interface {
	CloseMonitor(ctx context.Context, txnID int64) error
}

// Commit runs the 5-step commit protocol: a no-op fast path for an empty
// transaction, a batch verify of every read version, a batch roll-forward
// of the write set, and a best-effort monitor close.
func Commit(ctx context.Context, t *Txn, m *partition.Map, router *partition.Router, pol policy.BatchPolicy, verifier batch.Dispatcher, rollForward batch.Dispatcher, monitor MonitorCloser) (CommitStatus, error) {
	if !t.SetRollAttempted() {
		return CommitAlreadyCommitted, nil
	}
	defer t.setState(Closed)

	reads := t.readEntries()
	writes := t.writeKeys()
	if len(reads) == 0 && len(writes) == 0 {
		return CommitOK, nil
	}

	t.setState(Verifying)
	if len(reads) > 0 {
		verifyRecords := make([]batch.BatchRecord, len(reads))
		for i, r := range reads {
			verifyRecords[i] = batch.BatchRecord{Key: r.key, ExpectedVersion: r.version}
		}
		results, ok := batch.Plan(ctx, pol, m, router, verifyRecords, verifier)
		if !ok {
			for _, r := range results {
				if r.Err != nil {
					return CommitVerifyFail, r.Err
				}
			}
			return CommitVerifyFail, nil
		}
	}

	t.setState(Committing)
	if len(writes) > 0 {
		writeRecords := make([]batch.BatchRecord, len(writes))
		for i, k := range writes {
			writeRecords[i] = batch.BatchRecord{Key: k}
		}
		_, ok := batch.Plan(ctx, pol, m, router, writeRecords, rollForward)
		if !ok {
			return CommitRollForwardAbandoned, nil
		}
	}

	if monitor != nil {
		if err := monitor.CloseMonitor(ctx, t.id); err != nil {
			return CommitCloseAbandoned, err
		}
	}
	return CommitOK, nil
}

// Abort rolls back the write set and closes the monitor record.
func Abort(ctx context.Context, t *Txn, m *partition.Map, router *partition.Router, pol policy.BatchPolicy, rollBack batch.Dispatcher, monitor MonitorCloser) (AbortStatus, error) {
	if !t.SetRollAttempted() {
		return AbortAlreadyAborted, nil
	}
	defer t.setState(Closed)

	t.setState(Aborting)
	writes := t.writeKeys()
	if len(writes) > 0 {
		records := make([]batch.BatchRecord, len(writes))
		for i, k := range writes {
			records[i] = batch.BatchRecord{Key: k}
		}
		_, ok := batch.Plan(ctx, pol, m, router, records, rollBack)
		if !ok {
			return AbortRollBackAbandoned, nil
		}
	}

	if monitor != nil {
		if err := monitor.CloseMonitor(ctx, t.id); err != nil {
			return AbortCloseAbandoned, err
		}
	}
	return AbortOK, nil
}
