package txn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dreamware/aerospike-go/internal/batch"
	"github.com/dreamware/aerospike-go/internal/cluster"
	"github.com/dreamware/aerospike-go/internal/partition"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxnKey(t *testing.T, ns, set, userKey string) types.Key {
	t.Helper()
	k, err := types.NewKey(ns, set, userKey)
	require.NoError(t, err)
	return k
}

func newTxnNode(t *testing.T, id string) *cluster.Node {
	t.Helper()
	return cluster.NewNode(id, types.NewHost("127.0.0.1", 0), 4, time.Minute, time.Second, "")
}

func buildTxnMap(t *testing.T, keys []types.Key, nodes []*cluster.Node) *partition.Map {
	t.Helper()
	b := partition.NewBuilder(4)
	for i, k := range keys {
		pid := partition.PartitionID(k.Digest(), 4)
		b.Set(k.Namespace, pid, 0, nodes[i])
	}
	return b.Build(1)
}

func TestOnReadThenOnWriteMovesKeyBetweenSets(t *testing.T) {
	tx := New()
	k := newTxnKey(t, "test", "s", "k1")

	require.NoError(t, tx.OnRead(k, 3))
	reads := tx.readEntries()
	require.Len(t, reads, 1)
	assert.Equal(t, uint32(3), reads[0].version)

	require.NoError(t, tx.OnWrite(k, types.OK))
	assert.Empty(t, tx.readEntries())
	assert.Len(t, tx.writeKeys(), 1)
}

func TestOnWriteNonOKLeavesReadSetUntouched(t *testing.T) {
	tx := New()
	k := newTxnKey(t, "test", "s", "k1")

	require.NoError(t, tx.OnRead(k, 1))
	require.NoError(t, tx.OnWrite(k, types.Timeout))

	assert.Len(t, tx.readEntries(), 1)
	assert.Empty(t, tx.writeKeys())
}

func TestOnWriteInDoubtMarksMonitorInDoubtAndAddsToWrites(t *testing.T) {
	tx := New()
	k := newTxnKey(t, "test", "s", "k1")

	require.NoError(t, tx.OnRead(k, 1))
	require.NoError(t, tx.OnWriteInDoubt(k))

	assert.Empty(t, tx.readEntries())
	assert.Len(t, tx.writeKeys(), 1)
	assert.True(t, tx.MonitorInDoubt())
}

func TestBindNamespaceRejectsMismatch(t *testing.T) {
	tx := New()
	k1 := newTxnKey(t, "ns1", "s", "k1")
	k2 := newTxnKey(t, "ns2", "s", "k2")

	require.NoError(t, tx.OnRead(k1, 1))
	err := tx.OnRead(k2, 1)
	require.Error(t, err)

	aerr, ok := err.(*types.AerospikeError)
	require.True(t, ok)
	assert.Equal(t, types.ParameterError, aerr.Code)
}

func TestSetRollAttemptedFiresOnce(t *testing.T) {
	tx := New()
	assert.True(t, tx.SetRollAttempted())
	assert.False(t, tx.SetRollAttempted())
	assert.False(t, tx.SetRollAttempted())
}

func TestSetMonitorDeadlineRecordsValue(t *testing.T) {
	tx := New()
	assert.Zero(t, tx.MonitorDeadline())
	tx.SetMonitorDeadline(12345)
	assert.Equal(t, int64(12345), tx.MonitorDeadline())
}

// recordingDispatcher echoes success for every record, recording the
// ExpectedVersion it observed so verify-phase wiring can be asserted.
type recordingDispatcher struct {
	mu       sync.Mutex
	versions map[string]uint32
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{versions: make(map[string]uint32)}
}

func (d *recordingDispatcher) DispatchGroup(ctx context.Context, node *cluster.Node, records []batch.BatchRecord, indices []int) ([]batch.BatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]batch.BatchResult, len(records))
	for i, rec := range records {
		d.versions[rec.Key.SetName] = rec.ExpectedVersion
		out[i] = batch.BatchResult{}
	}
	return out, nil
}

type failingDispatcher struct{}

func (failingDispatcher) DispatchGroup(ctx context.Context, node *cluster.Node, records []batch.BatchRecord, indices []int) ([]batch.BatchResult, error) {
	out := make([]batch.BatchResult, len(records))
	for i := range records {
		out[i] = batch.BatchResult{Err: assert.AnError}
	}
	return out, nil
}

type fakeMonitor struct {
	closed bool
	id     int64
}

func (m *fakeMonitor) CloseMonitor(ctx context.Context, txnID int64) error {
	m.closed = true
	m.id = txnID
	return nil
}

func TestCommitOnEmptyTransactionIsOK(t *testing.T) {
	tx := New()
	m := partition.NewBuilder(4).Build(1)
	router := partition.NewRouter("")
	monitor := &fakeMonitor{}

	status, err := Commit(context.Background(), tx, m, router, policy.NewBatchPolicy(), newRecordingDispatcher(), newRecordingDispatcher(), monitor)
	require.NoError(t, err)
	assert.Equal(t, CommitOK, status)
	assert.False(t, monitor.closed)
	assert.Equal(t, State(Closed), tx.State())
}

func TestCommitVerifiesReadsAndRollsForwardWrites(t *testing.T) {
	n1 := newTxnNode(t, "n1")
	readKey := newTxnKey(t, "test", "r", "rk")
	writeKey := newTxnKey(t, "test", "w", "wk")
	m := buildTxnMap(t, []types.Key{readKey, writeKey}, []*cluster.Node{n1, n1})
	router := partition.NewRouter("")

	tx := New()
	require.NoError(t, tx.OnRead(readKey, 7))
	require.NoError(t, tx.OnWrite(writeKey, types.OK))

	verifier := newRecordingDispatcher()
	rollForward := newRecordingDispatcher()
	monitor := &fakeMonitor{}

	status, err := Commit(context.Background(), tx, m, router, policy.NewBatchPolicy(), verifier, rollForward, monitor)
	require.NoError(t, err)
	assert.Equal(t, CommitOK, status)
	assert.Equal(t, uint32(7), verifier.versions["r"])
	assert.True(t, monitor.closed)
}

func TestCommitIsIdempotentAfterFirstCall(t *testing.T) {
	tx := New()
	m := partition.NewBuilder(4).Build(1)
	router := partition.NewRouter("")
	monitor := &fakeMonitor{}

	status1, err := Commit(context.Background(), tx, m, router, policy.NewBatchPolicy(), newRecordingDispatcher(), newRecordingDispatcher(), monitor)
	require.NoError(t, err)
	assert.Equal(t, CommitOK, status1)

	status2, err := Commit(context.Background(), tx, m, router, policy.NewBatchPolicy(), newRecordingDispatcher(), newRecordingDispatcher(), monitor)
	require.NoError(t, err)
	assert.Equal(t, CommitAlreadyCommitted, status2)
}

func TestCommitReturnsVerifyFailWhenReadVerificationErrors(t *testing.T) {
	n1 := newTxnNode(t, "n1")
	readKey := newTxnKey(t, "test", "r", "rk")
	m := buildTxnMap(t, []types.Key{readKey}, []*cluster.Node{n1})
	router := partition.NewRouter("")

	tx := New()
	require.NoError(t, tx.OnRead(readKey, 1))

	status, _ := Commit(context.Background(), tx, m, router, policy.NewBatchPolicy(), failingDispatcher{}, newRecordingDispatcher(), &fakeMonitor{})
	assert.Equal(t, CommitVerifyFail, status)
}

func TestAbortRollsBackWritesAndClosesMonitor(t *testing.T) {
	n1 := newTxnNode(t, "n1")
	writeKey := newTxnKey(t, "test", "w", "wk")
	m := buildTxnMap(t, []types.Key{writeKey}, []*cluster.Node{n1})
	router := partition.NewRouter("")

	tx := New()
	require.NoError(t, tx.OnWrite(writeKey, types.OK))

	monitor := &fakeMonitor{}
	status, err := Abort(context.Background(), tx, m, router, policy.NewBatchPolicy(), newRecordingDispatcher(), monitor)
	require.NoError(t, err)
	assert.Equal(t, AbortOK, status)
	assert.True(t, monitor.closed)
}

func TestAbortIsIdempotentAfterFirstCall(t *testing.T) {
	tx := New()
	m := partition.NewBuilder(4).Build(1)
	router := partition.NewRouter("")

	status1, err := Abort(context.Background(), tx, m, router, policy.NewBatchPolicy(), newRecordingDispatcher(), &fakeMonitor{})
	require.NoError(t, err)
	assert.Equal(t, AbortOK, status1)

	status2, err := Abort(context.Background(), tx, m, router, policy.NewBatchPolicy(), newRecordingDispatcher(), &fakeMonitor{})
	require.NoError(t, err)
	assert.Equal(t, AbortAlreadyAborted, status2)
}
