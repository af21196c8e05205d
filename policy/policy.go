package policy

import "time"

// RecordExistsAction governs how a write reconciles with whether the
// record already exists.
type RecordExistsAction int

const (
	// Update writes a record whether or not it exists (default).
	Update RecordExistsAction = iota
	// UpdateOnly fails with KeyNotFound if the record does not exist.
	UpdateOnly
	// CreateOnly fails with KeyExists if the record already exists.
	CreateOnly
	// Replace fully replaces all bins, whether or not the record exists.
	Replace
	// ReplaceOnly fully replaces all bins; fails with KeyNotFound if
	// the record does not exist.
	ReplaceOnly
)

// GenerationPolicy governs optimistic-concurrency checks on write.
type GenerationPolicy int

const (
	// GenerationIgnore performs the write regardless of generation.
	GenerationIgnore GenerationPolicy = iota
	// GenerationEQ requires the record's generation equal Policy.Generation.
	GenerationEQ
	// GenerationGT requires the record's generation be greater than
	// Policy.Generation.
	GenerationGT
)

// ConsistencyLevel is the read-mode half of the consistency-level
// (read-mode, replica-selection) policy pair; ReplicaPolicy is the other
// half.
type ConsistencyLevel int

const (
	// ConsistencyOne is satisfied by any single replica's response.
	ConsistencyOne ConsistencyLevel = iota
	// ConsistencyAll requires all replicas to agree.
	ConsistencyAll
)

// Policy is the base set of fields shared by every per-invocation policy.
// It is a value type: immutable once passed into a command.
type Policy struct {
	// TotalTimeout bounds the whole operation including every retry. Zero
	// means no deadline.
	TotalTimeout time.Duration
	// SocketTimeout bounds a single socket acquire/read/write.
	SocketTimeout time.Duration
	// MaxRetries is the retry budget after the first attempt.
	MaxRetries int
	// SleepBetweenRetries is the pause before each retry; zero means an
	// immediate retry with no forced yield.
	SleepBetweenRetries time.Duration
	// ReplicaPolicy selects which replica a read targets.
	Replica ReplicaPolicy
	// Consistency is the read-mode half of the consistency level.
	Consistency ConsistencyLevel
	// SendKey asks for the user key value to be stored alongside the
	// digest. No command in this module sends it, so scan/query results
	// carry only the digest.
	SendKey bool
	// Compress is a payload-compression flag. The codec itself is out of
	// scope, and no Encoder in this module reads the flag.
	Compress bool
	// FilterExpression is an opaque server-side filter. No command in this
	// module encodes or sends it.
	FilterExpression any
}

// NewPolicy returns the documented defaults: a 1s total timeout, a 30s
// socket timeout, 2 retries, no sleep between retries, SEQUENCE replica
// selection.
func NewPolicy() Policy {
	return Policy{
		TotalTimeout:        1 * time.Second,
		SocketTimeout:       30 * time.Second,
		MaxRetries:          2,
		SleepBetweenRetries: 0,
		Replica:             Sequence,
		Consistency:         ConsistencyOne,
	}
}

// ReadPolicy configures single-record reads.
type ReadPolicy struct {
	Policy
}

// NewReadPolicy returns read defaults: the base Policy defaults, replica
// selection SEQUENCE (it already is the base default, named here for
// clarity at call sites).
func NewReadPolicy() ReadPolicy {
	return ReadPolicy{Policy: NewPolicy()}
}

// WritePolicy configures single-record writes.
type WritePolicy struct {
	Policy
	RecordExistsAction RecordExistsAction
	GenerationPolicy   GenerationPolicy
	Generation         uint32
	// Expiration is the record TTL in seconds from now; 0 means the
	// server's default, and a negative value means never-expire,
	// mirroring the server's documented semantics.
	Expiration int32
}

// NewWritePolicy returns write defaults: base Policy defaults, writes
// always target the master so Replica is forced to Master regardless of
// what NewPolicy chose.
func NewWritePolicy(generation uint32) WritePolicy {
	base := NewPolicy()
	base.Replica = Master
	return WritePolicy{
		Policy:             base,
		RecordExistsAction: Update,
		GenerationPolicy:   GenerationIgnore,
		Generation:         generation,
	}
}

// BatchPolicy configures a Batch Planner dispatch.
type BatchPolicy struct {
	Policy
	// MaxConcurrentThreads bounds how many node-groups are dispatched in
	// parallel; 0 means "one per node".
	MaxConcurrentThreads int
	// AllowInlineSSD lets a batch sub-command read directly off a storage
	// device thread rather than queuing, mirroring the real client's
	// batch tuning knob; left false by default.
	AllowInlineSSD bool
}

// NewBatchPolicy returns batch defaults derived from NewPolicy, with a
// longer total timeout since batches touch more keys per call.
func NewBatchPolicy() BatchPolicy {
	base := NewPolicy()
	base.TotalTimeout = 10 * time.Second
	return BatchPolicy{Policy: base}
}

// ScanPolicy configures a full-namespace/set scan.
type ScanPolicy struct {
	Policy
	// MaxRecords is a record cap for the scan. Client.ScanPartitions does
	// not apply it; every record of every partition is returned.
	MaxRecords int64
	// MaxConcurrentNodes is a node-group concurrency bound. The scan
	// tracker does not read it; all node-groups are dispatched at once.
	MaxConcurrentNodes int
	// RecordsPerSecond is a delivery-rate limit. Nothing in the scan path
	// reads it; delivery is unthrottled.
	RecordsPerSecond int
}

// NewScanPolicy returns scan defaults: no total timeout (scans can run
// indefinitely), a generous socket timeout per partition batch.
func NewScanPolicy() ScanPolicy {
	base := NewPolicy()
	base.TotalTimeout = 0
	base.SocketTimeout = 30 * time.Second
	base.MaxRetries = 5
	return ScanPolicy{Policy: base}
}

// QueryPolicy configures a secondary-index query. It shares
// the scan tracker's partition-fan-out machinery, so its shape mirrors
// ScanPolicy closely.
type QueryPolicy struct {
	Policy
	MaxConcurrentNodes int
	RecordsPerSecond   int
}

// NewQueryPolicy returns query defaults, identical in spirit to
// NewScanPolicy.
func NewQueryPolicy() QueryPolicy {
	base := NewPolicy()
	base.TotalTimeout = 0
	base.MaxRetries = 5
	return QueryPolicy{Policy: base}
}

// AdminPolicy configures user/role administrative commands. Command
// framing for these is out of scope; this is only the
// timeout envelope the executor needs.
type AdminPolicy struct {
	Timeout time.Duration
}

// NewAdminPolicy returns a 1s default timeout.
func NewAdminPolicy() AdminPolicy {
	return AdminPolicy{Timeout: 1 * time.Second}
}

// InfoPolicy configures info-protocol requests (tend, DDL, peer discovery).
type InfoPolicy struct {
	Timeout time.Duration
}

// NewInfoPolicy returns a 1s default timeout.
func NewInfoPolicy() InfoPolicy {
	return InfoPolicy{Timeout: 1 * time.Second}
}
