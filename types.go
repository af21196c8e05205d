package aerospike

import (
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
)

// Re-exported value types, so a caller of this package never needs to
// import internal/types or policy directly.
type (
	Key             = types.Key
	Bin             = types.Bin
	Value           = types.Value
	Record          = types.Record
	Host            = types.Host
	ResultCode      = types.ResultCode
	AerospikeError  = types.AerospikeError
	GeoJSON         = types.GeoJSON

	ClientPolicy = policy.ClientPolicy
	ReadPolicy   = policy.ReadPolicy
	WritePolicy  = policy.WritePolicy
	BatchPolicy  = policy.BatchPolicy
	ScanPolicy   = policy.ScanPolicy
	QueryPolicy  = policy.QueryPolicy
	AdminPolicy  = policy.AdminPolicy
)

// Re-exported constructors and result codes callers reach for directly.
var (
	NewKey          = types.NewKey
	NewBin          = types.NewBin
	NewHost         = types.NewHost
	NewTLSHost      = types.NewTLSHost
	NewError        = types.NewError
	NewClientPolicy = policy.NewClientPolicy
	NewReadPolicy   = policy.NewReadPolicy
	NewWritePolicy  = policy.NewWritePolicy
	NewBatchPolicy  = policy.NewBatchPolicy
	NewScanPolicy   = policy.NewScanPolicy
	NewQueryPolicy  = policy.NewQueryPolicy
)

const (
	KeyNotFound          = types.KeyNotFound
	GenerationError      = types.GenerationError
	ParameterError       = types.ParameterError
	KeyExists            = types.KeyExists
	BinExists            = types.BinExists
	Timeout              = types.Timeout
	PartitionUnavailable = types.PartitionUnavailable
)

const (
	Master        = policy.Master
	MasterProles  = policy.MasterProles
	Sequence      = policy.Sequence
	Random        = policy.Random
	PreferRack    = policy.PreferRack
)
