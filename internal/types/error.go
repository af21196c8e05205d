package types

import "fmt"

// AerospikeError is the single error variant the client surfaces at its
// boundary: a numeric result code, a message, and whether
// the operation that produced it is in-doubt (its socket-level outcome is
// unknown, so it may or may not have been applied server-side).
//
// storage.ErrKeyNotFound shows the small-sentinel-error pattern for
// identity checks. AerospikeError plays the same role but must
// carry a dynamic code, so it is a struct with Is/As support instead of a
// package-level var, letting callers still write:
//
//	if errors.Is(err, types.NewError(types.KeyNotFound)) { ... }
type AerospikeError struct {
	Code    ResultCode
	Message string
	InDoubt bool
}

// NewError builds an AerospikeError for a server- or client-side result
// code with no extra message.
func NewError(code ResultCode) *AerospikeError {
	return &AerospikeError{Code: code, Message: code.String()}
}

// NewErrorf builds an AerospikeError with a formatted message, for cases
// where the bare code name isn't enough context (e.g. wrapping an I/O
// error).
func NewErrorf(code ResultCode, format string, args ...any) *AerospikeError {
	return &AerospikeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithInDoubt returns a copy of the error with InDoubt set, used when a
// write's socket-level outcome could not be determined.
func (e *AerospikeError) WithInDoubt() *AerospikeError {
	cp := *e
	cp.InDoubt = true
	return &cp
}

func (e *AerospikeError) Error() string {
	if e.InDoubt {
		return fmt.Sprintf("aerospike: %s (code %d, in-doubt): %s", e.Code, int(e.Code), e.Message)
	}
	return fmt.Sprintf("aerospike: %s (code %d): %s", e.Code, int(e.Code), e.Message)
}

// Is lets errors.Is(err, types.NewError(SomeCode)) and, more usefully,
// errors.Is(err, SomeSentinelError) work by comparing result codes when the
// target is also an *AerospikeError.
func (e *AerospikeError) Is(target error) bool {
	other, ok := target.(*AerospikeError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// ResultCodeOf extracts the ResultCode carried by err, if any, returning
// (ClientError, false) for errors that did not originate from this package
// (e.g. a raw I/O error that hasn't yet been wrapped).
func ResultCodeOf(err error) (ResultCode, bool) {
	ae, ok := err.(*AerospikeError)
	if !ok {
		return ClientError, false
	}
	return ae.Code, true
}
