package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDigestDeterministic(t *testing.T) {
	k1, err := NewKey("test", "s", "k1")
	require.NoError(t, err)
	k2, err := NewKey("test", "s", "k1")
	require.NoError(t, err)

	assert.Equal(t, k1.Digest(), k2.Digest())
	assert.True(t, k1.Equal(k2))
}

func TestKeyDigestDistinguishesKindAndSet(t *testing.T) {
	byString, err := NewKey("test", "s", "1")
	require.NoError(t, err)
	byInt, err := NewKey("test", "s", int64(1))
	require.NoError(t, err)
	assert.NotEqual(t, byString.Digest(), byInt.Digest())

	otherSet, err := NewKey("test", "other", "k1")
	require.NoError(t, err)
	same, err := NewKey("test", "s", "k1")
	require.NoError(t, err)
	assert.NotEqual(t, otherSet.Digest(), same.Digest())
}

func TestKeyRejectsCompositeUserValues(t *testing.T) {
	_, err := NewKey("test", "s", []Value{"a", "b"})
	assert.Error(t, err)
}

func TestResultCodeKeepConnection(t *testing.T) {
	tests := []struct {
		code ResultCode
		keep bool
	}{
		{OK, false},
		{KeyNotFound, true},
		{GenerationError, true},
		{PartitionUnavailable, true},
		{ScanAbort, false},
		{QueryAborted, false},
		{ClientError, false},
		{SerializeError, false},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.keep, tt.code.KeepConnection(), "code %v", tt.code)
	}
}

func TestResultCodeRetryable(t *testing.T) {
	assert.True(t, Timeout.Retryable())
	assert.True(t, PartitionUnavailable.Retryable())
	assert.False(t, KeyNotFound.Retryable())
	assert.False(t, ParameterError.Retryable())
}

func TestAerospikeErrorIs(t *testing.T) {
	err := NewError(KeyNotFound)
	assert.True(t, errors.Is(err, NewError(KeyNotFound)))
	assert.False(t, errors.Is(err, NewError(GenerationError)))
}

func TestAerospikeErrorInDoubt(t *testing.T) {
	err := NewError(Timeout).WithInDoubt()
	assert.True(t, err.InDoubt)
	assert.Contains(t, err.Error(), "in-doubt")
}

func TestResultCodeOf(t *testing.T) {
	code, ok := ResultCodeOf(NewError(BinExists))
	assert.True(t, ok)
	assert.Equal(t, BinExists, code)

	_, ok = ResultCodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestHostString(t *testing.T) {
	h := NewHost("db1.internal", 3000)
	assert.Equal(t, "db1.internal:3000", h.String())
}

func TestBinValueKind(t *testing.T) {
	assert.Equal(t, KindInt, KindOf(int64(5)))
	assert.Equal(t, KindString, KindOf("x"))
	assert.Equal(t, KindNil, KindOf(nil))
	assert.Equal(t, KindBool, KindOf(true))
}
