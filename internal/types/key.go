package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // matches the server's digest algorithm
)

// DigestSize is the fixed length of a Key's digest: a ripemd160 sum.
const DigestSize = 20

// particle type tags mirror the subset of ValueKind the digest algorithm
// must distinguish; two different user keys that serialize to the same
// bytes but different kinds (e.g. int64(1) vs string("1")) must never
// collide, so the tag byte is mixed into the hash.
const (
	particleInt    byte = 1
	particleFloat  byte = 2
	particleString byte = 3
	particleBytes  byte = 4
	particleBool   byte = 17
)

// Key identifies one record: a namespace, a set within that namespace, the
// caller-supplied value, and the 20-byte digest the server uses as the
// partitioning input.
//
// Key is a value type. Digest is computed once at construction and never
// recomputed, so a Key can be copied and compared cheaply (e.g. as the
// reads-map key in internal/txn.Txn).
type Key struct {
	Namespace string
	SetName   string
	UserValue Value
	digest    [DigestSize]byte
}

// NewKey constructs a Key and computes its digest immediately. An error is
// returned if userValue's kind cannot be digested (lists and maps are not
// valid record keys on the server either).
func NewKey(namespace, setName string, userValue Value) (Key, error) {
	d, err := computeDigest(setName, userValue)
	if err != nil {
		return Key{}, fmt.Errorf("aerospike: new key: %w", err)
	}
	return Key{Namespace: namespace, SetName: setName, UserValue: userValue, digest: d}, nil
}

// NewDigestKey constructs a Key from an already-known digest, with no
// UserValue. Equal and Digest behave identically to a Key built from NewKey.
func NewDigestKey(namespace, setName string, digest [DigestSize]byte) Key {
	return Key{Namespace: namespace, SetName: setName, digest: digest}
}

// Digest returns the 20-byte value the partition router hashes to a
// partition id. Callers should treat it as opaque.
func (k Key) Digest() [DigestSize]byte {
	return k.digest
}

// Equal reports whether two keys address the same record: same namespace
// and same digest. UserValue is not compared directly since two
// representations of the same logical value (e.g. int64(1) vs int(1))
// produce the same digest and therefore the same record.
func (k Key) Equal(other Key) bool {
	return k.Namespace == other.Namespace && k.digest == other.digest
}

func computeDigest(setName string, userValue Value) ([DigestSize]byte, error) {
	var out [DigestSize]byte

	tag, payload, err := serializeForDigest(userValue)
	if err != nil {
		return out, err
	}

	h := ripemd160.New()
	_, _ = h.Write([]byte(setName))
	_, _ = h.Write([]byte{tag})
	_, _ = h.Write(payload)

	sum := h.Sum(nil)
	copy(out[:], sum)
	return out, nil
}

// serializeForDigest renders a user key value into the (particle-tag, bytes)
// pair the digest hash mixes in. This intentionally covers only the value
// kinds the server accepts as a record key; it is not a general-purpose
// value encoder (that job belongs to the external op encoder).
func serializeForDigest(v Value) (byte, []byte, error) {
	switch val := v.(type) {
	case int64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(val))
		return particleInt, buf, nil
	case int:
		return serializeForDigest(int64(val))
	case int32:
		return serializeForDigest(int64(val))
	case float64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(val))
		return particleFloat, buf, nil
	case string:
		return particleString, []byte(val), nil
	case []byte:
		return particleBytes, val, nil
	case bool:
		if val {
			return particleBool, []byte{1}, nil
		}
		return particleBool, []byte{0}, nil
	default:
		return 0, nil, fmt.Errorf("aerospike: value of type %T is not a valid record key", v)
	}
}

