package types

// Value is the tagged union every bin holds: nil, signed 64-bit integer,
// double, string, byte array, list, map, geo-json, or boolean. Go's empty interface plays the role the source's runtime-tagged
// value class plays; ValueKind below lets callers and the executor branch on
// the tag without a type switch at every call site.
type Value = any

// ValueKind tags the dynamic type a Value carries on the wire. The external
// encoder is the only code that needs to turn a ValueKind into bytes; the
// core only needs it to validate bin values and
// to let Policy.SendKey-style logic reason about key types without an
// encoder dependency.
type ValueKind int

const (
	KindNil ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindGeoJSON
	KindBool
)

// KindOf classifies a Value's dynamic type. Unrecognized dynamic types
// report KindNil; callers that need strict validation should treat that as
// an error rather than silently encoding null.
func KindOf(v Value) ValueKind {
	switch v.(type) {
	case nil:
		return KindNil
	case int64, int, int32:
		return KindInt
	case float64, float32:
		return KindFloat
	case string:
		return KindString
	case []byte:
		return KindBytes
	case []Value:
		return KindList
	case map[string]Value:
		return KindMap
	case GeoJSON:
		return KindGeoJSON
	case bool:
		return KindBool
	default:
		return KindNil
	}
}

// GeoJSON wraps a raw GeoJSON string so KindOf can distinguish a
// geospatial bin from a plain string bin.
type GeoJSON string

// Bin is a named value slot inside a record. Name length limits are a
// server property (communicated via the info protocol) and are therefore
// not enforced in this package.
type Bin struct {
	Name  string
	Value Value
}

// NewBin constructs a Bin, the idiomatic one-liner callers reach for instead
// of the struct literal.
func NewBin(name string, value Value) Bin {
	return Bin{Name: name, Value: value}
}
