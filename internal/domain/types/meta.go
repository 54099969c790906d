package types

// MetaKind tags the representation held by a MetaValue.
type MetaKind uint8

const (
	MetaBytes MetaKind = iota + 1
	MetaUint
)

// MetaValue is an opaque value stored next to key records: either a byte
// string or an unsigned integer.
type MetaValue struct {
	Kind  MetaKind
	Bytes []byte
	Uint  uint64
}

// BytesValue wraps b as a MetaValue.
func BytesValue(b []byte) MetaValue {
	return MetaValue{Kind: MetaBytes, Bytes: append([]byte(nil), b...)}
}

// UintValue wraps v as a MetaValue.
func UintValue(v uint64) MetaValue {
	return MetaValue{Kind: MetaUint, Uint: v}
}
